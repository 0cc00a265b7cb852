// Package config loads, normalizes, and validates datefixer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DATEFIXER_SEVEN_ZIP. The Config type centralizes every knob the walker and
// CLI need: which date strategies run, how archives are probed, how the tree is
// walked, and where the change journal and logs live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
