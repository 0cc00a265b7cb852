// Package main hosts the datefixer CLI entrypoint and command graph.
//
// The root command resolves content dates for the given paths and writes them
// back as modification times. Subcommands inspect and undo earlier runs
// through the change journal, scaffold configuration, and report whether the
// configured directories and external tools are usable.
//
// Keep this package lean: resolution, traversal and persistence live in the
// internal packages, and commands here only translate flags into their
// options.
package main
