// Package preflight provides readiness checks for the filesystem paths and
// external tools datefixer depends on.
//
// These checks run in two contexts:
//   - A fix run calls RunAll before walking and aborts when a required
//     location is unusable, so no file is touched by a half-configured run.
//   - The CLI "datefixer doctor" command renders RunAll and CheckSystemDeps
//     as a health report.
//
// Each check is gated by its config toggle. Disabled features are skipped.
package preflight
