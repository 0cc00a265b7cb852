// Package walker drives date resolution over files and directory trees.
//
// Each directory is handled in two passes. Regular files are resolved in
// name order; an accepted date is written, remembered in a per-directory
// processed set and, when propagation is on, copied to siblings that share the
// base name under Unicode case folding. Subdirectories are then walked when
// recursion is on. The directory's aggregate is the newest date among its
// files and its subdirectories' aggregates; an empty or undated directory has
// no aggregate rather than a zero date, so it never drags an ancestor's
// maximum down to the epoch.
package walker
