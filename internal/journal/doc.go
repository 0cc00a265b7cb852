// Package journal records every timestamp datefixer writes so a run can be
// listed and reverted later.
//
// The journal is a SQLite database (modernc.org/sqlite, no cgo) with one row
// per run and one row per changed path holding the modification time seen
// before the write. Writes retry on SQLITE_BUSY so two concurrent runs sharing
// a state directory do not fail spuriously.
package journal
