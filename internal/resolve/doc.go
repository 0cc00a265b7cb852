// Package resolve turns a file path into at most one trustworthy date.
//
// A Pipeline holds an ordered list of Strategy values (container image,
// code signature, archive contents, EXIF, file name) built from the active
// configuration. Strategies whose activation condition is false are never
// consulted; the first strategy that yields an acceptable date wins and later
// strategies are skipped. A strategy failure, including a panic inside a
// third-party decoder, counts as "no candidate"; only an unreadable source file
// is reported as an error.
package resolve
