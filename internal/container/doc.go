// Package container derives a mastering date from optical-disc images.
//
// The Resolver tries each Decoder (ISO 9660, then UDF) against the same
// random-access reader. A root timestamp before MinPlausible is treated as a
// mastering-tool placeholder, and the image is deep-scanned for the newest
// entry creation time instead. Decode failures are never fatal; they only move
// the resolver on to the next format.
package container
