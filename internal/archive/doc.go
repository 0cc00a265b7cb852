// Package archive dates an archive by the newest modification time among its
// entries.
//
// The built-in Decoder reads zip, tar (plain, gzip, zstd, bzip2) and bare gzip
// streams. When no format is pinned and the decoder does not recognise a file,
// the Resolver walks a fixed list of formats; the last one, FormatExternal,
// hands the file to 7-Zip via the Extractor, which unpacks into a locked
// scratch directory and scans the result. Extracted trees whose newest file is
// younger than the extraction itself are discarded, since that means 7-Zip
// stamped files with the current time instead of archive metadata.
package archive
