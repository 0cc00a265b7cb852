package archive

import (
	"fmt"
	"strings"
)

// Format names an archive layout the resolver can be pinned to.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatZip      Format = "zip"
	FormatTar      Format = "tar"
	FormatTarGzip  Format = "tar.gz"
	FormatTarZstd  Format = "tar.zst"
	FormatTarBzip2 Format = "tar.bz2"
	FormatGzip     Format = "gz"
	// FormatExternal is the family the built-in decoder cannot read; selecting
	// it routes the file to the external extractor.
	FormatExternal Format = "external"
)

// BruteForceOrder is tried, in order, when an unpinned archive is not
// recognised by sniffing.
var BruteForceOrder = []Format{
	FormatZip,
	FormatTarGzip,
	FormatTarZstd,
	FormatTarBzip2,
	FormatTar,
	FormatGzip,
	FormatExternal,
}

// ParseFormat maps a configuration value onto a Format. Empty means auto.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatZip, FormatTar, FormatTarGzip, FormatTarZstd, FormatTarBzip2, FormatGzip, FormatExternal:
		return f, nil
	case "tgz":
		return FormatTarGzip, nil
	case "tzst":
		return FormatTarZstd, nil
	case "tbz2":
		return FormatTarBzip2, nil
	default:
		return "", fmt.Errorf("unknown archive format %q", value)
	}
}

// Pinned reports whether f restricts the resolver to a single format.
func (f Format) Pinned() bool {
	return f != "" && f != FormatAuto
}

func (f Format) String() string { return string(f) }
