package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ErrUnrecognized reports that the input is not an archive of the requested format.
var ErrUnrecognized = errors.New("unrecognized archive format")

// Entry is one member of an archive.
type Entry struct {
	Name    string
	ModTime time.Time
	IsDir   bool
}

// Decoder enumerates archive members.
type Decoder interface {
	// Scan calls visit for every member of the archive at path. It returns an
	// error wrapping ErrUnrecognized when the file is not of the given format.
	Scan(path string, format Format, visit func(Entry)) error
}

// Builtin is the in-process Decoder.
type Builtin struct{}

var (
	magicZip   = []byte("PK\x03\x04")
	magicEmpty = []byte("PK\x05\x06")
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicBzip2 = []byte("BZh")
	magicUstar = []byte("ustar")
)

// Sniff identifies the format of a file from its leading bytes.
func Sniff(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, magicZip), bytes.HasPrefix(head, magicEmpty):
		return FormatZip, nil
	case bytes.HasPrefix(head, magicZstd):
		return FormatTarZstd, nil
	case bytes.HasPrefix(head, magicBzip2):
		return FormatTarBzip2, nil
	case bytes.HasPrefix(head, magicGzip):
		return FormatTarGzip, nil
	case len(head) >= 262 && bytes.Equal(head[257:262], magicUstar):
		return FormatTar, nil
	}
	return "", fmt.Errorf("%w: no known signature", ErrUnrecognized)
}

func (Builtin) Scan(path string, format Format, visit func(Entry)) error {
	if format == FormatAuto || format == "" {
		sniffed, err := Sniff(path)
		if err != nil {
			return err
		}
		err = Builtin{}.Scan(path, sniffed, visit)
		if sniffed == FormatTarGzip && errors.Is(err, ErrUnrecognized) {
			return Builtin{}.Scan(path, FormatGzip, visit)
		}
		return err
	}

	if format == FormatZip {
		return scanZip(path, visit)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	r := bufio.NewReader(f)

	switch format {
	case FormatTar:
		return scanTar(r, visit)
	case FormatTarGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnrecognized, err)
		}
		defer func() { _ = zr.Close() }()
		return scanTar(zr, visit)
	case FormatTarZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnrecognized, err)
		}
		defer zr.Close()
		return scanTar(zr, visit)
	case FormatTarBzip2:
		head, err := r.Peek(3)
		if err != nil || !bytes.Equal(head, magicBzip2) {
			return fmt.Errorf("%w: missing bzip2 header", ErrUnrecognized)
		}
		return scanTar(bzip2.NewReader(r), visit)
	case FormatGzip:
		return scanGzip(r, visit)
	case FormatExternal:
		return fmt.Errorf("%w: %s requires an external extractor", ErrUnrecognized, format)
	default:
		return fmt.Errorf("%w: %s", ErrUnrecognized, format)
	}
}

func scanZip(path string, visit func(Entry)) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
			return fmt.Errorf("%w: %w", ErrUnrecognized, err)
		}
		return err
	}
	defer func() { _ = zr.Close() }()
	for _, f := range zr.File {
		visit(Entry{Name: f.Name, ModTime: f.Modified, IsDir: f.FileInfo().IsDir()})
	}
	return nil
}

func scanTar(r io.Reader, visit func(Entry)) error {
	tr := tar.NewReader(r)
	for count := 0; ; count++ {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			if count == 0 {
				return fmt.Errorf("%w: empty tar stream", ErrUnrecognized)
			}
			return nil
		}
		if err != nil {
			if count == 0 {
				return fmt.Errorf("%w: %w", ErrUnrecognized, err)
			}
			return fmt.Errorf("read tar entry: %w", err)
		}
		visit(Entry{Name: hdr.Name, ModTime: hdr.ModTime, IsDir: hdr.Typeflag == tar.TypeDir})
	}
}

// scanGzip reports the single member a bare gzip stream carries, dated by the
// MTIME header field.
func scanGzip(r io.Reader, visit func(Entry)) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnrecognized, err)
	}
	defer func() { _ = zr.Close() }()
	visit(Entry{Name: zr.Name, ModTime: zr.ModTime})
	return nil
}
