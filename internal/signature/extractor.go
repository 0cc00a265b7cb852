package signature

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datefixer/internal/logging"
)

// maxSignatureSize caps how much of a non-PE file is read looking for a signature.
const maxSignatureSize = 64 << 20

// Extractor returns signing timestamps for signed artifacts.
type Extractor struct {
	logger *slog.Logger
}

// New constructs an Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.NewComponentLogger(logger, "signature")}
}

// SignatureDate returns the signing time of path when it carries a parseable
// signature. Every failure, including a panic in the PKCS#7 decoder, is
// reported as no date.
func (e *Extractor) SignatureDate(path string) (date time.Time, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Debug("signature decoder panic", logging.String(logging.FieldPath, path), logging.Any("panic", rec))
			date, ok = time.Time{}, false
		}
	}()

	blobs, err := e.signatureBlobs(path)
	if err != nil {
		e.logger.Debug("no signature found", logging.String(logging.FieldPath, path), logging.Error(err))
		return time.Time{}, false
	}
	for _, blob := range blobs {
		t, err := SigningTime(blob)
		if err != nil {
			e.logger.Debug("signature unusable", logging.String(logging.FieldPath, path), logging.Error(err))
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

func (e *Extractor) signatureBlobs(path string) ([][]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".dll", ".sys", ".efi", ".scr":
		return peSignatures(path)
	case ".ps1", ".js", ".vbs", ".wsf":
		data, err := readLimited(path)
		if err != nil {
			return nil, err
		}
		blob, err := scriptSignature(data)
		if err != nil {
			return nil, err
		}
		return [][]byte{blob}, nil
	default:
		if blobs, err := peSignatures(path); err == nil {
			return blobs, nil
		}
		data, err := readLimited(path)
		if err != nil {
			return nil, err
		}
		return [][]byte{data}, nil
	}
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxSignatureSize {
		return nil, fmt.Errorf("%s larger than %d bytes", path, maxSignatureSize)
	}
	return os.ReadFile(path)
}
