package signature

import (
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const (
	securityDirectory    = 4
	certTypePKCSSigned   = 0x0002
	winCertificateHeader = 8
)

var errUnsigned = errors.New("no embedded signature")

// peSignatures returns the PKCS#7 blobs stored in the WIN_CERTIFICATE table of
// a PE image. The security directory address is a file offset, not an RVA.
func peSignatures(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, err := pe.NewFile(f)
	if err != nil {
		return nil, fmt.Errorf("parse pe: %w", err)
	}
	defer func() { _ = img.Close() }()

	var dir pe.DataDirectory
	switch oh := img.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes <= securityDirectory {
			return nil, errUnsigned
		}
		dir = oh.DataDirectory[securityDirectory]
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes <= securityDirectory {
			return nil, errUnsigned
		}
		dir = oh.DataDirectory[securityDirectory]
	default:
		return nil, errUnsigned
	}
	if dir.VirtualAddress == 0 || dir.Size < winCertificateHeader {
		return nil, errUnsigned
	}
	if dir.Size > maxSignatureSize {
		return nil, fmt.Errorf("certificate table of %d bytes exceeds limit", dir.Size)
	}

	table := make([]byte, dir.Size)
	if _, err := f.ReadAt(table, int64(dir.VirtualAddress)); err != nil {
		return nil, fmt.Errorf("read certificate table: %w", err)
	}
	return parseCertificateTable(table)
}

func parseCertificateTable(table []byte) ([][]byte, error) {
	var blobs [][]byte
	for off := 0; off+winCertificateHeader <= len(table); {
		length := int(binary.LittleEndian.Uint32(table[off:]))
		certType := binary.LittleEndian.Uint16(table[off+6:])
		if length < winCertificateHeader || off+length > len(table) {
			break
		}
		if certType == certTypePKCSSigned {
			blobs = append(blobs, table[off+winCertificateHeader:off+length])
		}
		// Entries are quadword aligned.
		off += (length + 7) &^ 7
	}
	if len(blobs) == 0 {
		return nil, errUnsigned
	}
	return blobs, nil
}
