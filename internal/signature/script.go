package signature

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	beginMarker = "Begin signature block"
	endMarker   = "End signature block"
)

var errNoScriptBlock = errors.New("no script signature block")

// scriptSignature decodes the base64 signature block Windows appends to
// PowerShell, JScript, VBScript and WSH files. Each block line carries a
// language-specific comment prefix (`# `, `// SIG // `, `'' SIG '' `,
// `** SIG ** `) followed by one run of base64 without spaces, so the last
// field of every line is the payload.
func scriptSignature(data []byte) ([]byte, error) {
	text, err := decodeScriptText(data)
	if err != nil {
		return nil, err
	}

	var payload strings.Builder
	inBlock := false
	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.Contains(line, beginMarker):
			inBlock = true
			payload.Reset()
			continue
		case strings.Contains(line, endMarker):
			if !inBlock {
				continue
			}
			blob, err := base64.StdEncoding.DecodeString(payload.String())
			if err != nil {
				return nil, fmt.Errorf("decode signature block: %w", err)
			}
			return blob, nil
		}
		if !inBlock {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		chunk := fields[len(fields)-1]
		chunk = strings.TrimSuffix(chunk, "</signature>")
		payload.WriteString(chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan script: %w", err)
	}
	return nil, errNoScriptBlock
}

// decodeScriptText converts UTF-16 scripts (common for signed .ps1 files) to
// UTF-8 when a byte order mark announces them.
func decodeScriptText(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte{0xFF, 0xFE}) && !bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		return data, nil
	}
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, fmt.Errorf("decode utf-16 script: %w", err)
	}
	return out, nil
}
