package dataset

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// EncodingAuto keeps valid UTF-8 and falls back to Windows-1252 otherwise.
const EncodingAuto = "auto"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts raw file bytes to UTF-8 according to the encoding label.
func decodeText(raw []byte, label string) ([]byte, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == EncodingAuto {
		if utf8.Valid(raw) {
			return bytes.TrimPrefix(raw, utf8BOM), nil
		}
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode windows-1252: %w", err)
		}
		return out, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return bytes.TrimPrefix(out, utf8BOM), nil
}
