package reader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/joseph-ayodele/order-transformer/internal/common"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16       = "utf-16"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "iso-8859-1"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// bytes with no assigned character in windows-1252
var cp1252Undefined = [...]byte{0x81, 0x8D, 0x8F, 0x90, 0x9D}

var errUndecodable = errors.New("content does not decode")

// decodeText tries each candidate in order and returns the text and the encoding that produced it.
// A UTF-16 byte order mark wins over the candidate list.
func decodeText(b []byte, candidates []string) (string, string, error) {
	if bytes.HasPrefix(b, bomUTF16LE) || bytes.HasPrefix(b, bomUTF16BE) {
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
		if err == nil {
			return string(out), EncodingUTF16, nil
		}
	}

	var tried []string
	var lastErr error
	for _, name := range candidates {
		name = strings.ToLower(strings.TrimSpace(name))
		tried = append(tried, name)
		text, err := decodeAs(b, name)
		if err == nil {
			return text, name, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errUndecodable
	}
	return "", "", common.NewDecodeError(tried, lastErr)
}

func decodeAs(b []byte, name string) (string, error) {
	switch name {
	case EncodingUTF8, "utf8":
		b = bytes.TrimPrefix(b, bomUTF8)
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%s: %w", name, errUndecodable)
		}
		return string(b), nil
	case EncodingWindows1252, "cp1252":
		for _, c := range b {
			for _, u := range cp1252Undefined {
				if c == u {
					return "", fmt.Errorf("%s: byte 0x%X: %w", name, c, errUndecodable)
				}
			}
		}
		return decodeWith(charmap.Windows1252, b)
	case EncodingLatin1, "latin-1", "latin1":
		return decodeWith(charmap.ISO8859_1, b)
	}
	return "", fmt.Errorf("unknown encoding %q", name)
}

func decodeWith(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
