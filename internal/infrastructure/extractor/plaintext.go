package extractor

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// extractPlaintext interprets the payload as UTF-8 text, dropping a BOM
// and replacing invalid byte sequences instead of failing the document.
func extractPlaintext(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "�")
}
