package validation

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/hivefund/reconciler/src/logger"
)

// isBinaryContent checks if a buffer contains binary control characters (like null bytes)
// which indicate the content is not a text-based CSV export.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	return !utf8.Valid(buf)
}

// ValidateTextContent inspects the first KB of a downloaded ledger export and rejects anything
// that is not plain text/CSV (HTML error pages, spreadsheets, binaries).
func ValidateTextContent(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("content is empty")
	}
	head := content
	if len(head) > 1024 {
		head = head[:1024]
		// do not cut a multi-byte rune in half
		for len(head) > 0 && !utf8.Valid(head) {
			head = head[:len(head)-1]
		}
	}

	if isBinaryContent(head) {
		logger.L.Warn("Ledger content rejected: binary content detected")
		return "application/octet-stream", fmt.Errorf("content appears to be binary, not text/CSV")
	}

	detected := http.DetectContentType(head)
	detected = strings.ToLower(strings.Split(detected, ";")[0])

	allowed := map[string]bool{
		"text/plain":      true,
		"text/csv":        true,
		"application/csv": true,
	}
	if !allowed[detected] {
		logger.L.Warn("Disallowed ledger content type", "detectedContentType", detected)
		return detected, fmt.Errorf("detected content type '%s' is not allowed", detected)
	}
	return detected, nil
}
