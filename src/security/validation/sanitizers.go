// src/security/validation/sanitizers.go
package validation

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Definition of strict sanitization policy
	strictHTMLPolicy *bluemonday.Policy
)

// textEntityDecoder reverts the policy's escaping of ampersands and quotes. Angle brackets stay
// escaped so escaped markup in a cell never turns back into markup.
var textEntityDecoder = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)

func init() {
	strictHTMLPolicy = bluemonday.StrictPolicy() // Removes all HTML tags
}

// SanitizeText removes all HTML tags and attributes from a spreadsheet cell. Labels like "R&D"
// survive for matching; "<" and ">" come out as "&lt;" and "&gt;".
func SanitizeText(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return textEntityDecoder.Replace(strictHTMLPolicy.Sanitize(s))
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1 // Drop the rune
	}, s)
}
