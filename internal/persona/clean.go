package persona

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var reControl = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)

// CleanString strips ASCII control characters (newlines and tabs survive),
// folds ideographic spaces into regular spaces, applies NFC normalization
// and trims surrounding whitespace.
func CleanString(s string) string {
	s = reControl.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "　", " ")
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}
