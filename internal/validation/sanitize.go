package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// maxDecodeRounds bounds how many layers of entity encoding are peeled off.
const maxDecodeRounds = 4

// SanitizeText strips all markup from user text and trims surrounding whitespace.
// Line breaks inside the text are kept. Entity-encoded markup is decoded and
// stripped too, so the stored text never turns back into HTML.
func SanitizeText(s string) string {
	for range maxDecodeRounds {
		clean := strictPolicy.Sanitize(s)
		plain := html.UnescapeString(clean)
		if plain == s {
			return strings.TrimSpace(plain)
		}
		s = plain
	}
	// Still decoding into new markup: keep it escaped.
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// PlainText collapses sanitized text to single-spaced words for search indexing.
func PlainText(s string) string {
	s = strings.NewReplacer("</p>", " ", "<br>", " ", "</div>", " ").Replace(s)
	return strings.Join(strings.Fields(SanitizeText(s)), " ")
}
