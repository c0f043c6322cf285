package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// Snippet renders an upstream response body as a single line of plain text
// no longer than max runes. HTML error pages are reduced to their text.
func Snippet(body []byte, max int) string {
	text := html2text.HTML2Text(string(body))
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > max {
		return string(r[:max]) + "…"
	}
	return text
}
