// Package htmlsanitize cleans admin-authored text before it is stored and
// pushed to devices.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// PlainText removes every tag from s and returns the remaining text with
// entities decoded, trimmed. Notification titles and bodies are shown as
// plain text on devices, so no markup survives.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	clean := strictPolicy().Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(clean))
}
