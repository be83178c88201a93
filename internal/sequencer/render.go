package sequencer

import (
	"regexp"
	"strings"

	"github.com/karimelassali/baraka-dispatch/internal/models"
)

// variable pattern for personalization tokens: {{variable_name}}
var varPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// RenderMessage substitutes per-recipient personalization tokens into the
// message template. Unknown tokens are left unchanged so a typo is visible in
// the delivered text rather than silently dropped.
func RenderMessage(template string, rcpt models.Recipient) string {
	vars := map[string]string{
		"name":         rcpt.DisplayName,
		"display_name": rcpt.DisplayName,
		"contact":      rcpt.Contact,
	}

	return varPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := vars[key]; ok {
			return val
		}
		return match
	})
}
