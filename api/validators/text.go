package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanText prepares free text (reasons, notes, tracking numbers) for storage:
// surrounding space is trimmed, control characters other than newline and tab
// are dropped, and the result is cut to maxRunes without splitting a
// character. maxRunes <= 0 means no limit.
func CleanText(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		cleaned = string([]rune(cleaned)[:maxRunes])
	}
	return strings.TrimSpace(cleaned)
}
