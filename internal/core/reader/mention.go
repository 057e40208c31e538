package reader

import (
	"regexp"
	"strings"
)

var mentionRe = regexp.MustCompile(`\[id\d+\|([^\]]+)\]`)

// RewriteMentions заменяет упоминания вида "[id123|Имя]" на отображаемое имя.
// Скобки другой формы, например "[club1|Группа]" или "[not a mention]", не трогаются.
func RewriteMentions(text string) string {
	if !strings.Contains(text, "[") {
		return text
	}
	return mentionRe.ReplaceAllString(text, "$1")
}
