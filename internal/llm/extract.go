package llm

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)\\n?```")

// SplitResponse separates the SQL from a model response. The SQL is taken
// from the first fenced code block; everything outside the fences becomes
// the explanation. Responses without fences are treated as bare SQL.
func SplitResponse(text string) (sql, explanation string) {
	matches := fencedBlock.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), ""
	}

	m := matches[0]
	sql = strings.TrimSpace(text[m[4]:m[5]])

	var rest strings.Builder
	rest.WriteString(text[:m[0]])
	last := m[1]
	for _, extra := range matches[1:] {
		rest.WriteString(text[last:extra[0]])
		last = extra[1]
	}
	rest.WriteString(text[last:])

	return sql, strings.TrimSpace(rest.String())
}
