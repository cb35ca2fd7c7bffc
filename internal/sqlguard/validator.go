// Package sqlguard decides whether LLM-generated SQL may run against the
// analytics database. Checks are lexical (substring and regex over the
// uppercased text), not a parse tree; a legitimate identifier containing a
// banned substring will be rejected. That tradeoff is deliberate.
package sqlguard

import (
	"regexp"
	"strings"
)

// Keywords that mutate data or schema, or escape into procedural execution.
var dangerousKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
}

// System catalog prefixes across the engines we may sit in front of.
var systemTablePatterns = []string{
	"PG_", "INFORMATION_SCHEMA", "SYS", "MYSQL", "PERFORMANCE_SCHEMA",
}

// Server-side I/O functions that read or write the database host filesystem.
var dangerousFunctions = []string{
	"PG_READ_FILE", "PG_LS_DIR", "LO_IMPORT", "LO_EXPORT",
}

// Catches a system catalog reference buried in a nested SELECT even when
// the outer statement passed the single-pass substring checks.
var systemSubqueryPattern = regexp.MustCompile(
	`\(\s*SELECT[\s\S]*?FROM\s+(PG_|INFORMATION_SCHEMA|SYS\.|MYSQL\.|PERFORMANCE_SCHEMA)`)

// Validator is a pure predicate over SQL text. It holds no state; the same
// input always yields the same verdict.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate returns nil if sql is safe to execute, or a *Violation naming
// the first check that failed. The input is never mutated; normalization
// (trim, uppercase) is for comparison only.
func (v *Validator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &Violation{Kind: KindEmptyQuery, Detail: "query is empty"}
	}

	upper := strings.ToUpper(trimmed)

	for _, kw := range dangerousKeywords {
		if strings.Contains(upper, kw) {
			return &Violation{Kind: KindDangerousOperation, Detail: kw}
		}
	}

	for _, pat := range systemTablePatterns {
		if strings.Contains(upper, pat) {
			return &Violation{Kind: KindSystemTableAccess, Detail: pat}
		}
	}

	if strings.Contains(upper, "COPY") || strings.Contains(upper, `\COPY`) {
		return &Violation{Kind: KindFileSystemAccess, Detail: "COPY"}
	}

	for _, fn := range dangerousFunctions {
		if strings.Contains(upper, fn) {
			return &Violation{Kind: KindDangerousFunction, Detail: strings.ToLower(fn)}
		}
	}

	if !strings.HasPrefix(upper, "SELECT") {
		return &Violation{Kind: KindNotASelect, Detail: "only SELECT statements are allowed"}
	}

	if m := systemSubqueryPattern.FindStringSubmatch(upper); m != nil {
		return &Violation{Kind: KindDangerousSubquery, Detail: m[1]}
	}

	return nil
}
