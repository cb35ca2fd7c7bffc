package llm

import (
	"fmt"
	"strings"

	"github.com/msdcl/nlq-backend/internal/schema"
)

const promptTemplate = `You are a PostgreSQL analytics expert for an e-commerce dashboard.
Translate the user's question into exactly one SQL SELECT statement.

Rules:
- Output a single SELECT statement. Never produce INSERT, UPDATE, DELETE, DDL or multiple statements.
- Use only the tables and columns listed below.
- Prefer explicit JOINs using the relationships listed below.
- Always include a LIMIT clause unless the question asks for a single aggregate.
- Question language code: %s. Column aliases should stay in English.

RELEVANT SCHEMA (ranked by similarity to the question):
%s
RELATIONSHIPS:
%s
USER QUESTION:
%s

Respond with the SQL inside a fenced sql code block, followed by one short
plain-text paragraph explaining what the query computes.`

// BuildPrompt assembles the generation prompt from the ranked schema
// context and the relationship hints.
func BuildPrompt(question, language string, items []schema.ContextItem, rels []schema.Relationship) string {
	var ctxLines strings.Builder
	for _, it := range items {
		fmt.Fprintf(&ctxLines, "- %s.%s (%s): %s [similarity %.2f]\n",
			it.Table, it.Column, it.DataType, it.Description, it.Similarity)
	}
	if ctxLines.Len() == 0 {
		ctxLines.WriteString("- (no schema context matched)\n")
	}

	var relLines strings.Builder
	for _, r := range rels {
		fmt.Fprintf(&relLines, "- %s.%s -> %s.%s", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn)
		if r.Description != "" {
			fmt.Fprintf(&relLines, " (%s)", r.Description)
		}
		relLines.WriteString("\n")
	}
	if relLines.Len() == 0 {
		relLines.WriteString("- (none)\n")
	}

	if language == "" {
		language = "en"
	}

	return fmt.Sprintf(promptTemplate, language, ctxLines.String(), relLines.String(), question)
}
