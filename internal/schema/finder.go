// Package schema maps natural-language questions onto the analytics
// schema. Schema elements are embedded into a vector index; at query time
// the question is embedded and the top-K closest elements come back as
// context for SQL generation.
package schema

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ContextItem is one schema element ranked against a question. Consumed
// read-only by the orchestrator to build the LLM prompt.
type ContextItem struct {
	Table       string  `json:"table"`
	Column      string  `json:"column"`
	DataType    string  `json:"dataType"`
	Description string  `json:"description"`
	Similarity  float32 `json:"similarityScore"`
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one scored hit from the vector index.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Vector is one embedding plus the metadata stored alongside it.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// VectorIndex is the cosine-similarity store behind the finder.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, vectors []Vector) error
}

// Finder returns the schema elements most relevant to a question.
type Finder struct {
	embedder Embedder
	index    VectorIndex
}

func NewFinder(embedder Embedder, index VectorIndex) *Finder {
	return &Finder{embedder: embedder, index: index}
}

// TopK embeds the question and returns the k closest schema elements,
// highest similarity first.
func (f *Finder) TopK(ctx context.Context, question string, k int) ([]ContextItem, error) {
	if k < 1 {
		k = 5
	}

	vec, err := f.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := f.index.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	items := make([]ContextItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, ContextItem{
			Table:       m.Metadata["table"],
			Column:      m.Metadata["column"],
			DataType:    m.Metadata["data_type"],
			Description: m.Metadata["description"],
			Similarity:  m.Score,
		})
	}

	log.Debug().Int("matches", len(items)).Msg("schema context resolved")
	return items, nil
}
