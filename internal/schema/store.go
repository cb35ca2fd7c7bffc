package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Element is one row of the schema_embeddings metadata table: a table or
// column the NLQ pipeline may reference, with the description that gets
// embedded.
type Element struct {
	ID          string
	Table       string
	Column      string
	DataType    string
	Description string
	EmbeddedAt  *time.Time
}

// Relationship is a foreign-key-like link used to enrich LLM prompts.
type Relationship struct {
	FromTable   string
	FromColumn  string
	ToTable     string
	ToColumn    string
	Description string
}

// Store reads the schema metadata tables. It does not own their population
// cadence beyond the refresh trigger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Elements loads every schema element registered for embedding.
func (s *Store) Elements(ctx context.Context) ([]Element, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, table_name, column_name, data_type, description, embedded_at
		FROM schema_embeddings
		ORDER BY table_name, column_name`)
	if err != nil {
		return nil, fmt.Errorf("querying schema elements: %w", err)
	}
	defer rows.Close()

	var out []Element
	for rows.Next() {
		var e Element
		if err := rows.Scan(&e.ID, &e.Table, &e.Column, &e.DataType, &e.Description, &e.EmbeddedAt); err != nil {
			return nil, fmt.Errorf("scanning schema element: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Relationships loads the foreign-key-like links between tables.
func (s *Store) Relationships(ctx context.Context) ([]Relationship, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT from_table, from_column, to_table, to_column, COALESCE(description, '')
		FROM schema_relationships
		ORDER BY from_table, from_column`)
	if err != nil {
		return nil, fmt.Errorf("querying schema relationships: %w", err)
	}
	defer rows.Close()

	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.FromTable, &r.FromColumn, &r.ToTable, &r.ToColumn, &r.Description); err != nil {
			return nil, fmt.Errorf("scanning schema relationship: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) markEmbedded(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE schema_embeddings SET embedded_at = now() WHERE id = $1`, id)
	return err
}

// Refresh re-embeds every schema element and upserts the vectors. Exposed
// as the trigger behind POST /api/nlq/schema/refresh.
func (s *Store) Refresh(ctx context.Context, embedder Embedder, index VectorIndex) (int, error) {
	elements, err := s.Elements(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, e := range elements {
		text := e.Description
		if text == "" {
			text = fmt.Sprintf("%s.%s (%s)", e.Table, e.Column, e.DataType)
		}

		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			return refreshed, fmt.Errorf("embedding %s.%s: %w", e.Table, e.Column, err)
		}

		err = index.Upsert(ctx, []Vector{{
			ID:     e.ID,
			Values: vec,
			Metadata: map[string]string{
				"table":       e.Table,
				"column":      e.Column,
				"data_type":   e.DataType,
				"description": e.Description,
			},
		}})
		if err != nil {
			return refreshed, err
		}

		if err := s.markEmbedded(ctx, e.ID); err != nil {
			log.Warn().Err(err).Str("element", e.ID).Msg("failed to mark element embedded")
		}
		refreshed++
	}

	log.Info().Int("elements", refreshed).Msg("schema embeddings refreshed")
	return refreshed, nil
}
