package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB wraps a PostgreSQL connection pool for the query history log.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL")
	return &DB{pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool exposes the underlying pool for components that share the
// application database (dashboard queries, schema catalog).
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Healthy checks database connectivity.
func (db *DB) Healthy(ctx context.Context) bool {
	return db.pool.Ping(ctx) == nil
}

// LogQuery inserts a query record into the history log.
func (db *DB) LogQuery(ctx context.Context, rec *QueryRecord) error {
	query := `
		INSERT INTO nlq_queries (id, question, language, generated_sql, status,
			reject_reason, row_count, confidence, generation_ms, execution_ms,
			request_ip, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := db.pool.Exec(ctx, query,
		rec.ID,
		truncateForDB(rec.Question, 4096),
		rec.Language,
		truncateForDB(rec.GeneratedSQL, 16384),
		rec.Status,
		truncateForDB(rec.RejectReason, 1024),
		rec.RowCount, rec.Confidence,
		rec.GenerationMS, rec.ExecutionMS,
		rec.RequestIP,
		rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting query record: %w", err)
	}
	return nil
}

// GetQuery retrieves a single query record by ID.
func (db *DB) GetQuery(ctx context.Context, id string) (*QueryRecord, error) {
	query := `
		SELECT id, question, language, generated_sql, status,
			reject_reason, row_count, confidence, generation_ms, execution_ms,
			request_ip, created_at, completed_at
		FROM nlq_queries WHERE id = $1`

	var rec QueryRecord
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.Question, &rec.Language, &rec.GeneratedSQL, &rec.Status,
		&rec.RejectReason, &rec.RowCount, &rec.Confidence,
		&rec.GenerationMS, &rec.ExecutionMS,
		&rec.RequestIP, &rec.CreatedAt, &rec.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", id, err)
	}
	return &rec, nil
}

// ListQueries returns query records matching the filter, newest first.
func (db *DB) ListQueries(ctx context.Context, filter QueryFilter) ([]QueryRecord, error) {
	query := `
		SELECT id, question, language, status, reject_reason,
			row_count, confidence, generation_ms, execution_ms,
			created_at, completed_at
		FROM nlq_queries
		WHERE ($1 = '' OR language = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := db.pool.Query(ctx, query,
		filter.Language, filter.Status, filter.Since, filter.Until, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var results []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		if err := rows.Scan(
			&rec.ID, &rec.Question, &rec.Language, &rec.Status, &rec.RejectReason,
			&rec.RowCount, &rec.Confidence,
			&rec.GenerationMS, &rec.ExecutionMS,
			&rec.CreatedAt, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

func truncateForDB(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
