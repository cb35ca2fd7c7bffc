package sqlexec

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/msdcl/nlq-backend/internal/config"
)

// SQLSTATE raised when statement_timeout cancels a query server-side.
const pgQueryCanceled = "57014"

var limitToken = regexp.MustCompile(`(?i)\bLIMIT\b`)

// ExecOptions override the configured bounds for one execution.
type ExecOptions struct {
	MaxResults int
	Timeout    time.Duration
}

// Executor runs an already-validated SELECT under strict resource bounds:
// a server-enforced statement timeout and an injected LIMIT. It does not
// re-validate its input; the database's own privilege model is the last
// line of defense behind the validator.
type Executor struct {
	pool Pool
	cfg  config.QueryConfig
}

func NewExecutor(pool Pool, cfg config.QueryConfig) *Executor {
	return &Executor{pool: pool, cfg: cfg}
}

// Execute runs sql and normalizes the outcome. Driver errors and timeouts
// come back inside the result, not as Go errors.
func (e *Executor) Execute(ctx context.Context, sql string, opts ExecOptions) ExecutionResult {
	start := time.Now()

	timeout := e.cfg.StatementTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	maxRows := e.cfg.MaxResultRows
	if opts.MaxResults > 0 {
		maxRows = opts.MaxResults
	}

	bounded := InjectLimit(sql, maxRows)

	log.Debug().Str("sql", FormatForLog(bounded)).Dur("timeout", timeout).Msg("executing query")

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return failure(err, start)
	}
	defer conn.Release()

	// statement_timeout is set per-checkout and reset before the
	// connection goes back to the pool, even when the query failed.
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", timeout.Milliseconds())); err != nil {
		return failure(err, start)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "RESET statement_timeout"); err != nil {
			log.Warn().Err(err).Msg("failed to reset statement_timeout")
		}
	}()

	rows, err := conn.Query(ctx, bounded)
	if err != nil {
		return failure(err, start)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return failure(err, start)
	}

	result.Success = true
	result.ExecutionTimeMS = time.Since(start).Milliseconds()
	return result
}

func collectRows(rows pgx.Rows) (ExecutionResult, error) {
	fields := rows.FieldDescriptions()
	columns := make([]ColumnInfo, len(fields))
	for i, fd := range fields {
		columns[i] = ColumnInfo{
			Name:     fd.Name,
			Type:     typeName(fd.DataTypeOID),
			Nullable: true,
		}
	}

	out := make([]map[string]any, 0, 64)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return ExecutionResult{}, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return ExecutionResult{}, err
	}

	return ExecutionResult{
		Rows:     out,
		Columns:  columns,
		RowCount: len(out),
	}, nil
}

func failure(err error, start time.Time) ExecutionResult {
	msg, timedOut := classifyError(err)
	return ExecutionResult{
		Success:         false,
		Error:           msg,
		TimedOut:        timedOut,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
}

func classifyError(err error) (msg string, timedOut bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgQueryCanceled {
			return "query timeout: statement exceeded the configured timeout", true
		}
		return pgErr.Message, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "query timeout: request deadline exceeded", true
	}
	return err.Error(), false
}

// InjectLimit appends a LIMIT clause when the statement does not already
// carry one. An existing LIMIT wins, whatever its value.
func InjectLimit(sql string, maxRows int) string {
	if limitToken.MatchString(sql) {
		return sql
	}
	trimmed := strings.TrimRight(strings.TrimSpace(sql), "; \t\n")
	return fmt.Sprintf("%s LIMIT %d", trimmed, maxRows)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// FormatForLog pretty-prints SQL for logs only. It never alters what gets
// executed, and any input it cannot handle comes back verbatim.
func FormatForLog(sql string) string {
	formatted := strings.TrimSpace(whitespaceRun.ReplaceAllString(sql, " "))
	if formatted == "" {
		return sql
	}
	return formatted
}
