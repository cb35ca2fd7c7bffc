package sqlexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Planner obtains cost estimates and execution plans through the engine's
// EXPLAIN machinery. EstimateCost and ValidateSyntax are plan-only and move
// no data; ExecutionPlan runs ANALYZE, which does execute the statement —
// safe only because the validator restricts input to SELECT.
type Planner struct {
	pool Pool
}

func NewPlanner(pool Pool) *Planner {
	return &Planner{pool: pool}
}

type explainNode struct {
	Plan struct {
		TotalCost float64 `json:"Total Cost"`
		PlanRows  int64   `json:"Plan Rows"`
	} `json:"Plan"`
}

// EstimateCost asks the engine for a plan-only cost estimate.
func (p *Planner) EstimateCost(ctx context.Context, sql string) (CostEstimate, error) {
	raw, err := p.explain(ctx, "EXPLAIN (FORMAT JSON) "+sql)
	if err != nil {
		return CostEstimate{}, err
	}

	var nodes []explainNode
	if err := json.Unmarshal(raw, &nodes); err != nil || len(nodes) == 0 {
		return CostEstimate{}, fmt.Errorf("%w: unexpected plan shape", ErrPlanningFailed)
	}

	total := nodes[0].Plan.TotalCost
	rows := nodes[0].Plan.PlanRows

	divisor := rows
	if divisor < 1 {
		divisor = 1
	}

	return CostEstimate{
		TotalCost:     total,
		EstimatedRows: rows,
		CostPerRow:    total / float64(divisor),
	}, nil
}

// ExecutionPlan runs an analyze-enabled introspection and returns the full
// plan with real timing.
func (p *Planner) ExecutionPlan(ctx context.Context, sql string) (Plan, error) {
	raw, err := p.explain(ctx, "EXPLAIN (ANALYZE, FORMAT JSON) "+sql)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Plan: raw, GeneratedAt: time.Now()}, nil
}

// ValidateSyntax uses a plan-only probe as a cheap syntax check. The
// engine's message and SQLSTATE pass through for diagnostics.
func (p *Planner) ValidateSyntax(ctx context.Context, sql string) SyntaxCheck {
	_, err := p.explain(ctx, "EXPLAIN (FORMAT JSON) "+sql)
	if err == nil {
		return SyntaxCheck{Valid: true}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return SyntaxCheck{Valid: false, Message: pgErr.Message, ErrorCode: pgErr.Code}
	}
	return SyntaxCheck{Valid: false, Message: err.Error()}
}

func (p *Planner) explain(ctx context.Context, stmt string) ([]byte, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, &QueryError{Op: "acquire_conn", Err: err}
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, stmt)
	if err != nil {
		return nil, wrapPlanError(err)
	}
	defer rows.Close()

	var raw []byte
	if rows.Next() {
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapPlanError(err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPlanError(err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: engine returned no plan", ErrPlanningFailed)
	}
	return raw, nil
}

// wrapPlanError keeps the PgError in the chain so callers can read
// SQLSTATE. ANALYZE runs the statement for real, so a server-side
// cancellation surfaces here as ErrQueryTimeout rather than a planning
// failure.
func wrapPlanError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled {
		return fmt.Errorf("%w: %w", ErrQueryTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrPlanningFailed, err)
}
