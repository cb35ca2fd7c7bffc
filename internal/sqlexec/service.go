package sqlexec

import (
	"context"

	"github.com/msdcl/nlq-backend/internal/config"
	"github.com/msdcl/nlq-backend/internal/sqlguard"
)

// Service is the composition root for validation, bounded execution and
// plan estimation. Everything else in the repo depends on this type rather
// than touching the driver directly.
type Service struct {
	guard    *sqlguard.Validator
	executor *Executor
	planner  *Planner
	pool     Pool
}

func NewService(pool Pool, cfg config.QueryConfig) *Service {
	return &Service{
		guard:    sqlguard.New(),
		executor: NewExecutor(pool, cfg),
		planner:  NewPlanner(pool),
		pool:     pool,
	}
}

// Validate runs the safety checks without touching the database.
func (s *Service) Validate(sql string) error {
	return s.guard.Validate(sql)
}

// Execute runs an already-validated SELECT under the configured bounds.
func (s *Service) Execute(ctx context.Context, sql string, opts ExecOptions) ExecutionResult {
	return s.executor.Execute(ctx, sql, opts)
}

// EstimateCost returns a plan-only cost estimate.
func (s *Service) EstimateCost(ctx context.Context, sql string) (CostEstimate, error) {
	return s.planner.EstimateCost(ctx, sql)
}

// ExecutionPlan returns an analyze-enabled plan with real timing.
func (s *Service) ExecutionPlan(ctx context.Context, sql string) (Plan, error) {
	return s.planner.ExecutionPlan(ctx, sql)
}

// ValidateSyntax asks the engine whether the statement parses.
func (s *Service) ValidateSyntax(ctx context.Context, sql string) SyntaxCheck {
	return s.planner.ValidateSyntax(ctx, sql)
}

// Healthy reports whether the analytics database is reachable.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

// Close releases the underlying pool.
func (s *Service) Close() {
	s.pool.Close()
}
