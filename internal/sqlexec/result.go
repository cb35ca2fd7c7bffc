package sqlexec

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ColumnInfo describes one column of a normalized result set. The wire
// protocol does not report nullability for result columns (outer joins and
// expressions can always produce NULL), so Nullable is reported true.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ExecutionResult is the normalized outcome of one execution attempt.
// Failures (driver errors, statement timeout) are reported as data via the
// Success discriminant rather than raised, so a pipeline can present
// partial failure without crashing the request. Created once, owned by the
// caller, never shared across requests.
type ExecutionResult struct {
	Rows            []map[string]any `json:"rows"`
	Columns         []ColumnInfo     `json:"columns"`
	RowCount        int              `json:"rowCount"`
	ExecutionTimeMS int64            `json:"executionTimeMs"`
	Success         bool             `json:"success"`
	Error           string           `json:"error,omitempty"`
	TimedOut        bool             `json:"timedOut,omitempty"`
}

// CostEstimate is a read-only projection of the planner's cost output.
type CostEstimate struct {
	TotalCost     float64 `json:"totalCost"`
	EstimatedRows int64   `json:"estimatedRows"`
	CostPerRow    float64 `json:"costPerRow"`
}

// Plan holds the engine's full execution plan as produced.
type Plan struct {
	Plan        []byte    `json:"plan"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// SyntaxCheck is the outcome of a plan-only syntax probe.
type SyntaxCheck struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

var typeMap = pgtype.NewMap()

// typeName maps a data type OID to a readable name, falling back to the
// raw OID for types outside the default map.
func typeName(oid uint32) string {
	if t, ok := typeMap.TypeForOID(oid); ok {
		return t.Name
	}
	return "unknown"
}
