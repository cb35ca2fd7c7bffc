package nlq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msdcl/nlq-backend/internal/config"
	"github.com/msdcl/nlq-backend/internal/llm"
	"github.com/msdcl/nlq-backend/internal/schema"
	"github.com/msdcl/nlq-backend/internal/sqlexec"
	"github.com/msdcl/nlq-backend/internal/sqlguard"
)

type stubFinder struct {
	items []schema.ContextItem
	err   error
}

func (s *stubFinder) TopK(_ context.Context, _ string, _ int) ([]schema.ContextItem, error) {
	return s.items, s.err
}

type stubRels struct {
	rels []schema.Relationship
	err  error
}

func (s *stubRels) Relationships(_ context.Context) ([]schema.Relationship, error) {
	return s.rels, s.err
}

type stubGenerator struct {
	out llm.Generated
	err error
}

func (s *stubGenerator) GenerateSQL(_ context.Context, _, _ string, _ []schema.ContextItem, _ []schema.Relationship) (llm.Generated, error) {
	return s.out, s.err
}

type stubExec struct {
	guard       *sqlguard.Validator
	syntax      sqlexec.SyntaxCheck
	result      sqlexec.ExecutionResult
	executed    []string
	syntaxCalls int
}

func (s *stubExec) Validate(sql string) error {
	return s.guard.Validate(sql)
}

func (s *stubExec) ValidateSyntax(_ context.Context, _ string) sqlexec.SyntaxCheck {
	s.syntaxCalls++
	return s.syntax
}

func (s *stubExec) Execute(_ context.Context, sql string, _ sqlexec.ExecOptions) sqlexec.ExecutionResult {
	s.executed = append(s.executed, sql)
	return s.result
}

func testOrchestrator(gen *stubGenerator, exec *stubExec) *Orchestrator {
	finder := &stubFinder{items: []schema.ContextItem{
		{Table: "customers", Column: "id", DataType: "int", Similarity: 0.8},
		{Table: "customers", Column: "name", DataType: "text", Similarity: 0.6},
	}}
	return NewOrchestrator(finder, &stubRels{}, gen, exec, config.QueryConfig{
		MaxResultRows:    10000,
		StatementTimeout: 30 * time.Second,
		SandboxMode:      true,
	}, 5)
}

func TestQuery_EndToEnd(t *testing.T) {
	exec := &stubExec{
		guard:  sqlguard.New(),
		syntax: sqlexec.SyntaxCheck{Valid: true},
		result: sqlexec.ExecutionResult{
			Success:  true,
			RowCount: 2,
			Columns:  []sqlexec.ColumnInfo{{Name: "id"}, {Name: "name"}},
			Rows: []map[string]any{
				{"id": int32(1), "name": "Asha"},
				{"id": int32(2), "name": "Ravi"},
			},
		},
	}
	gen := &stubGenerator{out: llm.Generated{
		SQL:         "SELECT id, name FROM customers",
		Explanation: "Lists customers.",
	}}

	o := testOrchestrator(gen, exec)
	res, err := o.Query(context.Background(), "show me all customers", "en", Options{
		IncludeExplanation:      true,
		ValidateBeforeExecution: true,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if !res.Success {
		t.Error("Success = false")
	}
	if res.SQL != "SELECT id, name FROM customers" {
		t.Errorf("SQL = %q", res.SQL)
	}
	if res.ExecutionResult == nil || res.ExecutionResult.RowCount != 2 {
		t.Errorf("ExecutionResult = %+v", res.ExecutionResult)
	}
	if len(res.ExecutionResult.Columns) != 2 {
		t.Errorf("columns = %d, want 2", len(res.ExecutionResult.Columns))
	}
	if res.Explanation != "Lists customers." {
		t.Errorf("Explanation = %q", res.Explanation)
	}
	if res.Confidence <= 0.69 || res.Confidence >= 0.71 {
		t.Errorf("Confidence = %v, want mean similarity 0.7", res.Confidence)
	}
	if !res.Metadata.SandboxMode {
		t.Error("Metadata.SandboxMode = false")
	}
	if exec.syntaxCalls != 1 {
		t.Errorf("syntax checks = %d, want 1", exec.syntaxCalls)
	}
	if len(exec.executed) != 1 {
		t.Errorf("executions = %d, want 1", len(exec.executed))
	}
}

func TestQuery_DangerousSQLNeverExecutes(t *testing.T) {
	exec := &stubExec{guard: sqlguard.New(), syntax: sqlexec.SyntaxCheck{Valid: true}}
	gen := &stubGenerator{out: llm.Generated{SQL: "DELETE FROM customers"}}

	o := testOrchestrator(gen, exec)
	_, err := o.Query(context.Background(), "remove everyone", "en", Options{ValidateBeforeExecution: true})

	viol, ok := sqlguard.AsViolation(err)
	if !ok {
		t.Fatalf("err = %v, want *sqlguard.Violation", err)
	}
	if viol.Kind != sqlguard.KindDangerousOperation {
		t.Errorf("kind = %s, want %s", viol.Kind, sqlguard.KindDangerousOperation)
	}
	if len(exec.executed) != 0 {
		t.Error("executor was invoked for rejected SQL")
	}
	if exec.syntaxCalls != 0 {
		t.Error("syntax check ran for rejected SQL")
	}
}

func TestQuery_SyntaxInvalidIsTerminal(t *testing.T) {
	exec := &stubExec{
		guard:  sqlguard.New(),
		syntax: sqlexec.SyntaxCheck{Valid: false, Message: "syntax error", ErrorCode: "42601"},
	}
	gen := &stubGenerator{out: llm.Generated{SQL: "SELECT FROM FROM"}}

	o := testOrchestrator(gen, exec)
	_, err := o.Query(context.Background(), "broken", "en", Options{ValidateBeforeExecution: true})

	var synErr *sqlexec.SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("err = %v, want *sqlexec.SyntaxError", err)
	}
	if synErr.Code != "42601" {
		t.Errorf("Code = %q, want 42601", synErr.Code)
	}
	if len(exec.executed) != 0 {
		t.Error("executor was invoked despite syntax failure")
	}
}

func TestQuery_ExecutionFailureIsData(t *testing.T) {
	exec := &stubExec{
		guard:  sqlguard.New(),
		syntax: sqlexec.SyntaxCheck{Valid: true},
		result: sqlexec.ExecutionResult{Success: false, Error: "Table does not exist"},
	}
	gen := &stubGenerator{out: llm.Generated{SQL: "SELECT * FROM ghosts"}}

	o := testOrchestrator(gen, exec)
	res, err := o.Query(context.Background(), "ghosts", "en", Options{ValidateBeforeExecution: true})
	if err != nil {
		t.Fatalf("Query returned error %v, execution failures must be data", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.ExecutionResult.Error != "Table does not exist" {
		t.Errorf("Error = %q", res.ExecutionResult.Error)
	}
}

func TestQuery_GeneratorFailure(t *testing.T) {
	exec := &stubExec{guard: sqlguard.New()}
	gen := &stubGenerator{err: errors.New("provider outage")}

	o := testOrchestrator(gen, exec)
	if _, err := o.Query(context.Background(), "q", "en", Options{}); err == nil {
		t.Fatal("expected error on provider outage")
	}
}

func TestGenerateSQL_SkipsExecution(t *testing.T) {
	exec := &stubExec{guard: sqlguard.New(), syntax: sqlexec.SyntaxCheck{Valid: true}}
	gen := &stubGenerator{out: llm.Generated{SQL: "SELECT 1", Explanation: "one"}}

	o := testOrchestrator(gen, exec)
	res, err := o.GenerateSQL(context.Background(), "one", "en", Options{IncludeExplanation: true})
	if err != nil {
		t.Fatalf("GenerateSQL: %v", err)
	}
	if !res.Success {
		t.Error("Success = false")
	}
	if res.ExecutionResult != nil {
		t.Error("ExecutionResult set for generate-only call")
	}
	if len(exec.executed) != 0 {
		t.Error("executor was invoked")
	}
}

func TestExecuteSQL_ValidatesFirst(t *testing.T) {
	exec := &stubExec{guard: sqlguard.New(), result: sqlexec.ExecutionResult{Success: true}}
	o := testOrchestrator(&stubGenerator{}, exec)

	if _, err := o.ExecuteSQL(context.Background(), "DROP TABLE orders", Options{}); err == nil {
		t.Fatal("expected rejection for DROP")
	}
	if len(exec.executed) != 0 {
		t.Error("executor ran rejected SQL")
	}

	res, err := o.ExecuteSQL(context.Background(), "SELECT 1", Options{MaxResults: 50})
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	if !res.Success {
		t.Error("Success = false")
	}
}

func TestConfidence(t *testing.T) {
	if got := confidence(nil); got != 0 {
		t.Errorf("confidence(nil) = %v, want 0", got)
	}
	items := []schema.ContextItem{{Similarity: 2.0}}
	if got := confidence(items); got != 1 {
		t.Errorf("confidence clamped = %v, want 1", got)
	}
}
