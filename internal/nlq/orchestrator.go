// Package nlq sequences the natural-language-to-SQL pipeline: schema
// context lookup, SQL generation, safety validation, syntax check and
// bounded execution. Steps are strictly sequential within one request and
// nothing is retried; a rejected or failed query is reported once.
package nlq

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/msdcl/nlq-backend/internal/config"
	"github.com/msdcl/nlq-backend/internal/llm"
	"github.com/msdcl/nlq-backend/internal/schema"
	"github.com/msdcl/nlq-backend/internal/sqlexec"
)

// ContextFinder resolves the schema elements relevant to a question.
type ContextFinder interface {
	TopK(ctx context.Context, question string, k int) ([]schema.ContextItem, error)
}

// RelationshipSource supplies foreign-key-like links for prompt building.
type RelationshipSource interface {
	Relationships(ctx context.Context) ([]schema.Relationship, error)
}

// Generator produces candidate SQL for a question.
type Generator interface {
	GenerateSQL(ctx context.Context, question, language string, items []schema.ContextItem, rels []schema.Relationship) (llm.Generated, error)
}

// ExecutionService is the slice of sqlexec.Service the pipeline depends on.
type ExecutionService interface {
	Validate(sql string) error
	ValidateSyntax(ctx context.Context, sql string) sqlexec.SyntaxCheck
	Execute(ctx context.Context, sql string, opts sqlexec.ExecOptions) sqlexec.ExecutionResult
}

// Options tune one pipeline run.
type Options struct {
	IncludeExplanation      bool
	ValidateBeforeExecution bool
	MaxResults              int
}

// Metadata describes how a response was produced.
type Metadata struct {
	GenerationTimeMS int64 `json:"generationTimeMs"`
	PipelineTimeMS   int64 `json:"pipelineTimeMs"`
	SandboxMode      bool  `json:"sandboxMode"`
}

// Result is the response envelope for a full pipeline run.
type Result struct {
	Success         bool                     `json:"success"`
	Query           string                   `json:"query"`
	SQL             string                   `json:"sql"`
	Confidence      float64                  `json:"confidence"`
	Explanation     string                   `json:"explanation,omitempty"`
	SchemaContext   []schema.ContextItem     `json:"schemaContext"`
	ExecutionResult *sqlexec.ExecutionResult `json:"executionResult,omitempty"`
	Metadata        Metadata                 `json:"metadata"`
}

// Orchestrator wires the pipeline collaborators together.
type Orchestrator struct {
	finder ContextFinder
	rels   RelationshipSource
	gen    Generator
	exec   ExecutionService
	cfg    config.QueryConfig
	topK   int
}

func NewOrchestrator(finder ContextFinder, rels RelationshipSource, gen Generator, exec ExecutionService, cfg config.QueryConfig, topK int) *Orchestrator {
	if topK < 1 {
		topK = 5
	}
	return &Orchestrator{
		finder: finder,
		rels:   rels,
		gen:    gen,
		exec:   exec,
		cfg:    cfg,
		topK:   topK,
	}
}

// Query runs the full pipeline. Rejections before execution (safety
// verdicts, syntax failures, provider errors) come back as errors for the
// transport layer to map; execution failures come back inside the result.
func (o *Orchestrator) Query(ctx context.Context, question, language string, opts Options) (*Result, error) {
	ctx, cancel := o.deadline(ctx)
	defer cancel()

	pipelineStart := time.Now()

	res, err := o.generate(ctx, question, language, pipelineStart)
	if err != nil {
		return nil, err
	}

	if err := o.exec.Validate(res.SQL); err != nil {
		log.Info().Str("sql", sqlexec.FormatForLog(res.SQL)).Err(err).Msg("generated SQL rejected")
		return nil, err
	}

	if opts.ValidateBeforeExecution {
		if check := o.exec.ValidateSyntax(ctx, res.SQL); !check.Valid {
			return nil, &sqlexec.SyntaxError{Message: check.Message, Code: check.ErrorCode}
		}
	}

	execResult := o.exec.Execute(ctx, res.SQL, sqlexec.ExecOptions{MaxResults: opts.MaxResults})
	res.ExecutionResult = &execResult
	res.Success = execResult.Success

	if !opts.IncludeExplanation {
		res.Explanation = ""
	}

	res.Metadata.PipelineTimeMS = time.Since(pipelineStart).Milliseconds()
	return res, nil
}

// GenerateSQL runs the pipeline up to (and including) the safety check,
// skipping execution.
func (o *Orchestrator) GenerateSQL(ctx context.Context, question, language string, opts Options) (*Result, error) {
	ctx, cancel := o.deadline(ctx)
	defer cancel()

	pipelineStart := time.Now()

	res, err := o.generate(ctx, question, language, pipelineStart)
	if err != nil {
		return nil, err
	}

	if err := o.exec.Validate(res.SQL); err != nil {
		return nil, err
	}

	res.Success = true
	if !opts.IncludeExplanation {
		res.Explanation = ""
	}
	res.Metadata.PipelineTimeMS = time.Since(pipelineStart).Milliseconds()
	return res, nil
}

// ExecuteSQL validates and runs caller-supplied SQL, bypassing generation.
func (o *Orchestrator) ExecuteSQL(ctx context.Context, sql string, opts Options) (*sqlexec.ExecutionResult, error) {
	if err := o.exec.Validate(sql); err != nil {
		return nil, err
	}

	result := o.exec.Execute(ctx, sql, sqlexec.ExecOptions{MaxResults: opts.MaxResults})
	return &result, nil
}

func (o *Orchestrator) generate(ctx context.Context, question, language string, pipelineStart time.Time) (*Result, error) {
	items, err := o.finder.TopK(ctx, question, o.topK)
	if err != nil {
		return nil, fmt.Errorf("schema context lookup: %w", err)
	}

	var rels []schema.Relationship
	if o.rels != nil {
		rels, err = o.rels.Relationships(ctx)
		if err != nil {
			// relationships only enrich the prompt; generation proceeds without them
			log.Warn().Err(err).Msg("relationship lookup failed")
		}
	}

	genStart := time.Now()
	generated, err := o.gen.GenerateSQL(ctx, question, language, items, rels)
	if err != nil {
		return nil, fmt.Errorf("SQL generation: %w", err)
	}

	return &Result{
		Query:         question,
		SQL:           generated.SQL,
		Explanation:   generated.Explanation,
		Confidence:    confidence(items),
		SchemaContext: items,
		Metadata: Metadata{
			GenerationTimeMS: time.Since(genStart).Milliseconds(),
			SandboxMode:      o.cfg.SandboxMode,
		},
	}, nil
}

func (o *Orchestrator) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.PipelineDeadline > 0 {
		return context.WithTimeout(ctx, o.cfg.PipelineDeadline)
	}
	return ctx, func() {}
}

// confidence is the mean similarity of the schema context used for
// generation, clamped to [0, 1]. A question that matched nothing scores 0.
func confidence(items []schema.ContextItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += float64(it.Similarity)
	}
	c := sum / float64(len(items))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
