package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/msdcl/nlq-backend/internal/dashboard"
	"github.com/msdcl/nlq-backend/internal/monitor"
	"github.com/msdcl/nlq-backend/internal/nlq"
	"github.com/msdcl/nlq-backend/internal/schema"
	"github.com/msdcl/nlq-backend/internal/sqlexec"
	"github.com/msdcl/nlq-backend/internal/sqlguard"
	"github.com/msdcl/nlq-backend/internal/storage"
)

// Pipeline is the slice of the NLQ orchestrator the handlers depend on.
type Pipeline interface {
	Query(ctx context.Context, question, language string, opts nlq.Options) (*nlq.Result, error)
	GenerateSQL(ctx context.Context, question, language string, opts nlq.Options) (*nlq.Result, error)
	ExecuteSQL(ctx context.Context, sql string, opts nlq.Options) (*sqlexec.ExecutionResult, error)
}

type Handlers struct {
	pipeline  Pipeline
	db        *storage.DB
	history   *storage.HistoryWriter
	dash      *dashboard.Repository
	refresher *schema.Refresher
	metrics   *monitor.Metrics
	tracer    *monitor.Tracer
}

func NewHandlers(pipeline Pipeline, db *storage.DB, history *storage.HistoryWriter, dash *dashboard.Repository, refresher *schema.Refresher, metrics *monitor.Metrics) *Handlers {
	return &Handlers{
		pipeline:  pipeline,
		db:        db,
		history:   history,
		dash:      dash,
		refresher: refresher,
		metrics:   metrics,
		tracer:    monitor.NewTracer(),
	}
}

func (h *Handlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	language, problem := req.validate()
	if problem != "" {
		writeError(w, problem, "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	h.metrics.QuestionSizeBytes.Observe(float64(len(req.Query)))

	if h.pipeline == nil {
		writeError(w, "query pipeline unavailable", "PIPELINE_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	ctx, span := h.tracer.StartSpan(r.Context(), "query",
		monitor.AttrQueryID.String(RequestIDFromContext(r.Context())),
		monitor.AttrLanguage.String(language),
	)
	defer span.End()

	start := time.Now()
	result, err := h.pipeline.Query(ctx, req.Query, language, pipelineOptions(req.Options))
	duration := time.Since(start)

	if err != nil {
		h.handlePipelineError(w, r, err, req.Query, language, start, duration)
		return
	}

	status := executionStatus(result.ExecutionResult)
	span.SetAttributes(
		monitor.AttrStatus.String(status),
		monitor.AttrDurationMS.Int64(duration.Milliseconds()),
	)
	h.metrics.RecordQuery("query", status, duration.Seconds())
	h.metrics.RecordLLM("generate", float64(result.Metadata.GenerationTimeMS)/1000)
	if result.ExecutionResult != nil {
		h.metrics.RowsReturned.Observe(float64(result.ExecutionResult.RowCount))
		span.SetAttributes(monitor.AttrRowCount.Int(result.ExecutionResult.RowCount))
	}

	h.logHistory(result, req.Query, language, status, "", start, r)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleGenerateSQL(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	language, problem := req.validate()
	if problem != "" {
		writeError(w, problem, "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	if h.pipeline == nil {
		writeError(w, "query pipeline unavailable", "PIPELINE_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	start := time.Now()
	result, err := h.pipeline.GenerateSQL(r.Context(), req.Query, language, pipelineOptions(req.Options))
	duration := time.Since(start)

	if err != nil {
		h.handlePipelineError(w, r, err, req.Query, language, start, duration)
		return
	}

	h.metrics.RecordQuery("generate", "completed", duration.Seconds())
	h.metrics.RecordLLM("generate", float64(result.Metadata.GenerationTimeMS)/1000)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleExecuteSQL(w http.ResponseWriter, r *http.Request) {
	var req ExecuteSQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	if problem := req.validate(); problem != "" {
		writeError(w, problem, "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	if h.pipeline == nil {
		writeError(w, "query pipeline unavailable", "PIPELINE_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	start := time.Now()
	result, err := h.pipeline.ExecuteSQL(r.Context(), req.SQL, pipelineOptions(req.Options))
	duration := time.Since(start)

	if err != nil {
		h.handlePipelineError(w, r, err, "", "", start, duration)
		return
	}

	h.metrics.RecordQuery("execute", executionStatus(result), duration.Seconds())
	h.metrics.RowsReturned.Observe(float64(result.RowCount))
	writeJSON(w, http.StatusOK, result)
}

// handlePipelineError maps pre-execution failures to HTTP statuses.
// Validator rejections and syntax failures are client errors; everything
// else is reported without internal detail.
func (h *Handlers) handlePipelineError(w http.ResponseWriter, r *http.Request, err error, question, language string, start time.Time, duration time.Duration) {
	if v, ok := sqlguard.AsViolation(err); ok {
		h.metrics.RecordRejection(string(v.Kind))
		h.metrics.RecordQuery("query", "rejected", duration.Seconds())
		h.logRejection(question, language, v.Error(), start, r)
		writeError(w, v.Error(), string(v.Kind), http.StatusBadRequest, r)
		return
	}

	var synErr *sqlexec.SyntaxError
	if errors.As(err, &synErr) {
		h.metrics.RecordQuery("query", "rejected", duration.Seconds())
		h.logRejection(question, language, synErr.Error(), start, r)
		writeError(w, synErr.Error(), "SYNTAX_ERROR", http.StatusBadRequest, r)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		h.metrics.RecordQuery("query", "timeout", duration.Seconds())
		writeError(w, "query pipeline deadline exceeded", "PIPELINE_TIMEOUT", http.StatusGatewayTimeout, r)
		return
	}

	h.metrics.RecordQuery("query", "error", duration.Seconds())
	log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("pipeline failed")
	writeError(w, "query processing failed", "INTERNAL", http.StatusInternalServerError, r)
}

func (h *Handlers) HandleRefreshSchema(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		writeError(w, "schema embedding not configured", "REFRESH_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	n, err := h.refresher.Refresh(r.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("schema refresh failed")
		writeError(w, "schema refresh failed", "REFRESH_FAILED", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: n, Status: "ok"})
}

func (h *Handlers) HandleGetQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "query ID required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	if h.db == nil {
		writeError(w, "database not configured", "DB_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	rec, err := h.db.GetQuery(r.Context(), id)
	if err != nil {
		writeError(w, "query not found", "NOT_FOUND", http.StatusNotFound, r)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) HandleListQueries(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, "database not configured", "DB_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	recs, err := h.db.ListQueries(r.Context(), parseHistoryFilter(r))
	if err != nil {
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, recs)
}

func (h *Handlers) HandleRevenueTrend(w http.ResponseWriter, r *http.Request) {
	if h.dash == nil {
		writeError(w, "dashboard not configured", "DASHBOARD_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}

	points, err := h.dash.RevenueTrend(r.Context(), days)
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("revenue trend failed")
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, points)
}

func (h *Handlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	if h.dash == nil {
		writeError(w, "dashboard not configured", "DASHBOARD_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	products, err := h.dash.TopProducts(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("top products failed")
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

func (h *Handlers) HandleSalesSummary(w http.ResponseWriter, r *http.Request) {
	if h.dash == nil {
		writeError(w, "dashboard not configured", "DASHBOARD_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	summary, err := h.dash.SalesSummary(r.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("sales summary failed")
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) logHistory(result *nlq.Result, question, language, status, rejectReason string, start time.Time, r *http.Request) {
	if h.history == nil {
		return
	}

	completedAt := time.Now()
	rec := &storage.QueryRecord{
		ID:           uuid.New().String(),
		Question:     question,
		Language:     language,
		Status:       status,
		RejectReason: rejectReason,
		RequestIP:    r.RemoteAddr,
		CreatedAt:    start,
		CompletedAt:  &completedAt,
	}

	if result != nil {
		rec.GeneratedSQL = result.SQL
		rec.Confidence = result.Confidence
		rec.GenerationMS = result.Metadata.GenerationTimeMS
		if result.ExecutionResult != nil {
			rec.RowCount = result.ExecutionResult.RowCount
			rec.ExecutionMS = result.ExecutionResult.ExecutionTimeMS
		}
	}

	h.history.Log(rec)
}

func (h *Handlers) logRejection(question, language, reason string, start time.Time, r *http.Request) {
	if question == "" {
		return
	}
	h.logHistory(nil, question, language, "rejected", reason, start, r)
}

// parseHistoryFilter reads the history listing criteria from the query
// string. Unparseable values fall back to the defaults rather than erroring.
func parseHistoryFilter(r *http.Request) storage.QueryFilter {
	q := r.URL.Query()
	filter := storage.QueryFilter{
		Language: q.Get("language"),
		Status:   q.Get("status"),
		Limit:    100,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		filter.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		filter.Until = &t
	}
	return filter
}

func pipelineOptions(o QueryOptions) nlq.Options {
	return nlq.Options{
		IncludeExplanation:      o.IncludeExplanation,
		ValidateBeforeExecution: o.ValidateBeforeExecution,
		MaxResults:              o.MaxResults,
	}
}

func executionStatus(res *sqlexec.ExecutionResult) string {
	switch {
	case res == nil:
		return "completed"
	case res.TimedOut:
		return "timeout"
	case !res.Success:
		return "failed"
	default:
		return "completed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, msg, code string, status int, r *http.Request) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	}
	writeJSON(w, status, resp)
}
