package api

// QueryRequest is the API-level request for the NLQ pipeline.
type QueryRequest struct {
	Query    string       `json:"query"`
	Language string       `json:"language,omitempty"` // en, hi
	Options  QueryOptions `json:"options,omitempty"`
}

// QueryOptions tune one pipeline run.
type QueryOptions struct {
	IncludeExplanation      bool `json:"includeExplanation,omitempty"`
	ValidateBeforeExecution bool `json:"validateBeforeExecution,omitempty"`
	MaxResults              int  `json:"maxResults,omitempty"`
}

// ExecuteSQLRequest runs a caller-supplied statement through validation
// and bounded execution, skipping generation.
type ExecuteSQLRequest struct {
	SQL     string       `json:"sql"`
	Options QueryOptions `json:"options,omitempty"`
}

// RefreshResponse reports a schema embedding refresh.
type RefreshResponse struct {
	Refreshed int    `json:"refreshed"`
	Status    string `json:"status"`
}

// ErrorResponse is returned for API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Database    bool   `json:"database"`
	LLM         bool   `json:"llm"`
	VectorIndex bool   `json:"vector_index"`
	Uptime      string `json:"uptime"`
}

const (
	maxQueryChars = 1000
	maxSQLChars   = 10000
)

// validate checks request bounds and normalizes the language code.
func (r *QueryRequest) validate() (string, string) {
	if r.Query == "" {
		return "", "query is required"
	}
	if len(r.Query) > maxQueryChars {
		return "", "query exceeds 1000 characters"
	}
	switch r.Language {
	case "":
		return "en", ""
	case "en", "hi":
		return r.Language, ""
	default:
		return "", "language must be en or hi"
	}
}

func (r *ExecuteSQLRequest) validate() string {
	if r.SQL == "" {
		return "sql is required"
	}
	if len(r.SQL) > maxSQLChars {
		return "sql exceeds 10000 characters"
	}
	return ""
}
