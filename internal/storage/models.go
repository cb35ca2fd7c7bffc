package storage

import "time"

// QueryRecord is a stored natural-language query and its outcome.
type QueryRecord struct {
	ID           string     `json:"id" db:"id"`
	Question     string     `json:"question" db:"question"`
	Language     string     `json:"language" db:"language"`
	GeneratedSQL string     `json:"generated_sql" db:"generated_sql"`
	Status       string     `json:"status" db:"status"` // completed, rejected, failed, timeout
	RejectReason string     `json:"reject_reason,omitempty" db:"reject_reason"`
	RowCount     int        `json:"row_count" db:"row_count"`
	Confidence   float64    `json:"confidence" db:"confidence"`
	GenerationMS int64      `json:"generation_ms" db:"generation_ms"`
	ExecutionMS  int64      `json:"execution_ms" db:"execution_ms"`
	RequestIP    string     `json:"request_ip" db:"request_ip"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// QueryFilter provides criteria for listing query records.
type QueryFilter struct {
	Language string
	Status   string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}
