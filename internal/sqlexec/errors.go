package sqlexec

import (
	"errors"
	"fmt"
)

// Sentinel errors for typed error checking.
var (
	ErrQueryTimeout    = errors.New("query timed out")
	ErrPlanningFailed  = errors.New("planning failed")
	ErrPoolUnavailable = errors.New("connection pool unavailable")
)

// SyntaxError carries the engine's own diagnosis of an invalid statement.
// This is the only place syntax is discovered rather than inferred from
// keywords, since it asks the database itself.
type SyntaxError struct {
	Message string
	Code    string // SQLSTATE
}

func (e *SyntaxError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("invalid SQL (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("invalid SQL: %s", e.Message)
}

// QueryError wraps errors with the operation that failed.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a statement timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrQueryTimeout)
}
