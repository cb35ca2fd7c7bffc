package sqlguard

import (
	"errors"
	"fmt"
)

// Kind classifies why a statement was rejected.
type Kind string

const (
	KindEmptyQuery         Kind = "EMPTY_QUERY"
	KindNotASelect         Kind = "NOT_A_SELECT"
	KindDangerousOperation Kind = "DANGEROUS_OPERATION"
	KindSystemTableAccess  Kind = "SYSTEM_TABLE_ACCESS"
	KindFileSystemAccess   Kind = "FILESYSTEM_ACCESS"
	KindDangerousFunction  Kind = "DANGEROUS_FUNCTION"
	KindDangerousSubquery  Kind = "DANGEROUS_SUBQUERY"
)

// Violation is the rejection verdict for a candidate statement. These are
// expected outcomes of handling untrusted input, not server errors.
type Violation struct {
	Kind   Kind
	Detail string
}

func (v *Violation) Error() string {
	switch v.Kind {
	case KindEmptyQuery:
		return "query is empty"
	case KindNotASelect:
		return "only SELECT statements are allowed"
	case KindDangerousOperation:
		return fmt.Sprintf("dangerous operation %q is not allowed", v.Detail)
	case KindSystemTableAccess:
		return fmt.Sprintf("access to system tables (%s) is not allowed", v.Detail)
	case KindFileSystemAccess:
		return "filesystem access via COPY is not allowed"
	case KindDangerousFunction:
		return fmt.Sprintf("dangerous function %q is not allowed", v.Detail)
	case KindDangerousSubquery:
		return fmt.Sprintf("subquery references system catalog (%s)", v.Detail)
	default:
		return fmt.Sprintf("query rejected: %s", v.Detail)
	}
}

// AsViolation unwraps err into a *Violation if it is one.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
