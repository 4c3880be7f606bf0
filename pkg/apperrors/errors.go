package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedDialect   = errors.New("unsupported dialect")
	ErrTableNotFound        = errors.New("table not found")
	ErrRetrievalUnavailable = errors.New("reference retrieval not configured")
	ErrInvalidRequest       = errors.New("invalid request")
)

// IntrospectionError wraps a database failure hit while reading the catalog
// for a single table. Op names the lookup that failed (columns, primary key...).
type IntrospectionError struct {
	Table string
	Op    string
	Err   error
}

func (e *IntrospectionError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("introspect %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("introspect %s (%s): %v", e.Table, e.Op, e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// NewIntrospectionError returns nil when err is nil so call sites can wrap unconditionally.
func NewIntrospectionError(table, op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *IntrospectionError
	if errors.As(err, &ie) && ie.Table == table {
		return err
	}
	return &IntrospectionError{Table: table, Op: op, Err: err}
}

// CompletionParseError reports a completion that did not match the expected
// structured answer. Raw holds the text the backend returned.
type CompletionParseError struct {
	Raw string
	Err error
}

func (e *CompletionParseError) Error() string {
	return fmt.Sprintf("parse completion: %v", e.Err)
}

func (e *CompletionParseError) Unwrap() error {
	return e.Err
}
