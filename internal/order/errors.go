package order

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFields = errors.New("missing required order fields")
	ErrNotFound      = errors.New("order not found")
)

// ValidationError - ордер нарушает бизнес-правила, в базу ничего не записано.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PersistenceError wraps a datastore failure. The transaction has been rolled back.
type PersistenceError struct {
	Op   string
	Code string // SQLSTATE name when the driver reported one
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("database error while %s (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("database error while %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
