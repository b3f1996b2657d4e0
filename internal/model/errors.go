package model

import "fmt"

// EntityError attaches the offending entity to a sentinel error so callers
// can both branch with errors.Is and report which row was at fault.
type EntityError struct {
	Entity string // "account", "template", "budget", ...
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }

// NewEntityError returns an *EntityError as an error.
func NewEntityError(entity, id string, err error) error {
	return &EntityError{Entity: entity, ID: id, Err: err}
}
