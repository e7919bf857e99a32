package repositories

import "fmt"

// NotFoundError reports an absent entity. It satisfies RepositoryError so
// in-memory fakes classify the same way the datastore-backed repositories do.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// IsNotFound always reports true.
func (e *NotFoundError) IsNotFound() bool { return true }

// IsConflict always reports false.
func (e *NotFoundError) IsConflict() bool { return false }

// IsUnavailable always reports false.
func (e *NotFoundError) IsUnavailable() bool { return false }

// ConflictError reports a uniqueness or precondition violation.
type ConflictError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %q conflict: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %q already exists", e.Entity, e.ID)
}

// IsNotFound always reports false.
func (e *ConflictError) IsNotFound() bool { return false }

// IsConflict always reports true.
func (e *ConflictError) IsConflict() bool { return true }

// IsUnavailable always reports false.
func (e *ConflictError) IsUnavailable() bool { return false }

var (
	_ RepositoryError = (*NotFoundError)(nil)
	_ RepositoryError = (*ConflictError)(nil)
)
