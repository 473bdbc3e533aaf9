package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEnvelope is returned when a page response does not carry a
	// usable total item count or member list.
	ErrInvalidEnvelope = errors.New("invalid page envelope")

	// ErrTotalChanged is returned when a later page reports a different total
	// item count than page 1.
	ErrTotalChanged = errors.New("total item count changed during fetch")

	// ErrCountMismatch is returned when the aggregated record count differs
	// from the total reported by the API.
	ErrCountMismatch = errors.New("aggregated record count does not match total")
)

// PageError wraps a failure that occurred while fetching a specific page.
type PageError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}
