package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
	ErrInsufficientCapacity   = errors.New("insufficient capacity")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Expected() bool { return true }

func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// CapacityError reports the days of a range that could not satisfy a reservation.
type CapacityError struct {
	ProductID        string
	Requested        int
	MinAvailable     int
	ConflictingDates []Date
}

func (e *CapacityError) Error() string {
	dates := make([]string, len(e.ConflictingDates))
	for i, d := range e.ConflictingDates {
		dates[i] = d.String()
	}
	return fmt.Sprintf("insufficient capacity for product %s: requested %d, min available %d on [%s]",
		e.ProductID, e.Requested, e.MinAvailable, strings.Join(dates, ", "))
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}

func (e *CapacityError) Expected() bool { return true }

type InvalidStateTransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

func (e *InvalidStateTransitionError) Expected() bool { return true }

// ConflictError wraps a storage-level lock or serialization failure.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrConcurrencyConflict, e.Err)
}

func (e *ConflictError) Unwrap() []error {
	return []error{ErrConcurrencyConflict, e.Err}
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
