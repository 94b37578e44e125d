package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain error taxonomy. All four are pure validation failures: the operation
// that returns one has made no mutation at all.

// NotFoundError: entity absent. Maps to 404.
type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key '%v' was not found", e.Entity, e.Key)
}

// InvalidStateError: operation not valid given current auction status or
// timing. Maps to 400 with a human-readable reason.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// InvalidAmountError: bid too low. Carries the computed minimum so the
// caller can retry.
type InvalidAmountError struct {
	Minimum decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("minimum bid amount is %s", e.Minimum.StringFixed(2))
}

// ConflictError: duplicate non-terminal auction for a car. Maps to 409.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

func IsInvalidAmount(err error) bool {
	var e *InvalidAmountError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}
