package kiosk

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrLimitExceeded      = errors.New("order limit exceeded")
	ErrOrderingBlocked    = errors.New("patient ordering is blocked")
	ErrNoActiveAssignment = errors.New("no active patient assignment for this device")
	ErrTerminalState      = errors.New("order is in a terminal state")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrNotFound           = errors.New("not found")
	ErrContention         = errors.New("lock not acquired in time")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")

	// ErrLedgerInvariant means a consume or release asked for more than is reserved.
	ErrLedgerInvariant = errors.New("ledger invariant violated")
)

type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type LimitExceededError struct {
	Category  string
	Max       int
	Requested int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("order limit exceeded for %s: max %d, requested %d", e.Category, e.Max, e.Requested)
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

type OrderingBlockedError struct {
	AssignmentID  int64
	SurveyEnabled bool
}

func (e *OrderingBlockedError) Error() string {
	if e.SurveyEnabled {
		return "ordering is disabled, please complete the survey"
	}
	return "ordering is disabled for this patient"
}

func (e *OrderingBlockedError) Unwrap() error { return ErrOrderingBlocked }

type TerminalStateError struct {
	OrderID int64
	Status  Status
	// Cancel is set when the rejected call was a cancellation.
	Cancel bool
}

func (e *TerminalStateError) Error() string {
	if e.Cancel {
		if e.Status == StatusDelivered {
			return "cannot cancel delivered order"
		}
		return "order is already cancelled"
	}
	return fmt.Sprintf("cannot change status of %s order", e.Status)
}

func (e *TerminalStateError) Unwrap() error { return ErrTerminalState }

type ProductUnavailableError struct {
	ProductID   int64
	ProductName string
}

func (e *ProductUnavailableError) Error() string {
	if e.ProductName != "" {
		return fmt.Sprintf("product %s is not available", e.ProductName)
	}
	return fmt.Sprintf("product %d is not available", e.ProductID)
}

func (e *ProductUnavailableError) Unwrap() error { return ErrProductUnavailable }

type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity string, key any) error {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

type ContentionError struct {
	Resource string
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("timed out waiting for lock on %s", e.Resource)
}

func (e *ContentionError) Unwrap() error { return ErrContention }

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrContention)
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func Forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, msg)
}

func Conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

type Kind string

const (
	KindInsufficientStock  Kind = "INSUFFICIENT_STOCK"
	KindLimitExceeded      Kind = "LIMIT_EXCEEDED"
	KindOrderingBlocked    Kind = "ORDERING_BLOCKED"
	KindNoActiveAssignment Kind = "NO_ACTIVE_ASSIGNMENT"
	KindTerminalState      Kind = "TERMINAL_STATE"
	KindProductUnavailable Kind = "PRODUCT_UNAVAILABLE"
	KindNotFound           Kind = "NOT_FOUND"
	KindContention         Kind = "CONTENTION_TIMEOUT"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindForbidden          Kind = "FORBIDDEN"
	KindConflict           Kind = "CONFLICT"
	KindInternal           Kind = "INTERNAL"
)

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindInsufficientStock, ErrInsufficientStock},
	{KindLimitExceeded, ErrLimitExceeded},
	{KindOrderingBlocked, ErrOrderingBlocked},
	{KindNoActiveAssignment, ErrNoActiveAssignment},
	{KindTerminalState, ErrTerminalState},
	{KindProductUnavailable, ErrProductUnavailable},
	{KindNotFound, ErrNotFound},
	{KindContention, ErrContention},
	{KindInvalidArgument, ErrInvalidArgument},
	{KindForbidden, ErrForbidden},
	{KindConflict, ErrConflict},
}

// KindOf classifies err for transport. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindInternal
}

// Sentinel returns the sentinel error for k, or nil for KindInternal.
func (k Kind) Sentinel() error {
	for _, ks := range kindSentinels {
		if ks.kind == k {
			return ks.err
		}
	}
	return nil
}
