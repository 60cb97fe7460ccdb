package rpc

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

func TestToStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{&kiosk.InsufficientStockError{ProductID: 1, Available: 4, Requested: 5}, codes.FailedPrecondition},
		{&kiosk.LimitExceededError{Category: "DRINK", Max: 1, Requested: 2}, codes.FailedPrecondition},
		{kiosk.ErrNoActiveAssignment, codes.FailedPrecondition},
		{kiosk.NotFound("device", "ipad-9"), codes.NotFound},
		{&kiosk.ContentionError{Resource: "stock:1"}, codes.Aborted},
		{kiosk.Invalid("bad"), codes.InvalidArgument},
		{kiosk.Forbidden("no"), codes.PermissionDenied},
		{kiosk.Conflict("dup"), codes.AlreadyExists},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("db exploded"), codes.Internal},
	}
	for _, tt := range tests {
		st, _ := status.FromError(ToStatus(tt.err))
		if st.Code() != tt.want {
			t.Errorf("%v: got %s, want %s", tt.err, st.Code(), tt.want)
		}
	}
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	st, _ := status.FromError(ToStatus(errors.New("pq: password authentication failed")))
	if st.Message() != "internal error" {
		t.Fatalf("leaked message %q", st.Message())
	}
}

func TestFromErrorRestoresTypedErrors(t *testing.T) {
	err := FromError(ToStatus(&kiosk.InsufficientStockError{ProductID: 3, ProductName: "Juice", Available: 1, Requested: 2}))
	var ise *kiosk.InsufficientStockError
	if !errors.As(err, &ise) || ise.ProductID != 3 || ise.ProductName != "Juice" || ise.Available != 1 || ise.Requested != 2 {
		t.Fatalf("unexpected %#v", err)
	}

	err = FromError(ToStatus(&kiosk.LimitExceededError{Category: "SNACK", Max: 2, Requested: 3}))
	var lim *kiosk.LimitExceededError
	if !errors.As(err, &lim) || lim.Category != "SNACK" || lim.Max != 2 || lim.Requested != 3 {
		t.Fatalf("unexpected %#v", err)
	}

	err = FromError(ToStatus(&kiosk.TerminalStateError{OrderID: 8, Status: kiosk.StatusDelivered, Cancel: true}))
	if err.Error() != "cannot cancel delivered order" {
		t.Fatalf("unexpected message %q", err)
	}

	err = FromError(ToStatus(&kiosk.ContentionError{Resource: "order:4"}))
	if !kiosk.Retryable(err) {
		t.Fatalf("contention lost retryability: %v", err)
	}

	err = FromError(ToStatus(kiosk.Conflict("staff member already has an active patient assignment")))
	if !errors.Is(err, kiosk.ErrConflict) || err.Error() != "conflict: staff member already has an active patient assignment" {
		t.Fatalf("unexpected %v", err)
	}

	plain := status.Error(codes.Unavailable, "connection refused")
	if got := FromError(plain); got != plain {
		t.Fatalf("expected passthrough, got %v", got)
	}
}
