package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

// DetailKind is the structpb field carrying the kiosk.Kind of an error.
const DetailKind = "kind"

func CodeOf(k kiosk.Kind) codes.Code {
	switch k {
	case kiosk.KindInsufficientStock, kiosk.KindLimitExceeded, kiosk.KindOrderingBlocked,
		kiosk.KindNoActiveAssignment, kiosk.KindTerminalState, kiosk.KindProductUnavailable:
		return codes.FailedPrecondition
	case kiosk.KindNotFound:
		return codes.NotFound
	case kiosk.KindContention:
		return codes.Aborted
	case kiosk.KindInvalidArgument:
		return codes.InvalidArgument
	case kiosk.KindForbidden:
		return codes.PermissionDenied
	case kiosk.KindConflict:
		return codes.AlreadyExists
	}
	return codes.Internal
}

// ToStatus converts a service error into a gRPC status error whose
// details hold the error kind and its structured fields.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := kiosk.KindOf(err)
	msg := err.Error()
	if kind == kiosk.KindInternal {
		msg = "internal error"
	}
	st := status.New(CodeOf(kind), msg)

	fields := Details(err)
	fields[DetailKind] = string(kind)
	detail, derr := structpb.NewStruct(fields)
	if derr != nil {
		return st.Err()
	}
	if withDetail, derr := st.WithDetails(protoadapt.MessageV1Of(detail)); derr == nil {
		st = withDetail
	}
	return st.Err()
}

// Details flattens the structured fields of a typed kiosk error.
func Details(err error) map[string]interface{} {
	out := map[string]interface{}{}
	var (
		ise *kiosk.InsufficientStockError
		lim *kiosk.LimitExceededError
		blk *kiosk.OrderingBlockedError
		ter *kiosk.TerminalStateError
		pun *kiosk.ProductUnavailableError
		nf  *kiosk.NotFoundError
		ce  *kiosk.ContentionError
	)
	switch {
	case errors.As(err, &ise):
		out["product_id"] = float64(ise.ProductID)
		out["product_name"] = ise.ProductName
		out["available"] = float64(ise.Available)
		out["requested"] = float64(ise.Requested)
	case errors.As(err, &lim):
		out["limit_reached"] = true
		out["category_type"] = lim.Category
		out["max_allowed"] = float64(lim.Max)
		out["requested"] = float64(lim.Requested)
	case errors.As(err, &blk):
		out["assignment_id"] = float64(blk.AssignmentID)
		out["survey_enabled"] = blk.SurveyEnabled
		out["can_patient_order"] = false
	case errors.As(err, &ter):
		out["order_id"] = float64(ter.OrderID)
		out["status"] = string(ter.Status)
		out["cancel"] = ter.Cancel
	case errors.As(err, &pun):
		out["product_id"] = float64(pun.ProductID)
		out["product_name"] = pun.ProductName
	case errors.As(err, &nf):
		out["entity"] = nf.Entity
		out["key"] = nf.Key
	case errors.As(err, &ce):
		out["resource"] = ce.Resource
		out["retryable"] = true
	}
	return out
}

// FromError rebuilds a kiosk error from a status produced by ToStatus.
// Errors without kiosk details come back as returned by gRPC.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var fields map[string]interface{}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			fields = s.AsMap()
			break
		}
	}
	if fields == nil {
		return err
	}
	kind, _ := fields[DetailKind].(string)
	msg := st.Message()

	switch kiosk.Kind(kind) {
	case kiosk.KindInsufficientStock:
		return &kiosk.InsufficientStockError{
			ProductID:   num(fields, "product_id"),
			ProductName: str(fields, "product_name"),
			Available:   int(num(fields, "available")),
			Requested:   int(num(fields, "requested")),
		}
	case kiosk.KindLimitExceeded:
		return &kiosk.LimitExceededError{
			Category:  str(fields, "category_type"),
			Max:       int(num(fields, "max_allowed")),
			Requested: int(num(fields, "requested")),
		}
	case kiosk.KindOrderingBlocked:
		survey, _ := fields["survey_enabled"].(bool)
		return &kiosk.OrderingBlockedError{AssignmentID: num(fields, "assignment_id"), SurveyEnabled: survey}
	case kiosk.KindTerminalState:
		cancel, _ := fields["cancel"].(bool)
		return &kiosk.TerminalStateError{OrderID: num(fields, "order_id"), Status: kiosk.Status(str(fields, "status")), Cancel: cancel}
	case kiosk.KindProductUnavailable:
		return &kiosk.ProductUnavailableError{ProductID: num(fields, "product_id"), ProductName: str(fields, "product_name")}
	case kiosk.KindNotFound:
		return &kiosk.NotFoundError{Entity: str(fields, "entity"), Key: str(fields, "key")}
	case kiosk.KindContention:
		return &kiosk.ContentionError{Resource: str(fields, "resource")}
	case kiosk.KindInternal, "":
		return err
	}
	if sentinel := kiosk.Kind(kind).Sentinel(); sentinel != nil {
		return &remoteError{sentinel: sentinel, msg: msg}
	}
	return err
}

// remoteError keeps the server's message while matching its sentinel.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }

func num(m map[string]interface{}, k string) int64 {
	f, _ := m[k].(float64)
	return int64(f)
}

func str(m map[string]interface{}, k string) string {
	s, _ := m[k].(string)
	return s
}
