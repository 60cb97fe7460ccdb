package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"
	"github.com/Quint4n4/MenuInteractivo/internal/services/clinic"
	"github.com/Quint4n4/MenuInteractivo/internal/services/feedback"
	"github.com/Quint4n4/MenuInteractivo/internal/services/orders"
)

type OrdersHandler struct {
	orders   *orders.Service
	clinic   *clinic.Service
	feedback *feedback.Service
	logger   *zap.Logger
}

var _ rpc.OrderServiceServer = (*OrdersHandler)(nil)

func NewOrdersHandler(o *orders.Service, c *clinic.Service, f *feedback.Service, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{orders: o, clinic: c, feedback: f, logger: logger}
}

func (h *OrdersHandler) fail(method string, err error) error {
	if kiosk.KindOf(err) == kiosk.KindInternal {
		h.logger.Error("❌ rpc failed", zap.String("method", method), zap.Error(err))
	}
	return rpc.ToStatus(err)
}

func items(in []rpc.Item) []orders.ItemInput {
	out := make([]orders.ItemInput, len(in))
	for i, it := range in {
		out[i] = orders.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

func (h *OrdersHandler) PlaceOrder(ctx context.Context, req *rpc.PlaceOrderRequest) (*rpc.OrderResponse, error) {
	o, err := h.orders.PlaceOrder(ctx, orders.PlaceOrderInput{DeviceUID: req.DeviceUID, Items: items(req.Items)})
	if err != nil {
		return nil, h.fail("PlaceOrder", err)
	}
	return &rpc.OrderResponse{Order: o}, nil
}

func (h *OrdersHandler) PlaceStaffOrder(ctx context.Context, req *rpc.StaffOrderRequest) (*rpc.OrderResponse, error) {
	o, err := h.orders.PlaceStaffOrder(ctx, orders.StaffOrderInput{
		AssignmentID: req.AssignmentID,
		Actor:        req.Actor.Kiosk(),
		Items:        items(req.Items),
	})
	if err != nil {
		return nil, h.fail("PlaceStaffOrder", err)
	}
	return &rpc.OrderResponse{Order: o}, nil
}

func (h *OrdersHandler) ChangeStatus(ctx context.Context, req *rpc.ChangeStatusRequest) (*rpc.OrderResponse, error) {
	o, err := h.orders.ChangeStatus(ctx, orders.ChangeStatusInput{
		OrderID: req.OrderID,
		To:      kiosk.Status(req.Status),
		Actor:   req.Actor.KioskPtr(),
		Note:    req.Note,
	})
	if err != nil {
		return nil, h.fail("ChangeStatus", err)
	}
	return &rpc.OrderResponse{Order: o}, nil
}

func (h *OrdersHandler) CancelOrder(ctx context.Context, req *rpc.CancelOrderRequest) (*rpc.OrderResponse, error) {
	o, err := h.orders.CancelOrder(ctx, orders.CancelInput{OrderID: req.OrderID, Actor: req.Actor.KioskPtr(), Note: req.Note})
	if err != nil {
		return nil, h.fail("CancelOrder", err)
	}
	return &rpc.OrderResponse{Order: o}, nil
}

func (h *OrdersHandler) GetOrder(ctx context.Context, req *rpc.GetOrderRequest) (*rpc.OrderResponse, error) {
	o, err := h.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, h.fail("GetOrder", err)
	}
	return &rpc.OrderResponse{Order: o}, nil
}

func (h *OrdersHandler) ActiveOrders(ctx context.Context, req *rpc.ActiveOrdersRequest) (*rpc.OrdersResponse, error) {
	list, err := h.orders.ActiveOrders(ctx, req.DeviceUID)
	if err != nil {
		return nil, h.fail("ActiveOrders", err)
	}
	return &rpc.OrdersResponse{Orders: list}, nil
}

func (h *OrdersHandler) Queue(ctx context.Context, req *rpc.QueueRequest) (*rpc.OrdersResponse, error) {
	list, err := h.orders.Queue(ctx, orders.QueueInput{
		Statuses: req.Statuses,
		Mine:     req.Mine,
		Actor:    req.Actor.Kiosk(),
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, h.fail("Queue", err)
	}
	return &rpc.OrdersResponse{Orders: list}, nil
}

func (h *OrdersHandler) StockReport(ctx context.Context, req *rpc.StockReportRequest) (*rpc.StockReportResponse, error) {
	a, err := h.orders.StockReport(ctx, req.ProductID)
	if err != nil {
		return nil, h.fail("StockReport", err)
	}
	return &rpc.StockReportResponse{Audit: a}, nil
}

func (h *OrdersHandler) CreateAssignment(ctx context.Context, req *rpc.CreateAssignmentRequest) (*rpc.AssignmentResponse, error) {
	a, err := h.clinic.CreateAssignment(ctx, clinic.CreateAssignmentInput{
		PatientID: req.PatientID,
		StaffID:   req.StaffID,
		DeviceID:  req.DeviceID,
		RoomID:    req.RoomID,
		Limits:    req.Limits,
	})
	if err != nil {
		return nil, h.fail("CreateAssignment", err)
	}
	return &rpc.AssignmentResponse{Assignment: &a}, nil
}

func (h *OrdersHandler) UpdateLimits(ctx context.Context, req *rpc.UpdateLimitsRequest) (*rpc.AssignmentResponse, error) {
	a, err := h.clinic.UpdateLimits(ctx, req.AssignmentID, req.Actor.Kiosk(), req.Limits)
	if err != nil {
		return nil, h.fail("UpdateLimits", err)
	}
	return &rpc.AssignmentResponse{Assignment: &a}, nil
}

func (h *OrdersHandler) EnableSurvey(ctx context.Context, req *rpc.AssignmentRequest) (*rpc.AssignmentResponse, error) {
	a, err := h.clinic.EnableSurvey(ctx, req.AssignmentID, req.Actor.Kiosk())
	if err != nil {
		return nil, h.fail("EnableSurvey", err)
	}
	return &rpc.AssignmentResponse{Assignment: &a}, nil
}

func (h *OrdersHandler) SetOrdering(ctx context.Context, req *rpc.SetOrderingRequest) (*rpc.AssignmentResponse, error) {
	a, err := h.clinic.SetOrdering(ctx, req.AssignmentID, req.Actor.Kiosk(), req.Allowed)
	if err != nil {
		return nil, h.fail("SetOrdering", err)
	}
	return &rpc.AssignmentResponse{Assignment: &a}, nil
}

func (h *OrdersHandler) EndCare(ctx context.Context, req *rpc.AssignmentRequest) (*rpc.AssignmentResponse, error) {
	a, err := h.clinic.EndCare(ctx, req.AssignmentID, req.Actor.Kiosk())
	if err != nil {
		return nil, h.fail("EndCare", err)
	}
	return &rpc.AssignmentResponse{Assignment: &a}, nil
}

func (h *OrdersHandler) ActiveAssignment(ctx context.Context, req *rpc.ActiveAssignmentRequest) (*rpc.AssignmentResponse, error) {
	a, err := h.clinic.ActiveForStaff(ctx, req.StaffID)
	if err != nil {
		return nil, h.fail("ActiveAssignment", err)
	}
	return &rpc.AssignmentResponse{Assignment: a}, nil
}

func (h *OrdersHandler) DeviceSession(ctx context.Context, req *rpc.DeviceSessionRequest) (*rpc.DeviceSessionResponse, error) {
	d, a, err := h.clinic.ActiveForDevice(ctx, req.DeviceUID)
	if err != nil {
		return nil, h.fail("DeviceSession", err)
	}
	return &rpc.DeviceSessionResponse{Device: d, Assignment: a}, nil
}

func (h *OrdersHandler) SubmitFeedback(ctx context.Context, req *rpc.SubmitFeedbackRequest) (*rpc.FeedbackResponse, error) {
	fb, err := h.feedback.Submit(ctx, feedback.SubmitInput{
		AssignmentID:   req.AssignmentID,
		StaffRating:    req.StaffRating,
		StayRating:     req.StayRating,
		ProductRatings: req.ProductRatings,
		Comment:        req.Comment,
	})
	if err != nil {
		return nil, h.fail("SubmitFeedback", err)
	}
	return &rpc.FeedbackResponse{Feedback: fb}, nil
}
