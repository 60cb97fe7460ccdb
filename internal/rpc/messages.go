package rpc

import (
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/services/inventory"
)

type Actor struct {
	ID        int64 `json:"id"`
	Superuser bool  `json:"superuser"`
}

func (a Actor) Kiosk() kiosk.Actor { return kiosk.Actor{ID: a.ID, Superuser: a.Superuser} }

func (a *Actor) KioskPtr() *kiosk.Actor {
	if a == nil {
		return nil
	}
	k := a.Kiosk()
	return &k
}

type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type PlaceOrderRequest struct {
	DeviceUID string `json:"device_uid"`
	Items     []Item `json:"items"`
}

type StaffOrderRequest struct {
	AssignmentID int64  `json:"assignment_id"`
	Actor        Actor  `json:"actor"`
	Items        []Item `json:"items"`
}

type ChangeStatusRequest struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	Actor   *Actor `json:"actor,omitempty"`
	Note    string `json:"note,omitempty"`
}

type CancelOrderRequest struct {
	OrderID int64  `json:"order_id"`
	Actor   *Actor `json:"actor,omitempty"`
	Note    string `json:"note,omitempty"`
}

type GetOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type ActiveOrdersRequest struct {
	DeviceUID string `json:"device_uid"`
}

type QueueRequest struct {
	Statuses []string `json:"statuses,omitempty"`
	Mine     bool     `json:"mine"`
	Actor    Actor    `json:"actor"`
	Limit    int      `json:"limit,omitempty"`
}

type OrderResponse struct {
	Order kiosk.Order `json:"order"`
}

type OrdersResponse struct {
	Orders []kiosk.Order `json:"orders"`
}

type StockReportRequest struct {
	ProductID int64 `json:"product_id"`
}

type StockReportResponse struct {
	Audit inventory.Audit `json:"audit"`
}

type CreateAssignmentRequest struct {
	PatientID int64          `json:"patient_id"`
	StaffID   int64          `json:"staff_id"`
	DeviceID  int64          `json:"device_id"`
	RoomID    *int64         `json:"room_id,omitempty"`
	Limits    map[string]int `json:"order_limits,omitempty"`
}

type AssignmentRequest struct {
	AssignmentID int64 `json:"assignment_id"`
	Actor        Actor `json:"actor"`
}

type UpdateLimitsRequest struct {
	AssignmentID int64          `json:"assignment_id"`
	Actor        Actor          `json:"actor"`
	Limits       map[string]int `json:"order_limits"`
}

type SetOrderingRequest struct {
	AssignmentID int64 `json:"assignment_id"`
	Actor        Actor `json:"actor"`
	Allowed      bool  `json:"allowed"`
}

type ActiveAssignmentRequest struct {
	StaffID int64 `json:"staff_id"`
}

type AssignmentResponse struct {
	// Assignment is nil when the staff member has no active patient.
	Assignment *kiosk.Assignment `json:"assignment"`
}

type DeviceSessionRequest struct {
	DeviceUID string `json:"device_uid"`
}

type DeviceSessionResponse struct {
	Device     kiosk.Device      `json:"device"`
	Assignment *kiosk.Assignment `json:"assignment"`
}

type SubmitFeedbackRequest struct {
	AssignmentID   int64                   `json:"patient_assignment_id"`
	StaffRating    int                     `json:"staff_rating"`
	StayRating     int                     `json:"stay_rating"`
	ProductRatings map[int64]map[int64]int `json:"product_ratings"`
	Comment        string                  `json:"comment,omitempty"`
}

type FeedbackResponse struct {
	Feedback kiosk.Feedback `json:"feedback"`
}
