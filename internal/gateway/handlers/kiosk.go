package handlers

import (
	"context"
	"net/http"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"

	"github.com/gin-gonic/gin"
)

// KioskHTTPHandler serves the unauthenticated bedside tablet. The device
// uid is the tablet's only credential.
type KioskHTTPHandler struct {
	ordersClient rpc.OrderServiceClient
}

func NewKioskHTTPHandler(ordersClient rpc.OrderServiceClient) *KioskHTTPHandler {
	return &KioskHTTPHandler{
		ordersClient: ordersClient,
	}
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1,max=1000"`
}

type PlaceOrderRequest struct {
	DeviceUID string             `json:"device_uid" binding:"required"`
	Items     []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type SubmitFeedbackRequest struct {
	AssignmentID   int64                   `json:"patient_assignment_id" binding:"required"`
	StaffRating    int                     `json:"staff_rating"`
	StayRating     int                     `json:"stay_rating"`
	ProductRatings map[int64]map[int64]int `json:"product_ratings"`
	Comment        string                  `json:"comment"`
}

func toItems(in []OrderItemRequest) []rpc.Item {
	out := make([]rpc.Item, 0, len(in))
	for _, it := range in {
		out = append(out, rpc.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func (h *KioskHTTPHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.PlaceOrder(ctx, &rpc.PlaceOrderRequest{
		DeviceUID: req.DeviceUID,
		Items:     toItems(req.Items),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order placed successfully", resp.Order))
}

func (h *KioskHTTPHandler) ActiveOrders(c *gin.Context) {
	deviceUID := c.Query("device_uid")
	if deviceUID == "" {
		badRequest(c, "device_uid is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.ActiveOrders(ctx, &rpc.ActiveOrdersRequest{DeviceUID: deviceUID})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Active orders retrieved successfully", resp.Orders, gin.H{
		"count": len(resp.Orders),
	}))
}

// ActivePatient tells the tablet which session it serves, including the
// order limits and the ordering and survey flags.
func (h *KioskHTTPHandler) ActivePatient(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.DeviceSession(ctx, &rpc.DeviceSessionRequest{DeviceUID: c.Param("uid")})
	if err != nil {
		writeError(c, err)
		return
	}
	if !resp.Device.IsActive {
		writeError(c, kiosk.NotFound("device", c.Param("uid")))
		return
	}
	if resp.Assignment == nil {
		out := errorResponse("No active patient for this device")
		out.Error = string(kiosk.KindNoActiveAssignment)
		out.Data = gin.H{"device": resp.Device}
		c.JSON(http.StatusNotFound, out)
		return
	}

	c.JSON(http.StatusOK, successResponse("Active patient retrieved successfully", gin.H{
		"device":     resp.Device,
		"assignment": resp.Assignment,
	}))
}

func (h *KioskHTTPHandler) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.SubmitFeedback(ctx, &rpc.SubmitFeedbackRequest{
		AssignmentID:   req.AssignmentID,
		StaffRating:    req.StaffRating,
		StayRating:     req.StayRating,
		ProductRatings: req.ProductRatings,
		Comment:        req.Comment,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Feedback submitted successfully", resp.Feedback))
}
