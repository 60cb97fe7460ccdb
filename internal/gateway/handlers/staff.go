package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Quint4n4/MenuInteractivo/internal/gateway/middleware"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"

	"github.com/gin-gonic/gin"
)

type StaffHTTPHandler struct {
	ordersClient rpc.OrderServiceClient
}

func NewStaffHTTPHandler(ordersClient rpc.OrderServiceClient) *StaffHTTPHandler {
	return &StaffHTTPHandler{
		ordersClient: ordersClient,
	}
}

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type CancelOrderRequest struct {
	Note string `json:"note"`
}

type CreateAssignmentRequest struct {
	PatientID int64          `json:"patient_id" binding:"required"`
	DeviceID  int64          `json:"device_id" binding:"required"`
	RoomID    *int64         `json:"room_id,omitempty"`
	StaffID   *int64         `json:"staff_id,omitempty"`
	Limits    map[string]int `json:"order_limits,omitempty"`
}

type UpdateLimitsRequest struct {
	Limits map[string]int `json:"order_limits" binding:"required"`
}

type SetOrderingRequest struct {
	Allowed *bool `json:"can_patient_order" binding:"required"`
}

type StaffOrderRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type QueueQuery struct {
	Status string `form:"status"`
	Mine   bool   `form:"mine"`
	Limit  int    `form:"limit,default=100"`
}

func actor(c *gin.Context) rpc.Actor {
	claims, ok := middleware.Claims(c)
	if !ok {
		return rpc.Actor{}
	}
	return rpc.Actor{ID: claims.UserId, Superuser: claims.Superuser}
}

// --- Orders ---

func (h *StaffHTTPHandler) Queue(c *gin.Context) {
	var q QueueQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	var statuses []string
	for _, s := range strings.Split(q.Status, ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, strings.ToUpper(s))
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.Queue(ctx, &rpc.QueueRequest{
		Statuses: statuses,
		Mine:     q.Mine,
		Actor:    actor(c),
		Limit:    q.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Orders retrieved successfully", resp.Orders, gin.H{
		"count": len(resp.Orders),
	}))
}

func (h *StaffHTTPHandler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.GetOrder(ctx, &rpc.GetOrderRequest{OrderID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", resp.Order))
}

func (h *StaffHTTPHandler) ChangeStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	a := actor(c)
	resp, err := h.ordersClient.ChangeStatus(ctx, &rpc.ChangeStatusRequest{
		OrderID: id,
		Status:  strings.ToUpper(req.Status),
		Actor:   &a,
		Note:    req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order status updated successfully", resp.Order))
}

func (h *StaffHTTPHandler) CancelOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request format")
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	a := actor(c)
	resp, err := h.ordersClient.CancelOrder(ctx, &rpc.CancelOrderRequest{OrderID: id, Actor: &a, Note: req.Note})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order cancelled successfully", resp.Order))
}

// --- Assignments ---

func (h *StaffHTTPHandler) CreateAssignment(c *gin.Context) {
	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	a := actor(c)
	staffID := a.ID
	if req.StaffID != nil && *req.StaffID != a.ID {
		if !a.Superuser {
			c.JSON(http.StatusForbidden, errorResponse("Only a superuser can assign another staff member"))
			return
		}
		staffID = *req.StaffID
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.CreateAssignment(ctx, &rpc.CreateAssignmentRequest{
		PatientID: req.PatientID,
		StaffID:   staffID,
		DeviceID:  req.DeviceID,
		RoomID:    req.RoomID,
		Limits:    req.Limits,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Patient assigned successfully", resp.Assignment))
}

func (h *StaffHTTPHandler) ActiveAssignment(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.ActiveAssignment(ctx, &rpc.ActiveAssignmentRequest{StaffID: actor(c).ID})
	if err != nil {
		writeError(c, err)
		return
	}
	if resp.Assignment == nil {
		c.JSON(http.StatusOK, successResponse("No active assignment", nil))
		return
	}

	c.JSON(http.StatusOK, successResponse("Active assignment retrieved successfully", resp.Assignment))
}

func (h *StaffHTTPHandler) UpdateLimits(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.UpdateLimits(ctx, &rpc.UpdateLimitsRequest{AssignmentID: id, Actor: actor(c), Limits: req.Limits})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order limits updated successfully", resp.Assignment))
}

func (h *StaffHTTPHandler) EnableSurvey(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.EnableSurvey(ctx, &rpc.AssignmentRequest{AssignmentID: id, Actor: actor(c)})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Survey enabled successfully", resp.Assignment))
}

func (h *StaffHTTPHandler) SetOrdering(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SetOrderingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.SetOrdering(ctx, &rpc.SetOrderingRequest{AssignmentID: id, Actor: actor(c), Allowed: *req.Allowed})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Ordering permission updated successfully", resp.Assignment))
}

func (h *StaffHTTPHandler) EndCare(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.EndCare(ctx, &rpc.AssignmentRequest{AssignmentID: id, Actor: actor(c)})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Care ended successfully", resp.Assignment))
}

func (h *StaffHTTPHandler) PlaceStaffOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req StaffOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.PlaceStaffOrder(ctx, &rpc.StaffOrderRequest{
		AssignmentID: id,
		Actor:        actor(c),
		Items:        toItems(req.Items),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order placed successfully", resp.Order))
}

// --- Inventory ---

func (h *StaffHTTPHandler) StockReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid product ID")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.ordersClient.StockReport(ctx, &rpc.StockReportRequest{ProductID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Stock report retrieved successfully", resp.Audit))
}
