package handlers

import (
	"context"
	"net/http"

	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"
	"github.com/Quint4n4/MenuInteractivo/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Application close codes sent after the upgrade.
const (
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
)

type WSHandler struct {
	ordersClient rpc.OrderServiceClient
	hub          *fanout.Hub
	secret       []byte
	upgrader     websocket.Upgrader
	sendBuffer   int
	logger       *zap.Logger
}

func NewWSHandler(ordersClient rpc.OrderServiceClient, hub *fanout.Hub, secret []byte, checkOrigin func(*http.Request) bool, sendBuffer int, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		ordersClient: ordersClient,
		hub:          hub,
		secret:       secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// StaffOrders subscribes a staff session to staff_orders.
func (h *WSHandler) StaffOrders(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("staff websocket upgrade failed", zap.Error(err))
		return
	}

	claims, err := utils.ParseToken(h.secret, c.Query("token"))
	if err != nil {
		fanout.CloseWithCode(conn, CloseUnauthorized, "invalid token")
		return
	}
	if !claims.IsStaff() {
		fanout.CloseWithCode(conn, CloseForbidden, "staff access required")
		return
	}

	client := fanout.NewClient("staff-"+uuid.NewString(), conn, h.sendBuffer, h.logger)
	h.logger.Info("🔌 staff connected", zap.Int64("user_id", claims.UserId), zap.String("client", client.ID()))
	client.Serve(h.hub, fanout.StaffGroup)
	h.logger.Info("staff disconnected", zap.String("client", client.ID()))
}

// KioskOrders subscribes a tablet to its device group.
func (h *WSHandler) KioskOrders(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("kiosk websocket upgrade failed", zap.Error(err))
		return
	}

	deviceUID := c.Query("device_uid")
	if deviceUID == "" {
		fanout.CloseWithCode(conn, CloseUnauthorized, "device_uid is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	session, err := h.ordersClient.DeviceSession(ctx, &rpc.DeviceSessionRequest{DeviceUID: deviceUID})
	cancel()
	if err != nil || !session.Device.IsActive {
		fanout.CloseWithCode(conn, CloseUnauthorized, "unknown or inactive device")
		return
	}

	client := fanout.NewClient("device-"+uuid.NewString(), conn, h.sendBuffer, h.logger)
	h.logger.Info("🔌 kiosk connected", zap.String("device_uid", deviceUID), zap.String("client", client.ID()))
	client.Serve(h.hub, fanout.DeviceGroup(session.Device.ID))
	h.logger.Info("kiosk disconnected", zap.String("client", client.ID()))
}
