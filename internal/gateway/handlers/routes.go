package handlers

import (
	"github.com/Quint4n4/MenuInteractivo/internal/gateway/middleware"

	"github.com/gin-gonic/gin"
)

// Routes wires the kiosk, staff and websocket handlers onto a router.
// KioskLimit may be nil.
type Routes struct {
	Kiosk      *KioskHTTPHandler
	Staff      *StaffHTTPHandler
	WS         *WSHandler
	JWTSecret  []byte
	KioskLimit gin.HandlerFunc
}

func (rt Routes) Register(r gin.IRouter) {
	// --- Kiosk API Group ---
	kiosk := r.Group("/api/v1/kiosk")
	if rt.KioskLimit != nil {
		kiosk.Use(rt.KioskLimit)
	}
	{
		kiosk.POST("/orders", rt.Kiosk.PlaceOrder)
		kiosk.GET("/orders/active", rt.Kiosk.ActiveOrders)
		kiosk.GET("/devices/:uid/active-patient", rt.Kiosk.ActivePatient)
		kiosk.POST("/feedback", rt.Kiosk.SubmitFeedback)
	}

	// --- Staff API Group ---
	staff := r.Group("/api/v1")
	staff.Use(middleware.JWTAuth(rt.JWTSecret), middleware.StaffOnly())
	{
		orders := staff.Group("/orders")
		{
			orders.GET("/queue", rt.Staff.Queue)
			orders.GET("/:id", rt.Staff.GetOrder)
			orders.PATCH("/:id/status", rt.Staff.ChangeStatus)
			orders.POST("/:id/cancel", rt.Staff.CancelOrder)
		}

		assignments := staff.Group("/assignments")
		{
			assignments.POST("", rt.Staff.CreateAssignment)
			assignments.GET("/active", rt.Staff.ActiveAssignment)
			assignments.PATCH("/:id/limits", rt.Staff.UpdateLimits)
			assignments.POST("/:id/survey", rt.Staff.EnableSurvey)
			assignments.POST("/:id/ordering", rt.Staff.SetOrdering)
			assignments.POST("/:id/end", rt.Staff.EndCare)
			assignments.POST("/:id/orders", rt.Staff.PlaceStaffOrder)
		}

		staff.GET("/inventory/:productId", rt.Staff.StockReport)
	}

	// --- Websockets ---
	if rt.WS != nil {
		r.GET("/ws/staff/orders", rt.WS.StaffOrders)
		r.GET("/ws/kiosk/orders", rt.WS.KioskOrders)
	}
}
