package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const requestTimeout = 10 * time.Second

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

// httpStatus maps an error kind onto the gateway's status codes.
func httpStatus(k kiosk.Kind) int {
	switch k {
	case kiosk.KindInsufficientStock, kiosk.KindLimitExceeded, kiosk.KindOrderingBlocked,
		kiosk.KindNoActiveAssignment, kiosk.KindTerminalState, kiosk.KindProductUnavailable,
		kiosk.KindConflict:
		return http.StatusConflict
	case kiosk.KindNotFound:
		return http.StatusNotFound
	case kiosk.KindInvalidArgument:
		return http.StatusBadRequest
	case kiosk.KindForbidden:
		return http.StatusForbidden
	case kiosk.KindContention:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders an orders-service error. Typed rejections keep their
// detail fields in data so the kiosk can tell the patient what to change.
func writeError(c *gin.Context, err error) {
	err = rpc.FromError(err)
	kind := kiosk.KindOf(err)

	if kind == kiosk.KindInternal {
		if st, ok := status.FromError(err); ok {
			switch st.Code() {
			case codes.Unavailable:
				resp := errorResponse("Orders service is currently unavailable")
				resp.Error = "SERVICE_UNAVAILABLE"
				c.JSON(http.StatusServiceUnavailable, resp)
				return
			case codes.DeadlineExceeded:
				resp := errorResponse("Orders service timed out")
				resp.Error = "TIMEOUT"
				c.JSON(http.StatusGatewayTimeout, resp)
				return
			}
		}
		resp := errorResponse("internal error")
		resp.Error = string(kind)
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	if kind == kiosk.KindContention {
		c.Header("Retry-After", "1")
	}
	resp := errorResponse(err.Error())
	resp.Error = string(kind)
	if fields := rpc.Details(err); len(fields) > 0 {
		resp.Data = fields
	}
	c.JSON(httpStatus(kind), resp)
}

func badRequest(c *gin.Context, message string) {
	resp := errorResponse(message)
	resp.Error = string(kiosk.KindInvalidArgument)
	c.JSON(http.StatusBadRequest, resp)
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

