package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"
	"github.com/Quint4n4/MenuInteractivo/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testSecret = []byte("gateway-test-secret")

// fakeOrders answers the calls a test configures; anything else panics
// through the nil embedded interface.
type fakeOrders struct {
	rpc.OrderServiceClient

	placeOrder    func(*rpc.PlaceOrderRequest) (*rpc.OrderResponse, error)
	queue         func(*rpc.QueueRequest) (*rpc.OrdersResponse, error)
	createAssign  func(*rpc.CreateAssignmentRequest) (*rpc.AssignmentResponse, error)
	deviceSession func(*rpc.DeviceSessionRequest) (*rpc.DeviceSessionResponse, error)
	changeStatus  func(*rpc.ChangeStatusRequest) (*rpc.OrderResponse, error)
}

func (f *fakeOrders) PlaceOrder(_ context.Context, in *rpc.PlaceOrderRequest, _ ...grpc.CallOption) (*rpc.OrderResponse, error) {
	return f.placeOrder(in)
}

func (f *fakeOrders) Queue(_ context.Context, in *rpc.QueueRequest, _ ...grpc.CallOption) (*rpc.OrdersResponse, error) {
	return f.queue(in)
}

func (f *fakeOrders) CreateAssignment(_ context.Context, in *rpc.CreateAssignmentRequest, _ ...grpc.CallOption) (*rpc.AssignmentResponse, error) {
	return f.createAssign(in)
}

func (f *fakeOrders) DeviceSession(_ context.Context, in *rpc.DeviceSessionRequest, _ ...grpc.CallOption) (*rpc.DeviceSessionResponse, error) {
	return f.deviceSession(in)
}

func (f *fakeOrders) ChangeStatus(_ context.Context, in *rpc.ChangeStatusRequest, _ ...grpc.CallOption) (*rpc.OrderResponse, error) {
	return f.changeStatus(in)
}

func newRouter(f *fakeOrders, hub *fanout.Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Routes{
		Kiosk:     NewKioskHTTPHandler(f),
		Staff:     NewStaffHTTPHandler(f),
		WS:        NewWSHandler(f, hub, testSecret, func(*http.Request) bool { return true }, 8, zap.NewNop()),
		JWTSecret: testSecret,
	}.Register(r)
	return r
}

func token(t *testing.T, id int64, roles []string, superuser bool) string {
	t.Helper()
	s, _, err := utils.GenerateToken(testSecret, id, "user", roles, superuser, time.Minute)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return s
}

func do(r http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		check      func(t *testing.T, w *httptest.ResponseRecorder, body map[string]any)
	}{
		{
			name:       "limit exceeded",
			err:        rpc.ToStatus(&kiosk.LimitExceededError{Category: "DRINK", Max: 1, Requested: 2}),
			wantStatus: http.StatusConflict,
			wantKind:   string(kiosk.KindLimitExceeded),
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]any) {
				data := body["data"].(map[string]any)
				if data["limit_reached"] != true || data["category_type"] != "DRINK" || data["max_allowed"] != float64(1) {
					t.Fatalf("unexpected data %v", data)
				}
			},
		},
		{
			name:       "insufficient stock",
			err:        rpc.ToStatus(&kiosk.InsufficientStockError{ProductID: 3, ProductName: "Water", Available: 1, Requested: 2}),
			wantStatus: http.StatusConflict,
			wantKind:   string(kiosk.KindInsufficientStock),
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]any) {
				data := body["data"].(map[string]any)
				if data["available"] != float64(1) || data["product_name"] != "Water" {
					t.Fatalf("unexpected data %v", data)
				}
			},
		},
		{
			name:       "unknown device",
			err:        rpc.ToStatus(kiosk.NotFound("device", "ipad-404")),
			wantStatus: http.StatusNotFound,
			wantKind:   string(kiosk.KindNotFound),
		},
		{
			name:       "contention",
			err:        rpc.ToStatus(&kiosk.ContentionError{Resource: "stock:3"}),
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   string(kiosk.KindContention),
			check: func(t *testing.T, w *httptest.ResponseRecorder, _ map[string]any) {
				if w.Header().Get("Retry-After") != "1" {
					t.Fatalf("missing Retry-After, headers %v", w.Header())
				}
			},
		},
		{
			name:       "internal",
			err:        rpc.ToStatus(errors.New("pq: relation does not exist")),
			wantStatus: http.StatusInternalServerError,
			wantKind:   string(kiosk.KindInternal),
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]any) {
				if body["message"] != "internal error" {
					t.Fatalf("internal message leaked: %v", body["message"])
				}
			},
		},
		{
			name:       "service down",
			err:        status.Error(codes.Unavailable, "connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   "SERVICE_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeOrders{placeOrder: func(*rpc.PlaceOrderRequest) (*rpc.OrderResponse, error) { return nil, tt.err }}
			w := do(newRouter(f, nil), http.MethodPost, "/api/v1/kiosk/orders", "", gin.H{
				"device_uid": "ipad-1",
				"items":      []gin.H{{"product_id": 3, "quantity": 2}},
			})
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			body := decodeBody(t, w)
			if body["success"] != false || body["error"] != tt.wantKind {
				t.Fatalf("unexpected body %v", body)
			}
			if tt.check != nil {
				tt.check(t, w, body)
			}
		})
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	var got *rpc.PlaceOrderRequest
	f := &fakeOrders{placeOrder: func(in *rpc.PlaceOrderRequest) (*rpc.OrderResponse, error) {
		got = in
		return &rpc.OrderResponse{Order: kiosk.Order{ID: 11, Status: kiosk.StatusPlaced}}, nil
	}}
	r := newRouter(f, nil)

	w := do(r, http.MethodPost, "/api/v1/kiosk/orders", "", gin.H{"device_uid": "ipad-1"})
	if w.Code != http.StatusBadRequest || got != nil {
		t.Fatalf("empty items: status %d, called %v", w.Code, got != nil)
	}

	for _, qty := range []int{0, -1, 1001} {
		w = do(r, http.MethodPost, "/api/v1/kiosk/orders", "", gin.H{
			"device_uid": "ipad-1",
			"items":      []gin.H{{"product_id": 3, "quantity": 2}, {"product_id": 4, "quantity": qty}},
		})
		if w.Code != http.StatusBadRequest || got != nil {
			t.Fatalf("quantity %d: status %d, called %v", qty, w.Code, got != nil)
		}
	}

	w = do(r, http.MethodPost, "/api/v1/kiosk/orders", "", gin.H{
		"device_uid": "ipad-1",
		"items":      []gin.H{{"product_id": 3, "quantity": 2}, {"product_id": 4, "quantity": 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got.DeviceUID != "ipad-1" || len(got.Items) != 2 || got.Items[0] != (rpc.Item{ProductID: 3, Quantity: 2}) {
		t.Fatalf("unexpected request %+v", got)
	}
	data := decodeBody(t, w)["data"].(map[string]any)
	if data["id"] != float64(11) || data["status"] != "PLACED" {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestActivePatient(t *testing.T) {
	room := int64(100)
	device := kiosk.Device{ID: 10, UID: "ipad-10", RoomID: &room, IsActive: true}
	sessions := map[string]*rpc.DeviceSessionResponse{
		"ipad-10": {Device: device, Assignment: &kiosk.Assignment{
			ID: 3, PatientName: "Ana Perez", OrderLimits: map[string]int{"DRINK": 1}, CanPatientOrder: true,
		}},
		"ipad-idle": {Device: kiosk.Device{ID: 11, UID: "ipad-idle", RoomID: &room, IsActive: true}},
		"ipad-off":  {Device: kiosk.Device{ID: 12, UID: "ipad-off"}},
	}
	var asked []string
	f := &fakeOrders{deviceSession: func(in *rpc.DeviceSessionRequest) (*rpc.DeviceSessionResponse, error) {
		asked = append(asked, in.DeviceUID)
		if s, ok := sessions[in.DeviceUID]; ok {
			return s, nil
		}
		return nil, rpc.ToStatus(kiosk.NotFound("device", in.DeviceUID))
	}}
	r := newRouter(f, nil)

	w := do(r, http.MethodGet, "/api/v1/kiosk/devices/ipad-10/active-patient", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	data := decodeBody(t, w)["data"].(map[string]any)
	a := data["assignment"].(map[string]any)
	limits := a["order_limits"].(map[string]any)
	if a["id"] != float64(3) || a["can_patient_order"] != true || a["survey_enabled"] != false || limits["DRINK"] != float64(1) {
		t.Fatalf("unexpected assignment %v", a)
	}

	w = do(r, http.MethodGet, "/api/v1/kiosk/devices/ipad-idle/active-patient", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("idle device: status %d", w.Code)
	}
	body := decodeBody(t, w)
	dev := body["data"].(map[string]any)["device"].(map[string]any)
	if body["error"] != string(kiosk.KindNoActiveAssignment) || dev["device_uid"] != "ipad-idle" || dev["room_id"] != float64(100) {
		t.Fatalf("unexpected body %v", body)
	}

	for _, uid := range []string{"ipad-off", "ipad-404"} {
		w = do(r, http.MethodGet, "/api/v1/kiosk/devices/"+uid+"/active-patient", "", nil)
		if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != string(kiosk.KindNotFound) {
			t.Fatalf("%s: status %d body %s", uid, w.Code, w.Body.String())
		}
	}
	if len(asked) != 4 || asked[0] != "ipad-10" {
		t.Fatalf("unexpected lookups %v", asked)
	}
}

func TestStaffRoutesRequireStaffToken(t *testing.T) {
	var got *rpc.QueueRequest
	f := &fakeOrders{queue: func(in *rpc.QueueRequest) (*rpc.OrdersResponse, error) {
		got = in
		return &rpc.OrdersResponse{Orders: []kiosk.Order{{ID: 1}, {ID: 2}}}, nil
	}}
	r := newRouter(f, nil)

	if w := do(r, http.MethodGet, "/api/v1/orders/queue", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/orders/queue", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/orders/queue", token(t, 5, []string{"PATIENT"}, false), nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-staff: status %d", w.Code)
	}
	if got != nil {
		t.Fatal("queue reached the service without staff auth")
	}

	w := do(r, http.MethodGet, "/api/v1/orders/queue?status=placed,%20ready&mine=true", token(t, 5, []string{utils.RoleStaff}, false), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("staff: status %d: %s", w.Code, w.Body.String())
	}
	if got.Actor.ID != 5 || !got.Mine || strings.Join(got.Statuses, ",") != "PLACED,READY" || got.Limit != 100 {
		t.Fatalf("unexpected queue request %+v", got)
	}
	if meta := decodeBody(t, w)["meta"].(map[string]any); meta["count"] != float64(2) {
		t.Fatalf("unexpected meta %v", meta)
	}
}

func TestChangeStatusForwardsActor(t *testing.T) {
	var got *rpc.ChangeStatusRequest
	f := &fakeOrders{changeStatus: func(in *rpc.ChangeStatusRequest) (*rpc.OrderResponse, error) {
		got = in
		return nil, rpc.ToStatus(&kiosk.TerminalStateError{OrderID: 8, Status: kiosk.StatusDelivered})
	}}
	r := newRouter(f, nil)

	w := do(r, http.MethodPatch, "/api/v1/orders/8/status", token(t, 3, []string{utils.RoleStaff}, false), gin.H{"status": "ready"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got.OrderID != 8 || got.Status != "READY" || got.Actor == nil || got.Actor.ID != 3 {
		t.Fatalf("unexpected request %+v", got)
	}

	if w := do(r, http.MethodPatch, "/api/v1/orders/abc/status", token(t, 3, []string{utils.RoleStaff}, false), gin.H{"status": "ready"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", w.Code)
	}
}

func TestCreateAssignmentStaffOverride(t *testing.T) {
	var got *rpc.CreateAssignmentRequest
	f := &fakeOrders{createAssign: func(in *rpc.CreateAssignmentRequest) (*rpc.AssignmentResponse, error) {
		got = in
		return &rpc.AssignmentResponse{Assignment: &kiosk.Assignment{ID: 1, StaffID: in.StaffID}}, nil
	}}
	r := newRouter(f, nil)
	body := gin.H{"patient_id": 1, "device_id": 2, "staff_id": 9}

	if w := do(r, http.MethodPost, "/api/v1/assignments", token(t, 3, []string{utils.RoleStaff}, false), body); w.Code != http.StatusForbidden {
		t.Fatalf("staff override: status %d", w.Code)
	}
	if got != nil {
		t.Fatal("override reached the service")
	}

	w := do(r, http.MethodPost, "/api/v1/assignments", token(t, 1, nil, true), body)
	if w.Code != http.StatusCreated || got.StaffID != 9 {
		t.Fatalf("superuser override: status %d, request %+v", w.Code, got)
	}

	w = do(r, http.MethodPost, "/api/v1/assignments", token(t, 3, []string{utils.RoleStaff}, false), gin.H{"patient_id": 1, "device_id": 2})
	if w.Code != http.StatusCreated || got.StaffID != 3 {
		t.Fatalf("self assignment: status %d, request %+v", w.Code, got)
	}
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, code) {
		t.Fatalf("expected close %d, got %v", code, err)
	}
}

func TestWebsocketHandshakeRejections(t *testing.T) {
	f := &fakeOrders{deviceSession: func(in *rpc.DeviceSessionRequest) (*rpc.DeviceSessionResponse, error) {
		if in.DeviceUID == "ipad-off" {
			return &rpc.DeviceSessionResponse{Device: kiosk.Device{ID: 2, UID: in.DeviceUID}}, nil
		}
		return nil, rpc.ToStatus(kiosk.NotFound("device", in.DeviceUID))
	}}
	srv := httptest.NewServer(newRouter(f, fanout.NewHub(zap.NewNop(), nil)))
	defer srv.Close()

	expectClose(t, dialWS(t, srv, "/ws/staff/orders?token=nope"), CloseUnauthorized)
	expectClose(t, dialWS(t, srv, "/ws/staff/orders?token="+token(t, 4, []string{"PATIENT"}, false)), CloseForbidden)
	expectClose(t, dialWS(t, srv, "/ws/kiosk/orders?device_uid=ipad-404"), CloseUnauthorized)
	expectClose(t, dialWS(t, srv, "/ws/kiosk/orders?device_uid=ipad-off"), CloseUnauthorized)
	expectClose(t, dialWS(t, srv, "/ws/kiosk/orders"), CloseUnauthorized)
}

func waitMembers(t *testing.T, hub *fanout.Hub, group string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Members(group) != n {
		if time.Now().After(deadline) {
			t.Fatalf("group %s has %d members, want %d", group, hub.Members(group), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebsocketSubscriptions(t *testing.T) {
	f := &fakeOrders{deviceSession: func(in *rpc.DeviceSessionRequest) (*rpc.DeviceSessionResponse, error) {
		return &rpc.DeviceSessionResponse{Device: kiosk.Device{ID: 9, UID: in.DeviceUID, IsActive: true}}, nil
	}}
	hub := fanout.NewHub(zap.NewNop(), nil)
	srv := httptest.NewServer(newRouter(f, hub))
	defer srv.Close()

	kioskConn := dialWS(t, srv, "/ws/kiosk/orders?device_uid=ipad-9")
	staffConn := dialWS(t, srv, "/ws/staff/orders?token="+token(t, 4, []string{utils.RoleAdmin}, false))
	waitMembers(t, hub, fanout.DeviceGroup(9), 1)
	waitMembers(t, hub, fanout.StaffGroup, 1)

	ctx := context.Background()
	_ = hub.Publish(ctx, fanout.DeviceGroup(9), fanout.SessionEnded{AssignmentID: 6})
	_ = hub.Publish(ctx, fanout.StaffGroup, fanout.PatientAssignmentEnded{AssignmentID: 6, StaffID: 4})

	for conn, want := range map[*websocket.Conn]string{
		kioskConn: "session_ended",
		staffConn: "patient_assignment_ended",
	} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		var m map[string]any
		if err := json.Unmarshal(msg, &m); err != nil || m["type"] != want {
			t.Fatalf("got %s, want type %s", msg, want)
		}
	}

	kioskConn.Close()
	waitMembers(t, hub, fanout.DeviceGroup(9), 0)
}
