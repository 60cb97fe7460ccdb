package handler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Quint4n4/MenuInteractivo/internal/database/memory"
	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"
	"github.com/Quint4n4/MenuInteractivo/internal/services/clinic"
	"github.com/Quint4n4/MenuInteractivo/internal/services/feedback"
	"github.com/Quint4n4/MenuInteractivo/internal/services/inventory"
	"github.com/Quint4n4/MenuInteractivo/internal/services/orders"
)

type nopNotifier struct{}

func (nopNotifier) Notify(string, fanout.Event) {}

func newClient(t *testing.T) rpc.OrderServiceClient {
	t.Helper()
	store := memory.NewStore()
	store.PutProduct(kiosk.Product{ID: 1, Name: "Water", Category: "DRINK", Active: true, UnitLabel: "bottle"})
	store.PutStock(1, 2)
	store.PutPatient(kiosk.Patient{ID: 1, FullName: "Rosa Diaz"})
	store.PutDevice(kiosk.Device{ID: 5, UID: "ipad-5", IsActive: true})

	logger := zap.NewNop()
	clinicSvc := clinic.NewService(store, nopNotifier{}, logger)
	ordersSvc := orders.NewService(store, nil, inventory.NewLocker(time.Second), nopNotifier{}, logger, nil)
	feedbackSvc := feedback.NewService(store, clinicSvc, nil, logger)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterOrderServiceServer(s, NewOrdersHandler(ordersSvc, clinicSvc, feedbackSvc, logger))
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return rpc.NewOrderServiceClient(conn)
}

func TestOrderLifecycleOverGRPC(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	staff := rpc.Actor{ID: 2}

	assigned, err := client.CreateAssignment(ctx, &rpc.CreateAssignmentRequest{PatientID: 1, StaffID: staff.ID, DeviceID: 5})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if assigned.Assignment == nil || !assigned.Assignment.IsActive {
		t.Fatalf("unexpected assignment %+v", assigned.Assignment)
	}

	placed, err := client.PlaceOrder(ctx, &rpc.PlaceOrderRequest{DeviceUID: "ipad-5", Items: []rpc.Item{{ProductID: 1, Quantity: 2}}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if placed.Order.Status != kiosk.StatusPlaced || placed.Order.Items[0].ProductName != "Water" {
		t.Fatalf("unexpected order %+v", placed.Order)
	}

	_, err = client.PlaceOrder(ctx, &rpc.PlaceOrderRequest{DeviceUID: "ipad-5", Items: []rpc.Item{{ProductID: 1, Quantity: 1}}})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
	var ise *kiosk.InsufficientStockError
	if !errors.As(rpc.FromError(err), &ise) || ise.Available != 0 || ise.Requested != 1 {
		t.Fatalf("expected insufficient stock detail, got %v", rpc.FromError(err))
	}

	queue, err := client.Queue(ctx, &rpc.QueueRequest{Mine: true, Actor: staff})
	if err != nil || len(queue.Orders) != 1 {
		t.Fatalf("queue: %v, %+v", err, queue)
	}

	delivered, err := client.ChangeStatus(ctx, &rpc.ChangeStatusRequest{OrderID: placed.Order.ID, Status: "DELIVERED", Actor: &staff})
	if err != nil || delivered.Order.Status != kiosk.StatusDelivered || len(delivered.Order.Events) != 2 {
		t.Fatalf("deliver: %v, %+v", err, delivered)
	}

	_, err = client.CancelOrder(ctx, &rpc.CancelOrderRequest{OrderID: placed.Order.ID, Actor: &staff})
	if status.Code(err) != codes.FailedPrecondition || rpc.FromError(err).Error() != "cannot cancel delivered order" {
		t.Fatalf("expected terminal rejection, got %v", err)
	}

	report, err := client.StockReport(ctx, &rpc.StockReportRequest{ProductID: 1})
	if err != nil || report.Audit.Stock.OnHand != 0 || !report.Audit.Consistent {
		t.Fatalf("stock report: %v, %+v", err, report)
	}
}

func TestErrorCodesOverGRPC(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	_, err := client.GetOrder(ctx, &rpc.GetOrderRequest{OrderID: 404})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = client.PlaceOrder(ctx, &rpc.PlaceOrderRequest{DeviceUID: "ipad-5", Items: []rpc.Item{{ProductID: 1, Quantity: 1}}})
	if status.Code(err) != codes.FailedPrecondition || !errors.Is(rpc.FromError(err), kiosk.ErrNoActiveAssignment) {
		t.Fatalf("expected no active assignment, got %v", err)
	}

	_, err = client.PlaceOrder(ctx, &rpc.PlaceOrderRequest{DeviceUID: "ipad-5"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	session, err := client.DeviceSession(ctx, &rpc.DeviceSessionRequest{DeviceUID: "ipad-5"})
	if err != nil || session.Device.ID != 5 || session.Assignment != nil {
		t.Fatalf("device session: %v, %+v", err, session)
	}

	active, err := client.ActiveAssignment(ctx, &rpc.ActiveAssignmentRequest{StaffID: 2})
	if err != nil || active.Assignment != nil {
		t.Fatalf("expected no active assignment, got %v, %+v", err, active)
	}
}
