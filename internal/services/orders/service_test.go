package orders

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/database/memory"
	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/metrics"
	"github.com/Quint4n4/MenuInteractivo/internal/services/inventory"
)

const (
	water  int64 = 1
	juice  int64 = 2
	crisps int64 = 3
	soup   int64 = 4
)

type sent struct {
	group string
	event fanout.Event
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Notify(group string, e fanout.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{group, e})
}

func (r *recorder) events() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *Service
	notes *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewStore()
	s.PutProduct(kiosk.Product{ID: water, Name: "Water", Category: "DRINK", Active: true, UnitLabel: "bottle"})
	s.PutProduct(kiosk.Product{ID: juice, Name: "Juice", Category: "DRINK", Active: true, UnitLabel: "cup"})
	s.PutProduct(kiosk.Product{ID: crisps, Name: "Crisps", Category: "SNACK", Active: true, UnitLabel: "bag"})
	s.PutProduct(kiosk.Product{ID: soup, Name: "Soup", Category: "FOOD", Active: false, UnitLabel: "bowl"})
	for _, id := range []int64{water, juice, crisps} {
		s.PutStock(id, 5)
	}
	room := int64(100)
	s.PutRoom(kiosk.Room{ID: room, Code: "A-101"})
	s.PutPatient(kiosk.Patient{ID: 50, FullName: "Ana Perez"})
	s.PutDevice(kiosk.Device{ID: 10, UID: "ipad-10", RoomID: &room, IsActive: true})
	s.PutDevice(kiosk.Device{ID: 11, UID: "ipad-11", IsActive: true})
	s.PutDevice(kiosk.Device{ID: 12, UID: "ipad-off", IsActive: false})

	notes := &recorder{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(s, nil, inventory.NewLocker(5*time.Second), notes, zap.NewNop(), m)
	return &fixture{t: t, ctx: context.Background(), store: s, svc: svc, notes: notes}
}

func (f *fixture) assign(deviceID, staffID int64, limits map[string]int) kiosk.Assignment {
	f.t.Helper()
	room := int64(100)
	a := kiosk.Assignment{
		PatientID: 50, PatientName: "Ana Perez", StaffID: staffID, DeviceID: deviceID,
		RoomID: &room, RoomCode: "A-101", OrderLimits: limits,
		CanPatientOrder: true, IsActive: true, StartedAt: time.Now(),
	}
	err := f.store.WithinTx(f.ctx, func(tx kiosk.Tx) error { return tx.CreateAssignment(f.ctx, &a) })
	if err != nil {
		f.t.Fatalf("create assignment: %v", err)
	}
	return a
}

func (f *fixture) stock(id int64) kiosk.Stock {
	f.t.Helper()
	var st kiosk.Stock
	_ = f.store.WithinTx(f.ctx, func(tx kiosk.Tx) error {
		var err error
		st, err = tx.Stock(f.ctx, id)
		return err
	})
	return st
}

func (f *fixture) movements(id int64) []kiosk.Movement {
	f.t.Helper()
	var mv []kiosk.Movement
	_ = f.store.WithinTx(f.ctx, func(tx kiosk.Tx) error {
		var err error
		mv, err = tx.Movements(f.ctx, id)
		return err
	})
	return mv
}

func (f *fixture) assignment(id int64) kiosk.Assignment {
	f.t.Helper()
	var a kiosk.Assignment
	_ = f.store.WithinTx(f.ctx, func(tx kiosk.Tx) error {
		var err error
		a, err = tx.LockAssignment(f.ctx, id)
		return err
	})
	return a
}

func (f *fixture) place(uid string, items ...ItemInput) (kiosk.Order, error) {
	return f.svc.PlaceOrder(f.ctx, PlaceOrderInput{DeviceUID: uid, Items: items})
}

func (f *fixture) checkLedger(ids ...int64) {
	f.t.Helper()
	for _, id := range ids {
		st := f.stock(id)
		if st.Reserved < 0 || st.Reserved > st.OnHand {
			f.t.Fatalf("product %d violates 0 <= reserved <= onHand: %+v", id, st)
		}
		if reserved, _ := inventory.Reconcile(f.movements(id)); reserved != st.Reserved {
			f.t.Fatalf("product %d: movements imply %d reserved, stock has %d", id, reserved, st.Reserved)
		}
	}
}

func TestReserveCancelScenario(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, nil)

	first, err := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 5})
	if err != nil {
		t.Fatalf("first order: %v", err)
	}
	if st := f.stock(water); st.OnHand != 5 || st.Reserved != 5 {
		t.Fatalf("expected {5,5}, got {%d,%d}", st.OnHand, st.Reserved)
	}

	_, err = f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})
	var ise *kiosk.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.ProductName != "Water" || ise.Available != 0 || ise.Requested != 1 {
		t.Fatalf("unexpected detail %+v", ise)
	}

	if _, err := f.svc.CancelOrder(f.ctx, CancelInput{OrderID: first.ID}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if st := f.stock(water); st.OnHand != 5 || st.Reserved != 0 {
		t.Fatalf("expected {5,0}, got {%d,%d}", st.OnHand, st.Reserved)
	}

	if _, err := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1}); err != nil {
		t.Fatalf("order after cancel: %v", err)
	}
	f.checkLedger(water)
}

func TestConcurrentPlacementsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, nil)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.place("ipad-10", ItemInput{ProductID: crisps, Quantity: 5})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, kiosk.ErrInsufficientStock):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	f.checkLedger(crisps)
}

func TestMultiItemPlacementIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, nil)

	_, err := f.place("ipad-10",
		ItemInput{ProductID: water, Quantity: 2},
		ItemInput{ProductID: crisps, Quantity: 6})
	if !errors.Is(err, kiosk.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if st := f.stock(water); st.Reserved != 0 {
		t.Fatalf("water reservation retained: %+v", st)
	}
	var n int
	_ = f.store.WithinTx(f.ctx, func(tx kiosk.Tx) error {
		all, _ := tx.ListOrders(f.ctx, kiosk.OrderFilter{})
		n = len(all)
		return nil
	})
	if n != 0 {
		t.Fatalf("failed placement left %d orders", n)
	}
	if len(f.notes.events()) != 0 {
		t.Fatal("rejected placement emitted a notification")
	}
}

func TestPlaceOrderRecordsSnapshotAndInitialEvent(t *testing.T) {
	f := newFixture(t)
	a := f.assign(10, 1, nil)

	o, err := f.place("ipad-10", ItemInput{ProductID: juice, Quantity: 1})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	f.store.PutProduct(kiosk.Product{ID: juice, Name: "Juice", Category: "DRINK", Active: true, UnitLabel: "carton"})

	got, err := f.svc.GetOrder(f.ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Items[0].UnitLabel != "cup" {
		t.Fatalf("unit label not snapshotted: %q", got.Items[0].UnitLabel)
	}
	if len(got.Events) != 1 || got.Events[0].From != "" || got.Events[0].To != kiosk.StatusPlaced {
		t.Fatalf("unexpected initial events %+v", got.Events)
	}
	if got.AssignmentID != a.ID || got.RoomCode != "A-101" || got.PatientID != 50 {
		t.Fatalf("order not bound to assignment: %+v", got)
	}

	ev := f.notes.events()
	if len(ev) != 1 || ev[0].group != fanout.StaffGroup {
		t.Fatalf("expected one staff notification, got %+v", ev)
	}
	if no, ok := ev[0].event.(fanout.NewOrder); !ok || no.OrderID != o.ID || *no.DeviceUID != "ipad-10" {
		t.Fatalf("unexpected event %+v", ev[0].event)
	}

	var dev kiosk.Device
	_ = f.store.WithinTx(f.ctx, func(tx kiosk.Tx) error { dev, _ = tx.Device(f.ctx, 10); return nil })
	if dev.LastSeenAt == nil {
		t.Fatal("device last_seen_at not updated")
	}
}

func TestPlaceOrderRejections(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, map[string]int{"DRINK": 1})

	tests := []struct {
		name  string
		uid   string
		items []ItemInput
		want  error
	}{
		{"no assignment", "ipad-11", []ItemInput{{water, 1}}, kiosk.ErrNoActiveAssignment},
		{"inactive device", "ipad-off", []ItemInput{{water, 1}}, kiosk.ErrNotFound},
		{"unknown device", "nope", []ItemInput{{water, 1}}, kiosk.ErrNotFound},
		{"unknown product", "ipad-10", []ItemInput{{999, 1}}, kiosk.ErrNotFound},
		{"inactive product", "ipad-10", []ItemInput{{soup, 1}}, kiosk.ErrProductUnavailable},
		{"empty", "ipad-10", nil, kiosk.ErrInvalidArgument},
		{"zero quantity", "ipad-10", []ItemInput{{water, 0}}, kiosk.ErrInvalidArgument},
		{"quantity above line max", "ipad-10", []ItemInput{{water, MaxLineQuantity + 1}}, kiosk.ErrInvalidArgument},
		{"limit across products", "ipad-10", []ItemInput{{water, 1}, {juice, 1}}, kiosk.ErrLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.place(tt.uid, tt.items...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	f.checkLedger(water, juice)
}

func TestHugeQuantitiesCannotWrapTotals(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, map[string]int{"DRINK": 1})
	f.assign(11, 2, nil)

	for _, uid := range []string{"ipad-10", "ipad-11"} {
		_, err := f.place(uid, ItemInput{ProductID: water, Quantity: math.MaxInt}, ItemInput{ProductID: water, Quantity: math.MaxInt})
		if !errors.Is(err, kiosk.ErrInvalidArgument) {
			t.Fatalf("%s: expected invalid argument, got %v", uid, err)
		}
	}
	if st := f.stock(water); st.OnHand != 5 || st.Reserved != 0 {
		t.Fatalf("stock changed by rejected orders: %+v", st)
	}
	f.checkLedger(water)
}

type staleCatalog map[int64]kiosk.Product

func (c staleCatalog) Products(_ context.Context, ids []int64) (map[int64]kiosk.Product, error) {
	out := make(map[int64]kiosk.Product, len(ids))
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestDeactivatedProductRejectedDespiteStaleCatalog(t *testing.T) {
	f := newFixture(t)
	a := f.assign(10, 1, nil)
	stale := staleCatalog{water: {ID: water, Name: "Water", Category: "DRINK", Active: true, UnitLabel: "bottle"}}
	f.store.PutProduct(kiosk.Product{ID: water, Name: "Water", Category: "DRINK", Active: false, UnitLabel: "bottle"})
	svc := NewService(f.store, stale, inventory.NewLocker(5*time.Second), f.notes, zap.NewNop(), nil)

	_, err := svc.PlaceOrder(f.ctx, PlaceOrderInput{DeviceUID: "ipad-10", Items: []ItemInput{{water, 1}}})
	if !errors.Is(err, kiosk.ErrProductUnavailable) {
		t.Fatalf("kiosk order: expected product unavailable, got %v", err)
	}
	_, err = svc.PlaceStaffOrder(f.ctx, StaffOrderInput{AssignmentID: a.ID, Actor: kiosk.Actor{ID: 1}, Items: []ItemInput{{water, 1}}})
	if !errors.Is(err, kiosk.ErrProductUnavailable) {
		t.Fatalf("staff order: expected product unavailable, got %v", err)
	}
	if st := f.stock(water); st.Reserved != 0 {
		t.Fatalf("deactivated product reserved: %+v", st)
	}
}

func TestGateLimitDetail(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, map[string]int{"DRINK": 1})

	_, err := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 2})
	var le *kiosk.LimitExceededError
	if !errors.As(err, &le) || le.Category != "DRINK" || le.Max != 1 || le.Requested != 2 {
		t.Fatalf("expected LimitExceeded(DRINK,1,2), got %v", err)
	}
	if _, err := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1}); err != nil {
		t.Fatalf("exactly the limit should pass: %v", err)
	}
}

func TestDeliveringLastOpenOrderBlocksOrdering(t *testing.T) {
	f := newFixture(t)
	a := f.assign(10, 1, nil)

	o, err := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 2})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	delivered, err := f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: o.ID, To: kiosk.StatusDelivered, Actor: &kiosk.Actor{ID: 1}})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatal("delivered_at not set")
	}
	if f.assignment(a.ID).CanPatientOrder {
		t.Fatal("expected ordering to be blocked after last delivery")
	}
	if st := f.stock(water); st.OnHand != 3 || st.Reserved != 0 {
		t.Fatalf("expected {3,0} after consume, got {%d,%d}", st.OnHand, st.Reserved)
	}

	_, err = f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})
	if !errors.Is(err, kiosk.ErrOrderingBlocked) {
		t.Fatalf("expected ordering blocked, got %v", err)
	}
	f.checkLedger(water)
}

func TestDeliveringOneOfTwoOrdersKeepsOrdering(t *testing.T) {
	f := newFixture(t)
	a := f.assign(10, 1, nil)

	first, _ := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})
	second, _ := f.place("ipad-10", ItemInput{ProductID: crisps, Quantity: 1})

	if _, err := f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: first.ID, To: kiosk.StatusDelivered}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !f.assignment(a.ID).CanPatientOrder {
		t.Fatal("ordering blocked while another order is open")
	}
	other, _ := f.svc.GetOrder(f.ctx, second.ID)
	if other.Status != kiosk.StatusPlaced {
		t.Fatalf("other order changed to %s", other.Status)
	}
}

func TestTerminalOrdersAreImmutable(t *testing.T) {
	for _, terminal := range []kiosk.Status{kiosk.StatusDelivered, kiosk.StatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			f := newFixture(t)
			f.assign(10, 1, nil)
			o, _ := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})
			if _, err := f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: o.ID, To: terminal}); err != nil {
				t.Fatalf("to %s: %v", terminal, err)
			}
			before := len(f.movements(water))
			sentBefore := len(f.notes.events())

			for _, to := range []kiosk.Status{kiosk.StatusPlaced, kiosk.StatusReady, kiosk.StatusDelivered, kiosk.StatusCancelled} {
				_, err := f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: o.ID, To: to})
				if !errors.Is(err, kiosk.ErrTerminalState) {
					t.Fatalf("%s -> %s: expected terminal violation, got %v", terminal, to, err)
				}
			}
			got, _ := f.svc.GetOrder(f.ctx, o.ID)
			if len(got.Events) != 2 {
				t.Fatalf("expected 2 events, got %d", len(got.Events))
			}
			if len(f.movements(water)) != before || len(f.notes.events()) != sentBefore {
				t.Fatal("rejected transition produced side effects")
			}
		})
	}
}

func TestCancelMessages(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, nil)

	a, _ := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})
	b, _ := f.place("ipad-10", ItemInput{ProductID: juice, Quantity: 1})
	_, _ = f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: a.ID, To: kiosk.StatusDelivered})
	_, _ = f.svc.CancelOrder(f.ctx, CancelInput{OrderID: b.ID})

	_, err := f.svc.CancelOrder(f.ctx, CancelInput{OrderID: a.ID})
	if err == nil || err.Error() != "cannot cancel delivered order" {
		t.Fatalf("unexpected error %v", err)
	}
	_, err = f.svc.CancelOrder(f.ctx, CancelInput{OrderID: b.ID})
	if err == nil || err.Error() != "order is already cancelled" {
		t.Fatalf("unexpected error %v", err)
	}

	got, _ := f.svc.GetOrder(f.ctx, b.ID)
	if last := got.Events[len(got.Events)-1]; last.Note != noteCancelled || got.CancelledAt == nil {
		t.Fatalf("cancel not recorded: %+v", got)
	}
}

func TestSkippingStatusesIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, nil)
	o, _ := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})

	steps := []kiosk.Status{kiosk.StatusReady, kiosk.StatusPreparing, kiosk.StatusDelivered}
	for _, to := range steps {
		if _, err := f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: o.ID, To: to}); err != nil {
			t.Fatalf("to %s: %v", to, err)
		}
	}
	got, _ := f.svc.GetOrder(f.ctx, o.ID)
	if len(got.Events) != 4 || got.Events[1].From != kiosk.StatusPlaced || got.Events[3].From != kiosk.StatusPreparing {
		t.Fatalf("unexpected history %+v", got.Events)
	}

	if _, err := f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: o.ID, To: "SHIPPED"}); !errors.Is(err, kiosk.ErrInvalidArgument) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestStatusChangeNotifiesDeviceAndStaff(t *testing.T) {
	f := newFixture(t)
	f.assign(10, 1, nil)
	o, _ := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})

	if _, err := f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: o.ID, To: kiosk.StatusPreparing}); err != nil {
		t.Fatalf("change: %v", err)
	}
	ev := f.notes.events()[1:]
	if len(ev) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(ev))
	}
	sc, ok := ev[0].event.(fanout.OrderStatusChanged)
	if !ok || ev[0].group != fanout.DeviceGroup(10) || sc.Status != "PREPARING" || sc.FromStatus != "PLACED" {
		t.Fatalf("unexpected device notification %+v", ev[0])
	}
	if ev[1].group != fanout.StaffGroup {
		t.Fatalf("unexpected staff notification %+v", ev[1])
	}
}

func TestStaffOrderBypassesGate(t *testing.T) {
	f := newFixture(t)
	a := f.assign(10, 7, map[string]int{"DRINK": 0})
	_ = f.store.WithinTx(f.ctx, func(tx kiosk.Tx) error {
		cur, _ := tx.LockAssignment(f.ctx, a.ID)
		cur.CanPatientOrder = false
		return tx.SaveAssignment(f.ctx, cur)
	})

	o, err := f.svc.PlaceStaffOrder(f.ctx, StaffOrderInput{
		AssignmentID: a.ID, Actor: kiosk.Actor{ID: 7}, Items: []ItemInput{{ProductID: water, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("staff order: %v", err)
	}
	if o.Events[0].ChangedBy == nil || *o.Events[0].ChangedBy != 7 || o.Events[0].Note != notePlacedByStaff {
		t.Fatalf("unexpected initial event %+v", o.Events[0])
	}
	if st := f.stock(water); st.Reserved != 3 {
		t.Fatalf("staff order did not reserve: %+v", st)
	}

	ev := f.notes.events()
	if len(ev) != 2 || ev[0].group != fanout.StaffGroup || ev[1].group != fanout.DeviceGroup(10) {
		t.Fatalf("unexpected notifications %+v", ev)
	}
	if _, ok := ev[1].event.(fanout.OrderCreatedByStaff); !ok {
		t.Fatalf("expected order_created_by_staff, got %T", ev[1].event)
	}

	_, err = f.svc.PlaceStaffOrder(f.ctx, StaffOrderInput{
		AssignmentID: a.ID, Actor: kiosk.Actor{ID: 8}, Items: []ItemInput{{ProductID: water, Quantity: 1}},
	})
	if !errors.Is(err, kiosk.ErrForbidden) {
		t.Fatalf("expected forbidden for other staff, got %v", err)
	}
	_, err = f.svc.PlaceStaffOrder(f.ctx, StaffOrderInput{
		AssignmentID: a.ID, Actor: kiosk.Actor{ID: 8, Superuser: true}, Items: []ItemInput{{ProductID: water, Quantity: 3}},
	})
	if !errors.Is(err, kiosk.ErrInsufficientStock) {
		t.Fatalf("expected stock rules to apply, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	a := f.assign(10, 1, nil)
	f.assign(11, 2, nil)

	o1, _ := f.place("ipad-10", ItemInput{ProductID: water, Quantity: 1})
	o2, _ := f.place("ipad-10", ItemInput{ProductID: juice, Quantity: 1})
	o3, _ := f.place("ipad-11", ItemInput{ProductID: crisps, Quantity: 1})
	_, _ = f.svc.ChangeStatus(f.ctx, ChangeStatusInput{OrderID: o2.ID, To: kiosk.StatusReady})

	active, err := f.svc.ActiveOrders(f.ctx, "ipad-10")
	if err != nil || len(active) != 2 {
		t.Fatalf("active orders: %v, %d", err, len(active))
	}
	if _, err := f.svc.ActiveOrders(f.ctx, "ipad-off"); !errors.Is(err, kiosk.ErrNotFound) {
		t.Fatalf("inactive device: expected not found, got %v", err)
	}

	queue, _ := f.svc.Queue(f.ctx, QueueInput{})
	if len(queue) != 2 {
		t.Fatalf("default queue should hold PLACED orders %d and %d, got %d orders", o1.ID, o3.ID, len(queue))
	}

	ready, _ := f.svc.Queue(f.ctx, QueueInput{Statuses: []string{"READY", "BOGUS"}})
	if len(ready) != 1 || ready[0].ID != o2.ID {
		t.Fatalf("unexpected READY queue %+v", ready)
	}

	mine, _ := f.svc.Queue(f.ctx, QueueInput{Statuses: []string{"PLACED", "READY"}, Mine: true, Actor: kiosk.Actor{ID: 1}})
	for _, o := range mine {
		if o.AssignmentID != a.ID {
			t.Fatalf("mine leaked order of assignment %d", o.AssignmentID)
		}
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 orders for staff 1, got %d", len(mine))
	}

	none, _ := f.svc.Queue(f.ctx, QueueInput{Mine: true, Actor: kiosk.Actor{ID: 99}})
	if len(none) != 0 {
		t.Fatalf("staff without assignment got %d orders", len(none))
	}

	report, err := f.svc.StockReport(f.ctx, water)
	if err != nil || !report.Consistent || report.Stock.Reserved != 1 {
		t.Fatalf("unexpected report %+v (%v)", report, err)
	}
}
