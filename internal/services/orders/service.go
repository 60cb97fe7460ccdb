// Package orders runs the order lifecycle: admission through the
// assignment gate, stock movements through the ledger, and post-commit
// notifications.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/metrics"
	"github.com/Quint4n4/MenuInteractivo/internal/services/clinic"
	"github.com/Quint4n4/MenuInteractivo/internal/services/inventory"
)

// MaxLineQuantity bounds the quantity of a single order line.
const MaxLineQuantity = 1000

const (
	notePlacedFromKiosk = "Order placed from kiosk"
	notePlacedByStaff   = "Order created by staff for patient"
	noteCancelled       = "Order cancelled"
)

// Notifier receives events once their transaction has committed. It must
// not block; fanout.Dispatcher is the production implementation.
type Notifier interface {
	Notify(group string, e fanout.Event)
}

type Service struct {
	store   kiosk.Store
	catalog kiosk.Catalog
	locks   *inventory.Locker
	ledger  *inventory.Ledger
	notify  Notifier
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(store kiosk.Store, catalog kiosk.Catalog, locks *inventory.Locker, notify Notifier, logger *zap.Logger, m *metrics.Metrics) *Service {
	if catalog == nil {
		catalog = store
	}
	return &Service{
		store:   store,
		catalog: catalog,
		locks:   locks,
		ledger:  inventory.NewLedger(locks),
		notify:  notify,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("kiosk/orders"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type ItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type PlaceOrderInput struct {
	DeviceUID string
	Items     []ItemInput
}

type StaffOrderInput struct {
	AssignmentID int64
	Actor        kiosk.Actor
	Items        []ItemInput
}

type ChangeStatusInput struct {
	OrderID int64
	To      kiosk.Status
	Actor   *kiosk.Actor
	Note    string
}

type CancelInput struct {
	OrderID int64
	Actor   *kiosk.Actor
	Note    string
}

// PlaceOrder admits a self-service order from a kiosk device. Stock for
// every item is reserved in the same transaction that creates the order.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (kiosk.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceOrder", trace.WithAttributes(attribute.String("device_uid", in.DeviceUID)))
	defer span.End()

	order, err := s.placeOrder(ctx, in)
	if err != nil {
		s.rejected(span, err)
		s.logger.Info("order rejected", zap.String("device_uid", in.DeviceUID), zap.Error(err))
		return kiosk.Order{}, err
	}
	span.SetAttributes(attribute.Int64("order_id", order.ID))
	s.placed("kiosk")

	s.notify.Notify(fanout.StaffGroup, fanout.NewOrder{
		OrderID:   order.ID,
		RoomCode:  fanout.StrPtr(order.RoomCode),
		DeviceUID: fanout.StrPtr(order.DeviceUID),
		PlacedAt:  order.PlacedAt,
	})
	s.logger.Info("order placed",
		zap.Int64("order_id", order.ID), zap.String("device_uid", order.DeviceUID),
		zap.Int64("assignment_id", order.AssignmentID), zap.Int("items", len(order.Items)))
	return order, nil
}

func (s *Service) placeOrder(ctx context.Context, in PlaceOrderInput) (kiosk.Order, error) {
	if in.DeviceUID == "" {
		return kiosk.Order{}, kiosk.Invalid("device_uid is required")
	}
	items, products, err := s.prepareItems(ctx, in.Items)
	if err != nil {
		return kiosk.Order{}, err
	}

	release, err := s.acquire(ctx, inventory.StockKeys(itemProductIDs(items))...)
	if err != nil {
		return kiosk.Order{}, err
	}
	defer release()

	var order kiosk.Order
	err = s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		device, err := tx.DeviceByUID(ctx, in.DeviceUID)
		if err != nil {
			return err
		}
		if !device.IsActive {
			return kiosk.NotFound("device", in.DeviceUID)
		}
		now := s.now()
		if err := tx.TouchDevice(ctx, device.ID, now); err != nil {
			return fmt.Errorf("touch device: %w", err)
		}

		a, err := tx.ActiveAssignmentForDevice(ctx, device.ID, true)
		if err != nil {
			return fmt.Errorf("resolve assignment: %w", err)
		}
		if a == nil {
			return kiosk.ErrNoActiveAssignment
		}
		if err := recheckActive(ctx, tx, items); err != nil {
			return err
		}
		totals, err := clinic.CategoryTotals(items, products)
		if err != nil {
			return err
		}
		if err := clinic.Evaluate(*a, totals).Err(); err != nil {
			return err
		}

		order = newOrder(device, *a, items, now, kiosk.StatusEvent{To: kiosk.StatusPlaced, Note: notePlacedFromKiosk, ChangedAt: now})
		if err := tx.CreateOrder(ctx, &order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return s.reserve(ctx, tx, order, nil, products)
	})
	return order, err
}

// PlaceStaffOrder creates an order on behalf of an assigned patient. The
// assignment gate does not apply; stock rules do.
func (s *Service) PlaceStaffOrder(ctx context.Context, in StaffOrderInput) (kiosk.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceStaffOrder", trace.WithAttributes(attribute.Int64("assignment_id", in.AssignmentID)))
	defer span.End()

	order, err := s.placeStaffOrder(ctx, in)
	if err != nil {
		s.rejected(span, err)
		s.logger.Info("staff order rejected", zap.Int64("assignment_id", in.AssignmentID), zap.Error(err))
		return kiosk.Order{}, err
	}
	s.placed("staff")

	s.notify.Notify(fanout.StaffGroup, fanout.NewOrder{
		OrderID:   order.ID,
		RoomCode:  fanout.StrPtr(order.RoomCode),
		DeviceUID: fanout.StrPtr(order.DeviceUID),
		PlacedAt:  order.PlacedAt,
	})
	s.notify.Notify(fanout.DeviceGroup(order.DeviceID), fanout.OrderCreatedByStaff{
		OrderID:  order.ID,
		PlacedAt: order.PlacedAt,
	})
	s.logger.Info("staff order placed",
		zap.Int64("order_id", order.ID), zap.Int64("assignment_id", order.AssignmentID), zap.Int64("staff_id", in.Actor.ID))
	return order, nil
}

func (s *Service) placeStaffOrder(ctx context.Context, in StaffOrderInput) (kiosk.Order, error) {
	items, products, err := s.prepareItems(ctx, in.Items)
	if err != nil {
		return kiosk.Order{}, err
	}

	release, err := s.acquire(ctx, inventory.StockKeys(itemProductIDs(items))...)
	if err != nil {
		return kiosk.Order{}, err
	}
	defer release()

	var order kiosk.Order
	err = s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		a, err := tx.LockAssignment(ctx, in.AssignmentID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return kiosk.Conflict("cannot create orders for an ended assignment")
		}
		if !in.Actor.Owns(a.StaffID) {
			return kiosk.Forbidden("you can only create orders for your own patients")
		}
		device, err := tx.Device(ctx, a.DeviceID)
		if err != nil {
			return err
		}
		if err := recheckActive(ctx, tx, items); err != nil {
			return err
		}

		now := s.now()
		actor := in.Actor.ID
		order = newOrder(device, a, items, now, kiosk.StatusEvent{To: kiosk.StatusPlaced, ChangedBy: &actor, Note: notePlacedByStaff, ChangedAt: now})
		if err := tx.CreateOrder(ctx, &order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return s.reserve(ctx, tx, order, &actor, products)
	})
	return order, err
}

// ChangeStatus moves an order to another status. Delivery consumes the
// reservation and, when it was the assignment's last open order, blocks
// further self-service ordering. Cancellation releases the reservation.
func (s *Service) ChangeStatus(ctx context.Context, in ChangeStatusInput) (kiosk.Order, error) {
	return s.transition(ctx, in, false)
}

// CancelOrder is ChangeStatus to CANCELLED with its own rejection messages.
func (s *Service) CancelOrder(ctx context.Context, in CancelInput) (kiosk.Order, error) {
	note := in.Note
	if note == "" {
		note = noteCancelled
	}
	return s.transition(ctx, ChangeStatusInput{OrderID: in.OrderID, To: kiosk.StatusCancelled, Actor: in.Actor, Note: note}, true)
}

func (s *Service) transition(ctx context.Context, in ChangeStatusInput, cancel bool) (kiosk.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.ChangeStatus", trace.WithAttributes(
		attribute.Int64("order_id", in.OrderID), attribute.String("to_status", string(in.To))))
	defer span.End()

	order, from, err := s.applyTransition(ctx, in, cancel)
	if err != nil {
		s.recordError(span, err)
		s.logger.Info("status change rejected", zap.Int64("order_id", in.OrderID), zap.String("to_status", string(in.To)), zap.Error(err))
		return kiosk.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(in.To)).Inc()
	}

	changedAt := order.Events[len(order.Events)-1].ChangedAt
	s.notify.Notify(fanout.DeviceGroup(order.DeviceID), fanout.OrderStatusChanged{
		OrderID:    order.ID,
		Status:     string(order.Status),
		FromStatus: string(from),
		ChangedAt:  changedAt,
	})
	s.notify.Notify(fanout.StaffGroup, fanout.OrderUpdated{
		OrderID:    order.ID,
		Status:     string(order.Status),
		FromStatus: string(from),
		ChangedAt:  changedAt,
	})
	s.logger.Info("order status changed",
		zap.Int64("order_id", order.ID), zap.String("from_status", string(from)), zap.String("to_status", string(order.Status)))
	return order, nil
}

func (s *Service) applyTransition(ctx context.Context, in ChangeStatusInput, cancel bool) (kiosk.Order, kiosk.Status, error) {
	if _, ok := kiosk.ParseStatus(string(in.To)); !ok {
		return kiosk.Order{}, "", kiosk.Invalid("invalid status %q", in.To)
	}

	// Items never change after placement, so the lock set can be computed
	// before the locks are held.
	var current kiosk.Order
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		var err error
		current, err = tx.Order(ctx, in.OrderID)
		return err
	})
	if err != nil {
		return kiosk.Order{}, "", err
	}
	if current.Status.Terminal() {
		return kiosk.Order{}, "", &kiosk.TerminalStateError{OrderID: current.ID, Status: current.Status, Cancel: cancel}
	}

	keys := append([]inventory.LockKey{inventory.OrderKey(current.ID)}, inventory.StockKeys(current.ProductIDs())...)
	release, err := s.acquire(ctx, keys...)
	if err != nil {
		return kiosk.Order{}, "", err
	}
	defer release()

	var (
		order kiosk.Order
		from  kiosk.Status
	)
	err = s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		o, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return &kiosk.TerminalStateError{OrderID: o.ID, Status: o.Status, Cancel: cancel}
		}

		now := s.now()
		var actorID *int64
		if in.Actor != nil {
			id := in.Actor.ID
			actorID = &id
		}
		lines := inventory.LinesOf(o)

		switch in.To {
		case kiosk.StatusDelivered:
			a, err := tx.LockAssignment(ctx, o.AssignmentID)
			if err != nil {
				return err
			}
			entry := inventory.Entry{OrderID: o.ID, ActorID: actorID, Note: fmt.Sprintf("Delivered order #%d", o.ID)}
			if err := s.ledger.Consume(ctx, tx, entry, lines); err != nil {
				return err
			}
			o.DeliveredAt = &now

			open, err := tx.CountOpenOrders(ctx, o.AssignmentID, o.ID)
			if err != nil {
				return fmt.Errorf("count open orders: %w", err)
			}
			if open == 0 && a.CanPatientOrder {
				a.CanPatientOrder = false
				if err := tx.SaveAssignment(ctx, a); err != nil {
					return fmt.Errorf("block patient ordering: %w", err)
				}
			}
		case kiosk.StatusCancelled:
			entry := inventory.Entry{OrderID: o.ID, ActorID: actorID, Note: fmt.Sprintf("Cancelled order #%d", o.ID)}
			if err := s.ledger.Release(ctx, tx, entry, lines); err != nil {
				return err
			}
			o.CancelledAt = &now
		}

		from = o.Status
		o.Status = in.To
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		ev := kiosk.StatusEvent{From: from, To: in.To, ChangedBy: actorID, Note: in.Note, ChangedAt: now}
		if err := tx.AppendStatusEvent(ctx, o.ID, ev); err != nil {
			return fmt.Errorf("append status event: %w", err)
		}
		o.Events = append(o.Events, ev)
		order = o
		return nil
	})
	return order, from, err
}

// prepareItems validates the request and snapshots catalog data onto items.
func (s *Service) prepareItems(ctx context.Context, in []ItemInput) ([]kiosk.OrderItem, map[int64]kiosk.Product, error) {
	if len(in) == 0 {
		return nil, nil, kiosk.Invalid("order must contain at least one item")
	}
	ids := make([]int64, 0, len(in))
	for _, it := range in {
		if it.ProductID <= 0 {
			return nil, nil, kiosk.Invalid("product_id is required")
		}
		if it.Quantity <= 0 {
			return nil, nil, kiosk.Invalid("quantity for product %d must be greater than 0", it.ProductID)
		}
		if it.Quantity > MaxLineQuantity {
			return nil, nil, kiosk.Invalid("quantity for product %d must be at most %d", it.ProductID, MaxLineQuantity)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.catalog.Products(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog lookup: %w", err)
	}

	items := make([]kiosk.OrderItem, 0, len(in))
	for _, it := range in {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, kiosk.NotFound("product", it.ProductID)
		}
		if !p.Active {
			return nil, nil, &kiosk.ProductUnavailableError{ProductID: p.ID, ProductName: p.Name}
		}
		items = append(items, kiosk.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitLabel:   p.UnitLabel,
		})
	}
	return items, products, nil
}

// recheckActive re-reads availability from the store inside the placement
// transaction; the catalog snapshot may come from a cache.
func recheckActive(ctx context.Context, tx kiosk.Tx, items []kiosk.OrderItem) error {
	current, err := tx.Products(ctx, itemProductIDs(items))
	if err != nil {
		return fmt.Errorf("product lookup: %w", err)
	}
	for _, it := range items {
		p, ok := current[it.ProductID]
		if !ok {
			return kiosk.NotFound("product", it.ProductID)
		}
		if !p.Active {
			return &kiosk.ProductUnavailableError{ProductID: p.ID, ProductName: p.Name}
		}
	}
	return nil
}

func (s *Service) reserve(ctx context.Context, tx kiosk.Tx, o kiosk.Order, actorID *int64, products map[int64]kiosk.Product) error {
	entry := inventory.Entry{OrderID: o.ID, ActorID: actorID, Note: fmt.Sprintf("Reserved for order #%d", o.ID)}
	err := s.ledger.Reserve(ctx, tx, entry, inventory.LinesOf(o))
	var ise *kiosk.InsufficientStockError
	if errors.As(err, &ise) {
		ise.ProductName = products[ise.ProductID].Name
	}
	return err
}

func (s *Service) acquire(ctx context.Context, keys ...inventory.LockKey) (func(), error) {
	start := time.Now()
	release, err := s.locks.Acquire(ctx, keys...)
	if s.metrics != nil {
		s.metrics.LockWait.Observe(time.Since(start).Seconds())
	}
	return release, err
}

func newOrder(d kiosk.Device, a kiosk.Assignment, items []kiosk.OrderItem, now time.Time, first kiosk.StatusEvent) kiosk.Order {
	roomID := a.RoomID
	if roomID == nil {
		roomID = d.RoomID
	}
	return kiosk.Order{
		DeviceID:     d.ID,
		DeviceUID:    d.UID,
		AssignmentID: a.ID,
		PatientID:    a.PatientID,
		RoomID:       roomID,
		RoomCode:     a.RoomCode,
		Status:       kiosk.StatusPlaced,
		PlacedAt:     now,
		Items:        items,
		Events:       []kiosk.StatusEvent{first},
	}
}

func itemProductIDs(items []kiosk.OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func (s *Service) placed(source string) {
	if s.metrics != nil {
		s.metrics.OrdersPlaced.WithLabelValues(source).Inc()
	}
}

func (s *Service) rejected(span trace.Span, err error) {
	if s.metrics != nil {
		s.metrics.OrdersRejected.WithLabelValues(string(kiosk.KindOf(err))).Inc()
	}
	s.recordError(span, err)
}

func (s *Service) recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kiosk.KindOf(err)))
}
