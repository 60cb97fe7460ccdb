package orders

import (
	"context"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/services/inventory"
)

// DefaultQueueStatuses is what the staff queue shows without a filter.
var DefaultQueueStatuses = []kiosk.Status{kiosk.StatusPlaced, kiosk.StatusPreparing}

type QueueInput struct {
	Statuses []string
	// Mine limits the queue to the actor's active assignment.
	Mine  bool
	Actor kiosk.Actor
	Limit int
}

func (s *Service) GetOrder(ctx context.Context, id int64) (kiosk.Order, error) {
	var o kiosk.Order
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		var err error
		o, err = tx.Order(ctx, id)
		return err
	})
	return o, err
}

// ActiveOrders lists the open orders of the device's current patient,
// newest first. A device without an active assignment has none.
func (s *Service) ActiveOrders(ctx context.Context, deviceUID string) ([]kiosk.Order, error) {
	if deviceUID == "" {
		return nil, kiosk.Invalid("device_uid is required")
	}
	var out []kiosk.Order
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		d, err := tx.DeviceByUID(ctx, deviceUID)
		if err != nil {
			return err
		}
		if !d.IsActive {
			return kiosk.NotFound("device", deviceUID)
		}
		a, err := tx.ActiveAssignmentForDevice(ctx, d.ID, false)
		if err != nil || a == nil {
			return err
		}
		out, err = tx.ListOrders(ctx, kiosk.OrderFilter{
			Statuses:     kiosk.OpenStatuses,
			DeviceID:     &d.ID,
			AssignmentID: &a.ID,
		})
		return err
	})
	if out == nil {
		out = []kiosk.Order{}
	}
	return out, err
}

// Queue lists orders for staff. Unknown statuses are ignored; if none of
// the requested statuses is known the default filter applies.
func (s *Service) Queue(ctx context.Context, in QueueInput) ([]kiosk.Order, error) {
	statuses := parseStatuses(in.Statuses)
	var out []kiosk.Order
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		f := kiosk.OrderFilter{Statuses: statuses, Limit: in.Limit}
		if in.Mine {
			a, err := tx.ActiveAssignmentForStaff(ctx, in.Actor.ID)
			if err != nil || a == nil {
				return err
			}
			f.AssignmentID = &a.ID
		}
		var err error
		out, err = tx.ListOrders(ctx, f)
		return err
	})
	if out == nil {
		out = []kiosk.Order{}
	}
	return out, err
}

func parseStatuses(raw []string) []kiosk.Status {
	var out []kiosk.Status
	for _, r := range raw {
		if st, ok := kiosk.ParseStatus(r); ok {
			out = append(out, st)
		}
	}
	if len(out) == 0 {
		return DefaultQueueStatuses
	}
	return out
}

// StockReport returns the product's counters with a movement reconciliation.
func (s *Service) StockReport(ctx context.Context, productID int64) (inventory.Audit, error) {
	var a inventory.Audit
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		var err error
		a, err = s.ledger.Audit(ctx, tx, productID)
		return err
	})
	return a, err
}
