// Package inventory keeps per-product on-hand and reserved counts together
// with their append-only movement history.
package inventory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

// Line is one product quantity moved on behalf of an order.
type Line struct {
	ProductID int64
	Quantity  int
}

func LinesOf(o kiosk.Order) []Line {
	lines := make([]Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

// Entry describes who moved stock and why. It becomes the movement row.
type Entry struct {
	OrderID int64
	ActorID *int64
	Note    string
}

type Ledger struct {
	locks *Locker
	now   func() time.Time
}

func NewLedger(locks *Locker) *Ledger {
	return &Ledger{locks: locks, now: time.Now}
}

// Lock takes the in-process stock locks for productIDs. Callers hold them
// across the whole transaction that calls Reserve, Consume or Release.
func (l *Ledger) Lock(ctx context.Context, productIDs ...int64) (func(), error) {
	return l.locks.Acquire(ctx, StockKeys(productIDs)...)
}

// Reserve holds stock for every line or for none. Every line is checked
// against the locked rows before the first counter moves.
func (l *Ledger) Reserve(ctx context.Context, tx kiosk.Tx, e Entry, lines []Line) error {
	return l.apply(ctx, tx, e, lines, kiosk.MovementReserve)
}

// Consume turns a reservation into a permanent deduction of on-hand stock.
func (l *Ledger) Consume(ctx context.Context, tx kiosk.Tx, e Entry, lines []Line) error {
	return l.apply(ctx, tx, e, lines, kiosk.MovementConsume)
}

// Release gives reserved stock back to the available pool.
func (l *Ledger) Release(ctx context.Context, tx kiosk.Tx, e Entry, lines []Line) error {
	return l.apply(ctx, tx, e, lines, kiosk.MovementRelease)
}

func (l *Ledger) apply(ctx context.Context, tx kiosk.Tx, e Entry, lines []Line, kind kiosk.MovementKind) error {
	totals, ids, err := aggregate(lines)
	if err != nil {
		return err
	}

	stocks, err := tx.LockStocks(ctx, ids)
	if err != nil {
		return fmt.Errorf("lock stock: %w", err)
	}

	for _, id := range ids {
		st, qty := stocks[id], totals[id]
		switch kind {
		case kiosk.MovementReserve:
			if st.Available() < qty {
				return &kiosk.InsufficientStockError{ProductID: id, Available: st.Available(), Requested: qty}
			}
		case kiosk.MovementConsume, kiosk.MovementRelease:
			if st.Reserved < qty {
				return fmt.Errorf("%w: %s %d of product %d with %d reserved", kiosk.ErrLedgerInvariant, kind, qty, id, st.Reserved)
			}
		}
	}

	now := l.now()
	for _, id := range ids {
		st, qty := stocks[id], totals[id]
		switch kind {
		case kiosk.MovementReserve:
			st.Reserved += qty
		case kiosk.MovementConsume:
			st.Reserved -= qty
			st.OnHand -= qty
		case kiosk.MovementRelease:
			st.Reserved -= qty
		}
		st.UpdatedAt = now
		if err := tx.SaveStock(ctx, *st); err != nil {
			return fmt.Errorf("save stock %d: %w", id, err)
		}
	}

	for _, ln := range lines {
		m := &kiosk.Movement{
			ProductID: ln.ProductID,
			Kind:      kind,
			Quantity:  ln.Quantity,
			OrderID:   e.OrderID,
			Note:      e.Note,
			ActorID:   e.ActorID,
			CreatedAt: now,
		}
		if err := tx.AppendMovement(ctx, m); err != nil {
			return fmt.Errorf("append %s movement: %w", kind, err)
		}
	}
	return nil
}

func aggregate(lines []Line) (map[int64]int, []int64, error) {
	if len(lines) == 0 {
		return nil, nil, kiosk.Invalid("no stock lines")
	}
	totals := make(map[int64]int, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, nil, kiosk.Invalid("quantity for product %d must be greater than 0", ln.ProductID)
		}
		if totals[ln.ProductID] > math.MaxInt-ln.Quantity {
			return nil, nil, kiosk.Invalid("quantity for product %d is too large", ln.ProductID)
		}
		totals[ln.ProductID] += ln.Quantity
		ids = append(ids, ln.ProductID)
	}
	return totals, kiosk.SortedUnique(ids), nil
}

// Audit compares a product's reserved counter with its movement history.
type Audit struct {
	Stock      kiosk.Stock `json:"stock"`
	Available  int         `json:"available"`
	Reserved   int         `json:"reserved_from_movements"`
	Consumed   int         `json:"consumed_from_movements"`
	Movements  int         `json:"movements"`
	Consistent bool        `json:"consistent"`
}

func (l *Ledger) Audit(ctx context.Context, tx kiosk.Tx, productID int64) (Audit, error) {
	st, err := tx.Stock(ctx, productID)
	if err != nil {
		return Audit{}, fmt.Errorf("read stock: %w", err)
	}
	mv, err := tx.Movements(ctx, productID)
	if err != nil {
		return Audit{}, fmt.Errorf("read movements: %w", err)
	}
	reserved, consumed := Reconcile(mv)
	return Audit{
		Stock:      st,
		Available:  st.Available(),
		Reserved:   reserved,
		Consumed:   consumed,
		Movements:  len(mv),
		Consistent: reserved == st.Reserved && st.Reserved >= 0 && st.Reserved <= st.OnHand,
	}, nil
}

// Reconcile folds a movement history into the reserved quantity it implies
// and the total consumed.
func Reconcile(mv []kiosk.Movement) (reserved, consumed int) {
	for _, m := range mv {
		switch m.Kind {
		case kiosk.MovementReserve:
			reserved += m.Quantity
		case kiosk.MovementRelease:
			reserved -= m.Quantity
		case kiosk.MovementConsume:
			reserved -= m.Quantity
			consumed += m.Quantity
		}
	}
	return reserved, consumed
}
