// Package memory is an in-process kiosk.Store used by tests and by the
// orders service when STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

type state struct {
	stocks      map[int64]kiosk.Stock
	movements   []kiosk.Movement
	products    map[int64]kiosk.Product
	devices     map[int64]kiosk.Device
	patients    map[int64]kiosk.Patient
	rooms       map[int64]kiosk.Room
	assignments map[int64]kiosk.Assignment
	orders      map[int64]kiosk.Order
	feedback    map[int64]kiosk.Feedback

	lastMovement   int64
	lastAssignment int64
	lastOrder      int64
	lastFeedback   int64
}

func newState() state {
	return state{
		stocks:      map[int64]kiosk.Stock{},
		products:    map[int64]kiosk.Product{},
		devices:     map[int64]kiosk.Device{},
		patients:    map[int64]kiosk.Patient{},
		rooms:       map[int64]kiosk.Room{},
		assignments: map[int64]kiosk.Assignment{},
		orders:      map[int64]kiosk.Order{},
		feedback:    map[int64]kiosk.Feedback{},
	}
}

func (s state) clone() state {
	c := s
	c.stocks = make(map[int64]kiosk.Stock, len(s.stocks))
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	c.movements = append([]kiosk.Movement(nil), s.movements...)
	c.products = make(map[int64]kiosk.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.devices = make(map[int64]kiosk.Device, len(s.devices))
	for k, v := range s.devices {
		c.devices[k] = v
	}
	c.patients = make(map[int64]kiosk.Patient, len(s.patients))
	for k, v := range s.patients {
		c.patients[k] = v
	}
	c.rooms = make(map[int64]kiosk.Room, len(s.rooms))
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	c.assignments = make(map[int64]kiosk.Assignment, len(s.assignments))
	for k, v := range s.assignments {
		c.assignments[k] = cloneAssignment(v)
	}
	c.orders = make(map[int64]kiosk.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	c.feedback = make(map[int64]kiosk.Feedback, len(s.feedback))
	for k, v := range s.feedback {
		c.feedback[k] = v
	}
	return c
}

func cloneAssignment(a kiosk.Assignment) kiosk.Assignment {
	limits := make(map[string]int, len(a.OrderLimits))
	for k, v := range a.OrderLimits {
		limits[k] = v
	}
	a.OrderLimits = limits
	return a
}

func cloneOrder(o kiosk.Order) kiosk.Order {
	o.Items = append([]kiosk.OrderItem(nil), o.Items...)
	o.Events = append([]kiosk.StatusEvent(nil), o.Events...)
	return o
}

// Store serializes transactions behind one mutex. Each transaction works
// on a private copy that replaces the committed state only on success.
type Store struct {
	mu    sync.RWMutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx kiosk.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) Products(_ context.Context, ids []int64) (map[int64]kiosk.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]kiosk.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.state.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// Seeding helpers. These stand in for the catalog and clinic admin
// tooling that owns these rows in production.

func (s *Store) PutProduct(p kiosk.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

func (s *Store) PutDevice(d kiosk.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.devices[d.ID] = d
}

func (s *Store) PutPatient(p kiosk.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.patients[p.ID] = p
}

func (s *Store) PutRoom(r kiosk.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.rooms[r.ID] = r
}

func (s *Store) PutStock(productID int64, onHand int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.stocks[productID]
	st.ProductID = productID
	st.OnHand = onHand
	st.UpdatedAt = time.Now()
	s.state.stocks[productID] = st
}

type memTx struct {
	state state
}

var _ kiosk.Tx = (*memTx)(nil)

func (tx *memTx) LockStocks(_ context.Context, productIDs []int64) (map[int64]*kiosk.Stock, error) {
	out := make(map[int64]*kiosk.Stock, len(productIDs))
	for _, id := range kiosk.SortedUnique(productIDs) {
		st, ok := tx.state.stocks[id]
		if !ok {
			st = kiosk.Stock{ProductID: id, UpdatedAt: time.Now()}
			tx.state.stocks[id] = st
		}
		cp := st
		out[id] = &cp
	}
	return out, nil
}

func (tx *memTx) SaveStock(_ context.Context, s kiosk.Stock) error {
	tx.state.stocks[s.ProductID] = s
	return nil
}

func (tx *memTx) Stock(_ context.Context, productID int64) (kiosk.Stock, error) {
	if st, ok := tx.state.stocks[productID]; ok {
		return st, nil
	}
	return kiosk.Stock{ProductID: productID}, nil
}

func (tx *memTx) AppendMovement(_ context.Context, m *kiosk.Movement) error {
	tx.state.lastMovement++
	m.ID = tx.state.lastMovement
	tx.state.movements = append(tx.state.movements, *m)
	return nil
}

func (tx *memTx) Movements(_ context.Context, productID int64) ([]kiosk.Movement, error) {
	var out []kiosk.Movement
	for _, m := range tx.state.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memTx) Products(_ context.Context, ids []int64) (map[int64]kiosk.Product, error) {
	out := make(map[int64]kiosk.Product, len(ids))
	for _, id := range ids {
		if p, ok := tx.state.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (tx *memTx) LockProducts(_ context.Context, ids []int64) (map[int64]*kiosk.Product, error) {
	out := make(map[int64]*kiosk.Product, len(ids))
	for _, id := range kiosk.SortedUnique(ids) {
		if p, ok := tx.state.products[id]; ok {
			cp := p
			out[id] = &cp
		}
	}
	return out, nil
}

func (tx *memTx) SaveProductRating(_ context.Context, p kiosk.Product) error {
	cur, ok := tx.state.products[p.ID]
	if !ok {
		return kiosk.NotFound("product", p.ID)
	}
	cur.Rating = p.Rating
	cur.RatingCount = p.RatingCount
	cur.RatingTotal = p.RatingTotal
	tx.state.products[p.ID] = cur
	return nil
}

func (tx *memTx) DeviceByUID(_ context.Context, uid string) (kiosk.Device, error) {
	for _, d := range tx.state.devices {
		if d.UID == uid {
			return d, nil
		}
	}
	return kiosk.Device{}, kiosk.NotFound("device", uid)
}

func (tx *memTx) Device(_ context.Context, id int64) (kiosk.Device, error) {
	d, ok := tx.state.devices[id]
	if !ok {
		return kiosk.Device{}, kiosk.NotFound("device", id)
	}
	return d, nil
}

func (tx *memTx) TouchDevice(_ context.Context, id int64, at time.Time) error {
	d, ok := tx.state.devices[id]
	if !ok {
		return kiosk.NotFound("device", id)
	}
	d.LastSeenAt = &at
	tx.state.devices[id] = d
	return nil
}

func (tx *memTx) Patient(_ context.Context, id int64) (kiosk.Patient, error) {
	p, ok := tx.state.patients[id]
	if !ok {
		return kiosk.Patient{}, kiosk.NotFound("patient", id)
	}
	return p, nil
}

func (tx *memTx) Room(_ context.Context, id int64) (kiosk.Room, error) {
	r, ok := tx.state.rooms[id]
	if !ok {
		return kiosk.Room{}, kiosk.NotFound("room", id)
	}
	return r, nil
}

func (tx *memTx) ActiveAssignmentForDevice(_ context.Context, deviceID int64, _ bool) (*kiosk.Assignment, error) {
	return tx.findActive(func(a kiosk.Assignment) bool { return a.DeviceID == deviceID }), nil
}

func (tx *memTx) ActiveAssignmentForStaff(_ context.Context, staffID int64) (*kiosk.Assignment, error) {
	return tx.findActive(func(a kiosk.Assignment) bool { return a.StaffID == staffID }), nil
}

// findActive returns the most recently started active assignment matching fn.
func (tx *memTx) findActive(fn func(kiosk.Assignment) bool) *kiosk.Assignment {
	var best *kiosk.Assignment
	for _, a := range tx.state.assignments {
		if !a.IsActive || !fn(a) {
			continue
		}
		if best == nil || a.StartedAt.After(best.StartedAt) || (a.StartedAt.Equal(best.StartedAt) && a.ID > best.ID) {
			cp := cloneAssignment(a)
			best = &cp
		}
	}
	return best
}

func (tx *memTx) LockAssignment(_ context.Context, id int64) (kiosk.Assignment, error) {
	a, ok := tx.state.assignments[id]
	if !ok {
		return kiosk.Assignment{}, kiosk.NotFound("assignment", id)
	}
	return cloneAssignment(a), nil
}

func (tx *memTx) CreateAssignment(_ context.Context, a *kiosk.Assignment) error {
	tx.state.lastAssignment++
	a.ID = tx.state.lastAssignment
	tx.state.assignments[a.ID] = cloneAssignment(*a)
	return nil
}

func (tx *memTx) SaveAssignment(_ context.Context, a kiosk.Assignment) error {
	if _, ok := tx.state.assignments[a.ID]; !ok {
		return kiosk.NotFound("assignment", a.ID)
	}
	tx.state.assignments[a.ID] = cloneAssignment(a)
	return nil
}

func (tx *memTx) CreateOrder(_ context.Context, o *kiosk.Order) error {
	tx.state.lastOrder++
	o.ID = tx.state.lastOrder
	tx.state.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (tx *memTx) Order(_ context.Context, id int64) (kiosk.Order, error) {
	o, ok := tx.state.orders[id]
	if !ok {
		return kiosk.Order{}, kiosk.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func (tx *memTx) LockOrder(ctx context.Context, id int64) (kiosk.Order, error) {
	return tx.Order(ctx, id)
}

func (tx *memTx) UpdateOrder(_ context.Context, o kiosk.Order) error {
	cur, ok := tx.state.orders[o.ID]
	if !ok {
		return kiosk.NotFound("order", o.ID)
	}
	cur.Status = o.Status
	cur.DeliveredAt = o.DeliveredAt
	cur.CancelledAt = o.CancelledAt
	tx.state.orders[o.ID] = cur
	return nil
}

func (tx *memTx) AppendStatusEvent(_ context.Context, orderID int64, ev kiosk.StatusEvent) error {
	cur, ok := tx.state.orders[orderID]
	if !ok {
		return kiosk.NotFound("order", orderID)
	}
	cur.Events = append(cur.Events, ev)
	tx.state.orders[orderID] = cur
	return nil
}

func (tx *memTx) CountOpenOrders(_ context.Context, assignmentID, excludeOrderID int64) (int, error) {
	n := 0
	for _, o := range tx.state.orders {
		if o.AssignmentID == assignmentID && o.ID != excludeOrderID && o.Status.Open() {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) ListOrders(_ context.Context, f kiosk.OrderFilter) ([]kiosk.Order, error) {
	var out []kiosk.Order
	for _, o := range tx.state.orders {
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, o.Status) {
			continue
		}
		if f.DeviceID != nil && o.DeviceID != *f.DeviceID {
			continue
		}
		if f.AssignmentID != nil && o.AssignmentID != *f.AssignmentID {
			continue
		}
		if f.PatientID != nil && o.PatientID != *f.PatientID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].PlacedAt.After(out[j].PlacedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func hasStatus(list []kiosk.Status, s kiosk.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (tx *memTx) FeedbackExists(_ context.Context, assignmentID int64) (bool, error) {
	for _, f := range tx.state.feedback {
		if f.AssignmentID == assignmentID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) CreateFeedback(_ context.Context, f *kiosk.Feedback) error {
	tx.state.lastFeedback++
	f.ID = tx.state.lastFeedback
	tx.state.feedback[f.ID] = *f
	return nil
}
