package kiosk

import (
	"context"
	"time"
)

// Catalog resolves products by id. Missing ids are absent from the result.
type Catalog interface {
	Products(ctx context.Context, ids []int64) (map[int64]Product, error)
}

// Store is the durable state behind the engine. WithinTx commits only
// when fn returns nil; any error rolls back every write made through tx.
type Store interface {
	Catalog
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type OrderFilter struct {
	Statuses     []Status
	DeviceID     *int64
	AssignmentID *int64
	PatientID    *int64
	Limit        int
}

// Tx is one atomic unit of work. Lock* methods take exclusive row locks
// that are held until the transaction ends.
type Tx interface {
	// LockStocks locks stock rows in ascending product id, creating
	// missing rows with zero counts.
	LockStocks(ctx context.Context, productIDs []int64) (map[int64]*Stock, error)
	SaveStock(ctx context.Context, s Stock) error
	// Stock reads without locking. A product never stocked reads as zero.
	Stock(ctx context.Context, productID int64) (Stock, error)
	AppendMovement(ctx context.Context, m *Movement) error
	Movements(ctx context.Context, productID int64) ([]Movement, error)

	Products(ctx context.Context, ids []int64) (map[int64]Product, error)
	LockProducts(ctx context.Context, ids []int64) (map[int64]*Product, error)
	SaveProductRating(ctx context.Context, p Product) error

	DeviceByUID(ctx context.Context, uid string) (Device, error)
	Device(ctx context.Context, id int64) (Device, error)
	TouchDevice(ctx context.Context, id int64, at time.Time) error
	Patient(ctx context.Context, id int64) (Patient, error)
	Room(ctx context.Context, id int64) (Room, error)

	// ActiveAssignmentForDevice returns nil when the device has none.
	ActiveAssignmentForDevice(ctx context.Context, deviceID int64, lock bool) (*Assignment, error)
	// ActiveAssignmentForStaff returns nil when the staff member has none.
	ActiveAssignmentForStaff(ctx context.Context, staffID int64) (*Assignment, error)
	LockAssignment(ctx context.Context, id int64) (Assignment, error)
	CreateAssignment(ctx context.Context, a *Assignment) error
	SaveAssignment(ctx context.Context, a Assignment) error

	CreateOrder(ctx context.Context, o *Order) error
	Order(ctx context.Context, id int64) (Order, error)
	LockOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	AppendStatusEvent(ctx context.Context, orderID int64, ev StatusEvent) error
	CountOpenOrders(ctx context.Context, assignmentID, excludeOrderID int64) (int, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)

	FeedbackExists(ctx context.Context, assignmentID int64) (bool, error)
	CreateFeedback(ctx context.Context, f *Feedback) error
}
