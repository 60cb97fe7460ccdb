package kiosk

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// OpenStatuses are the statuses of an order that still holds a reservation.
var OpenStatuses = []Status{StatusPlaced, StatusPreparing, StatusReady}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPlaced, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) Open() bool {
	return s == StatusPlaced || s == StatusPreparing || s == StatusReady
}

type MovementKind string

const (
	MovementReserve MovementKind = "RESERVE"
	MovementConsume MovementKind = "CONSUME"
	MovementRelease MovementKind = "RELEASE"
)

// Stock is the per-product counter pair. 0 <= Reserved <= OnHand always.
type Stock struct {
	ProductID int64     `json:"product_id"`
	OnHand    int       `json:"on_hand"`
	Reserved  int       `json:"reserved"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Stock) Available() int {
	return s.OnHand - s.Reserved
}

type Movement struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	Kind      MovementKind `json:"kind"`
	Quantity  int          `json:"quantity"`
	OrderID   int64        `json:"order_id"`
	Note      string       `json:"note"`
	ActorID   *int64       `json:"actor_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Active      bool            `json:"active"`
	UnitLabel   string          `json:"unit_label"`
	Rating      decimal.Decimal `json:"rating"`
	RatingCount int             `json:"rating_count"`
	RatingTotal int             `json:"rating_total"`
}

type Device struct {
	ID         int64      `json:"id"`
	UID        string     `json:"device_uid"`
	RoomID     *int64     `json:"room_id,omitempty"`
	IsActive   bool       `json:"is_active"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

type Patient struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

type Room struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

type Assignment struct {
	ID              int64          `json:"id"`
	PatientID       int64          `json:"patient_id"`
	PatientName     string         `json:"patient_name"`
	StaffID         int64          `json:"staff_id"`
	DeviceID        int64          `json:"device_id"`
	RoomID          *int64         `json:"room_id,omitempty"`
	RoomCode        string         `json:"room_code,omitempty"`
	OrderLimits     map[string]int `json:"order_limits"`
	CanPatientOrder bool           `json:"can_patient_order"`
	SurveyEnabled   bool           `json:"survey_enabled"`
	SurveyEnabledAt *time.Time     `json:"survey_enabled_at,omitempty"`
	IsActive        bool           `json:"is_active"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
}

type OrderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitLabel   string `json:"unit_label"`
}

type StatusEvent struct {
	From      Status    `json:"from_status"`
	To        Status    `json:"to_status"`
	ChangedBy *int64    `json:"changed_by,omitempty"`
	Note      string    `json:"note"`
	ChangedAt time.Time `json:"changed_at"`
}

type Order struct {
	ID           int64         `json:"id"`
	DeviceID     int64         `json:"device_id"`
	DeviceUID    string        `json:"device_uid"`
	AssignmentID int64         `json:"assignment_id"`
	PatientID    int64         `json:"patient_id"`
	RoomID       *int64        `json:"room_id,omitempty"`
	RoomCode     string        `json:"room_code,omitempty"`
	Status       Status        `json:"status"`
	PlacedAt     time.Time     `json:"placed_at"`
	DeliveredAt  *time.Time    `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time    `json:"cancelled_at,omitempty"`
	Items        []OrderItem   `json:"items"`
	Events       []StatusEvent `json:"status_events"`
}

// ProductIDs returns the distinct products of the order in ascending order.
func (o Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return SortedUnique(ids)
}

type Feedback struct {
	ID             int64                   `json:"id"`
	AssignmentID   int64                   `json:"assignment_id"`
	PatientID      int64                   `json:"patient_id"`
	StaffRating    int                     `json:"staff_rating"`
	StayRating     int                     `json:"stay_rating"`
	ProductRatings map[int64]map[int64]int `json:"product_ratings"`
	Comment        string                  `json:"comment"`
	CreatedAt      time.Time               `json:"created_at"`
}

// Actor is the authenticated staff member behind a mutation.
type Actor struct {
	ID        int64
	Superuser bool
}

// Owns reports whether the actor may act on an assignment held by staffID.
func (a Actor) Owns(staffID int64) bool {
	return a.Superuser || a.ID == staffID
}

func SortedUnique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
