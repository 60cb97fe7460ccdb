package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	Name        string          `gorm:"size:255;not null"`
	Category    string          `gorm:"size:50;index;not null"`
	IsActive    bool            `gorm:"default:true"`
	UnitLabel   string          `gorm:"size:50"`
	Rating      decimal.Decimal `gorm:"type:numeric(4,2);not null;default:0"`
	RatingCount int             `gorm:"not null;default:0"`
	RatingTotal int             `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Product) TableName() string { return "catalog_products" }

type InventoryStock struct {
	ProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	OnHand    int   `gorm:"not null;default:0;check:chk_stock_on_hand,on_hand >= 0"`
	Reserved  int   `gorm:"not null;default:0;check:chk_stock_reserved,reserved >= 0 AND reserved <= on_hand"`
	UpdatedAt time.Time
}

type InventoryMovement struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ProductID int64  `gorm:"index;not null"`
	Kind      string `gorm:"size:16;not null"`
	Quantity  int    `gorm:"not null"`
	OrderID   int64  `gorm:"index"`
	Note      string `gorm:"size:255"`
	ActorID   *int64
	CreatedAt time.Time `gorm:"index"`
}

type Room struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Code string `gorm:"size:50;uniqueIndex;not null"`
}

type Patient struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	FullName string `gorm:"size:255;not null"`
}

type Device struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	DeviceUID  string `gorm:"column:device_uid;size:100;uniqueIndex;not null"`
	RoomID     *int64
	IsActive   bool `gorm:"default:true"`
	LastSeenAt *time.Time
}

// PatientAssignment keeps the patient name and room code as of the start
// of care. The partial unique indexes back the one-active-per-staff and
// one-active-per-device rules under concurrent inserts.
type PatientAssignment struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	PatientID       int64  `gorm:"index;not null"`
	PatientName     string `gorm:"size:255"`
	StaffID         int64  `gorm:"not null;index:idx_assignment_active_staff,unique,where:is_active"`
	DeviceID        int64  `gorm:"not null;index:idx_assignment_active_device,unique,where:is_active"`
	RoomID          *int64
	RoomCode        string      `gorm:"size:50"`
	OrderLimits     OrderLimits `gorm:"type:jsonb;not null;default:'{}'"`
	CanPatientOrder bool        `gorm:"default:true"`
	SurveyEnabled   bool        `gorm:"default:false"`
	SurveyEnabledAt *time.Time
	IsActive        bool      `gorm:"default:true"`
	StartedAt       time.Time `gorm:"not null"`
	EndedAt         *time.Time
}

type Order struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	DeviceID     int64  `gorm:"index;not null"`
	DeviceUID    string `gorm:"column:device_uid;size:100"`
	AssignmentID int64  `gorm:"index;not null"`
	PatientID    int64  `gorm:"index;not null"`
	RoomID       *int64
	RoomCode     string    `gorm:"size:50"`
	Status       string    `gorm:"size:16;index;not null"`
	PlacedAt     time.Time `gorm:"index;not null"`
	DeliveredAt  *time.Time
	CancelledAt  *time.Time

	Items  []OrderItem        `gorm:"foreignKey:OrderID"`
	Events []OrderStatusEvent `gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	OrderID     int64  `gorm:"index;not null"`
	ProductID   int64  `gorm:"not null"`
	ProductName string `gorm:"size:255;not null"`
	Quantity    int    `gorm:"not null;check:chk_item_quantity,quantity > 0"`
	UnitLabel   string `gorm:"size:50"`
}

type OrderStatusEvent struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	OrderID    int64  `gorm:"index;not null"`
	FromStatus string `gorm:"size:16"`
	ToStatus   string `gorm:"size:16;not null"`
	ChangedBy  *int64
	Note       string    `gorm:"size:255"`
	ChangedAt  time.Time `gorm:"not null"`
}

type Feedback struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	AssignmentID   int64          `gorm:"uniqueIndex;not null"`
	PatientID      int64          `gorm:"index;not null"`
	StaffRating    int            `gorm:"not null"`
	StayRating     int            `gorm:"not null"`
	ProductRatings ProductRatings `gorm:"type:jsonb;not null;default:'{}'"`
	Comment        *string        `gorm:"type:text"`
	CreatedAt      time.Time
}

func (Feedback) TableName() string { return "feedbacks" }

// OrderLimits is stored as a JSON object of category to max quantity.
type OrderLimits map[string]int

func (l *OrderLimits) Scan(value interface{}) error {
	if value == nil {
		*l = OrderLimits{}
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan OrderLimits: %w", err)
	}
	return json.Unmarshal(bytes, l)
}

func (l OrderLimits) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// ProductRatings is stored as {"<order id>": {"<product id>": rating}}.
type ProductRatings map[int64]map[int64]int

func (r *ProductRatings) Scan(value interface{}) error {
	if value == nil {
		*r = ProductRatings{}
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan ProductRatings: %w", err)
	}
	out := ProductRatings{}
	if err := json.Unmarshal(bytes, (*map[int64]map[int64]int)(&out)); err != nil {
		return err
	}
	*r = out
	return nil
}

func (r ProductRatings) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[int64]map[int64]int(r))
	return string(b), err
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
