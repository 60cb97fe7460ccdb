package fanout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StaffGroup reaches every connected staff session.
const StaffGroup = "staff_orders"

const devicePrefix = "device:"

// DeviceGroup reaches the kiosk connections of one device.
func DeviceGroup(deviceID int64) string {
	return devicePrefix + strconv.FormatInt(deviceID, 10)
}

// Audience labels a group for metrics: "staff" or "device".
func Audience(group string) string {
	if strings.HasPrefix(group, devicePrefix) {
		return "device"
	}
	return "staff"
}

// Event is one notification payload. Type is written to the "type" field
// of the encoded object.
type Event interface {
	Type() string
}

type NewOrder struct {
	OrderID   int64     `json:"order_id"`
	RoomCode  *string   `json:"room_code"`
	DeviceUID *string   `json:"device_uid"`
	PlacedAt  time.Time `json:"placed_at"`
}

type OrderUpdated struct {
	OrderID    int64     `json:"order_id"`
	Status     string    `json:"status"`
	FromStatus string    `json:"from_status"`
	ChangedAt  time.Time `json:"changed_at"`
}

type PatientAssignmentEnded struct {
	AssignmentID int64     `json:"assignment_id"`
	StaffID      int64     `json:"staff_id"`
	EndedAt      time.Time `json:"ended_at"`
}

type OrderStatusChanged struct {
	OrderID    int64     `json:"order_id"`
	Status     string    `json:"status"`
	FromStatus string    `json:"from_status"`
	ChangedAt  time.Time `json:"changed_at"`
}

type OrderCreatedByStaff struct {
	OrderID  int64     `json:"order_id"`
	PlacedAt time.Time `json:"placed_at"`
}

type PatientAssigned struct {
	AssignmentID int64     `json:"assignment_id"`
	PatientID    int64     `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	RoomCode     *string   `json:"room_code"`
	StartedAt    time.Time `json:"started_at"`
}

type LimitsUpdated struct {
	AssignmentID int64          `json:"assignment_id"`
	OrderLimits  map[string]int `json:"order_limits"`
}

type SurveyEnabled struct {
	AssignmentID  int64 `json:"assignment_id"`
	PatientID     int64 `json:"patient_id"`
	SurveyEnabled bool  `json:"survey_enabled"`
}

type SessionEnded struct {
	AssignmentID int64     `json:"assignment_id"`
	EndedAt      time.Time `json:"ended_at"`
}

func (NewOrder) Type() string               { return "new_order" }
func (OrderUpdated) Type() string           { return "order_updated" }
func (PatientAssignmentEnded) Type() string { return "patient_assignment_ended" }
func (OrderStatusChanged) Type() string     { return "order_status_changed" }
func (OrderCreatedByStaff) Type() string    { return "order_created_by_staff" }
func (PatientAssigned) Type() string        { return "patient_assigned" }
func (LimitsUpdated) Type() string          { return "limits_updated" }
func (SurveyEnabled) Type() string          { return "survey_enabled" }
func (SessionEnded) Type() string           { return "session_ended" }

// Encode renders e as a flat JSON object carrying its type tag.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	tag, _ := json.Marshal(e.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}

// StrPtr returns nil for the empty string so optional fields encode as null.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
