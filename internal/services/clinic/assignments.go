// Package clinic holds patient-assignment policy: the ordering gate and
// the staff operations that change an assignment during a care session.
package clinic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

type Notifier interface {
	Notify(group string, e fanout.Event)
}

type Service struct {
	store  kiosk.Store
	notify Notifier
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store kiosk.Store, notify Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		notify: notify,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateAssignmentInput struct {
	PatientID int64
	StaffID   int64
	DeviceID  int64
	RoomID    *int64
	Limits    map[string]int
}

// CreateAssignment starts a care session. A staff member holds at most one
// active assignment and a device serves at most one patient at a time.
func (s *Service) CreateAssignment(ctx context.Context, in CreateAssignmentInput) (kiosk.Assignment, error) {
	if err := validateLimits(in.Limits); err != nil {
		return kiosk.Assignment{}, err
	}
	var a kiosk.Assignment
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		existing, err := tx.ActiveAssignmentForStaff(ctx, in.StaffID)
		if err != nil {
			return err
		}
		if existing != nil {
			return kiosk.Conflict("staff member already has an active patient assignment")
		}

		device, err := tx.Device(ctx, in.DeviceID)
		if err != nil {
			return err
		}
		if !device.IsActive {
			return kiosk.Conflict("device is not active")
		}
		busy, err := tx.ActiveAssignmentForDevice(ctx, device.ID, true)
		if err != nil {
			return err
		}
		if busy != nil {
			return kiosk.Conflict("device already has an active patient assignment")
		}

		patient, err := tx.Patient(ctx, in.PatientID)
		if err != nil {
			return err
		}
		roomID := in.RoomID
		if roomID == nil {
			roomID = device.RoomID
		}
		var roomCode string
		if roomID != nil {
			room, err := tx.Room(ctx, *roomID)
			if err != nil {
				return err
			}
			roomCode = room.Code
		}

		limits := in.Limits
		if limits == nil {
			limits = map[string]int{}
		}
		a = kiosk.Assignment{
			PatientID:       patient.ID,
			PatientName:     patient.FullName,
			StaffID:         in.StaffID,
			DeviceID:        device.ID,
			RoomID:          roomID,
			RoomCode:        roomCode,
			OrderLimits:     limits,
			CanPatientOrder: true,
			IsActive:        true,
			StartedAt:       s.now(),
		}
		return tx.CreateAssignment(ctx, &a)
	})
	if err != nil {
		return kiosk.Assignment{}, err
	}

	s.notify.Notify(fanout.DeviceGroup(a.DeviceID), fanout.PatientAssigned{
		AssignmentID: a.ID,
		PatientID:    a.PatientID,
		PatientName:  a.PatientName,
		RoomCode:     fanout.StrPtr(a.RoomCode),
		StartedAt:    a.StartedAt,
	})
	s.logger.Info("patient assigned",
		zap.Int64("assignment_id", a.ID), zap.Int64("staff_id", a.StaffID), zap.Int64("device_id", a.DeviceID))
	return a, nil
}

func (s *Service) UpdateLimits(ctx context.Context, id int64, actor kiosk.Actor, limits map[string]int) (kiosk.Assignment, error) {
	if err := validateLimits(limits); err != nil {
		return kiosk.Assignment{}, err
	}
	a, err := s.mutate(ctx, id, actor, "update limits for", func(a *kiosk.Assignment) {
		a.OrderLimits = limits
	})
	if err != nil {
		return kiosk.Assignment{}, err
	}
	s.notify.Notify(fanout.DeviceGroup(a.DeviceID), fanout.LimitsUpdated{AssignmentID: a.ID, OrderLimits: a.OrderLimits})
	s.logger.Info("order limits updated", zap.Int64("assignment_id", a.ID), zap.Any("order_limits", a.OrderLimits))
	return a, nil
}

// EnableSurvey opens the end-of-stay survey on the patient's kiosk.
func (s *Service) EnableSurvey(ctx context.Context, id int64, actor kiosk.Actor) (kiosk.Assignment, error) {
	a, err := s.mutate(ctx, id, actor, "enable survey for", func(a *kiosk.Assignment) {
		now := s.now()
		a.SurveyEnabled = true
		a.SurveyEnabledAt = &now
	})
	if err != nil {
		return kiosk.Assignment{}, err
	}
	s.notify.Notify(fanout.DeviceGroup(a.DeviceID), fanout.SurveyEnabled{AssignmentID: a.ID, PatientID: a.PatientID, SurveyEnabled: true})
	s.logger.Info("survey enabled", zap.Int64("assignment_id", a.ID))
	return a, nil
}

// SetOrdering re-enables, or blocks, self-service ordering for the patient.
func (s *Service) SetOrdering(ctx context.Context, id int64, actor kiosk.Actor, allowed bool) (kiosk.Assignment, error) {
	a, err := s.mutate(ctx, id, actor, "change ordering for", func(a *kiosk.Assignment) {
		a.CanPatientOrder = allowed
	})
	if err != nil {
		return kiosk.Assignment{}, err
	}
	s.logger.Info("patient ordering changed", zap.Int64("assignment_id", a.ID), zap.Bool("allowed", allowed))
	return a, nil
}

// EndCare closes the session and tells both the kiosk and staff.
func (s *Service) EndCare(ctx context.Context, id int64, actor kiosk.Actor) (kiosk.Assignment, error) {
	var a kiosk.Assignment
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		var err error
		a, err = tx.LockAssignment(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(a.StaffID) {
			return kiosk.Forbidden("you can only end care for your own patient assignments")
		}
		a, err = EndInTx(ctx, tx, a, s.now())
		return err
	})
	if err != nil {
		return kiosk.Assignment{}, err
	}
	s.NotifyEnded(a)
	return a, nil
}

// EndInTx ends an active assignment inside an existing transaction.
func EndInTx(ctx context.Context, tx kiosk.Tx, a kiosk.Assignment, now time.Time) (kiosk.Assignment, error) {
	if !a.IsActive {
		return a, kiosk.Conflict("assignment has already ended")
	}
	a.IsActive = false
	a.EndedAt = &now
	if err := tx.SaveAssignment(ctx, a); err != nil {
		return a, fmt.Errorf("end assignment: %w", err)
	}
	return a, nil
}

// NotifyEnded emits the session-ended pair for an assignment that ended.
func (s *Service) NotifyEnded(a kiosk.Assignment) {
	var endedAt time.Time
	if a.EndedAt != nil {
		endedAt = *a.EndedAt
	}
	s.notify.Notify(fanout.DeviceGroup(a.DeviceID), fanout.SessionEnded{AssignmentID: a.ID, EndedAt: endedAt})
	s.notify.Notify(fanout.StaffGroup, fanout.PatientAssignmentEnded{AssignmentID: a.ID, StaffID: a.StaffID, EndedAt: endedAt})
	s.logger.Info("care session ended", zap.Int64("assignment_id", a.ID), zap.Int64("staff_id", a.StaffID))
}

func (s *Service) ActiveForStaff(ctx context.Context, staffID int64) (*kiosk.Assignment, error) {
	var a *kiosk.Assignment
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		var err error
		a, err = tx.ActiveAssignmentForStaff(ctx, staffID)
		return err
	})
	return a, err
}

func (s *Service) ActiveForDevice(ctx context.Context, deviceUID string) (kiosk.Device, *kiosk.Assignment, error) {
	var (
		d kiosk.Device
		a *kiosk.Assignment
	)
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		var err error
		if d, err = tx.DeviceByUID(ctx, deviceUID); err != nil {
			return err
		}
		if !d.IsActive {
			return kiosk.NotFound("device", deviceUID)
		}
		a, err = tx.ActiveAssignmentForDevice(ctx, d.ID, false)
		return err
	})
	return d, a, err
}

func (s *Service) mutate(ctx context.Context, id int64, actor kiosk.Actor, what string, fn func(a *kiosk.Assignment)) (kiosk.Assignment, error) {
	var a kiosk.Assignment
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		var err error
		a, err = tx.LockAssignment(ctx, id)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return kiosk.Conflict(fmt.Sprintf("cannot %s an ended assignment", what))
		}
		if !actor.Owns(a.StaffID) {
			return kiosk.Forbidden(fmt.Sprintf("you can only %s your own patient assignments", what))
		}
		fn(&a)
		return tx.SaveAssignment(ctx, a)
	})
	return a, err
}

func validateLimits(limits map[string]int) error {
	for category, n := range limits {
		if category == "" {
			return kiosk.Invalid("limit category must not be empty")
		}
		if n < 0 {
			return kiosk.Invalid("limit for %s must be a non-negative integer", category)
		}
	}
	return nil
}
