package database

import (
	"github.com/Quint4n4/MenuInteractivo/internal/database/models"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

func toStock(m models.InventoryStock) kiosk.Stock {
	return kiosk.Stock{ProductID: m.ProductID, OnHand: m.OnHand, Reserved: m.Reserved, UpdatedAt: m.UpdatedAt}
}

func toMovement(m models.InventoryMovement) kiosk.Movement {
	return kiosk.Movement{
		ID:        m.ID,
		ProductID: m.ProductID,
		Kind:      kiosk.MovementKind(m.Kind),
		Quantity:  m.Quantity,
		OrderID:   m.OrderID,
		Note:      m.Note,
		ActorID:   m.ActorID,
		CreatedAt: m.CreatedAt,
	}
}

func toProduct(m models.Product) kiosk.Product {
	return kiosk.Product{
		ID:          m.ID,
		Name:        m.Name,
		Category:    m.Category,
		Active:      m.IsActive,
		UnitLabel:   m.UnitLabel,
		Rating:      m.Rating,
		RatingCount: m.RatingCount,
		RatingTotal: m.RatingTotal,
	}
}

func toDevice(m models.Device) kiosk.Device {
	return kiosk.Device{ID: m.ID, UID: m.DeviceUID, RoomID: m.RoomID, IsActive: m.IsActive, LastSeenAt: m.LastSeenAt}
}

func toAssignment(m models.PatientAssignment) kiosk.Assignment {
	limits := make(map[string]int, len(m.OrderLimits))
	for k, v := range m.OrderLimits {
		limits[k] = v
	}
	return kiosk.Assignment{
		ID:              m.ID,
		PatientID:       m.PatientID,
		PatientName:     m.PatientName,
		StaffID:         m.StaffID,
		DeviceID:        m.DeviceID,
		RoomID:          m.RoomID,
		RoomCode:        m.RoomCode,
		OrderLimits:     limits,
		CanPatientOrder: m.CanPatientOrder,
		SurveyEnabled:   m.SurveyEnabled,
		SurveyEnabledAt: m.SurveyEnabledAt,
		IsActive:        m.IsActive,
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
	}
}

func fromAssignment(a kiosk.Assignment) models.PatientAssignment {
	return models.PatientAssignment{
		ID:              a.ID,
		PatientID:       a.PatientID,
		PatientName:     a.PatientName,
		StaffID:         a.StaffID,
		DeviceID:        a.DeviceID,
		RoomID:          a.RoomID,
		RoomCode:        a.RoomCode,
		OrderLimits:     models.OrderLimits(a.OrderLimits),
		CanPatientOrder: a.CanPatientOrder,
		SurveyEnabled:   a.SurveyEnabled,
		SurveyEnabledAt: a.SurveyEnabledAt,
		IsActive:        a.IsActive,
		StartedAt:       a.StartedAt,
		EndedAt:         a.EndedAt,
	}
}

func toOrder(m models.Order) kiosk.Order {
	o := kiosk.Order{
		ID:           m.ID,
		DeviceID:     m.DeviceID,
		DeviceUID:    m.DeviceUID,
		AssignmentID: m.AssignmentID,
		PatientID:    m.PatientID,
		RoomID:       m.RoomID,
		RoomCode:     m.RoomCode,
		Status:       kiosk.Status(m.Status),
		PlacedAt:     m.PlacedAt,
		DeliveredAt:  m.DeliveredAt,
		CancelledAt:  m.CancelledAt,
		Items:        make([]kiosk.OrderItem, 0, len(m.Items)),
		Events:       make([]kiosk.StatusEvent, 0, len(m.Events)),
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, kiosk.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitLabel:   it.UnitLabel,
		})
	}
	for _, ev := range m.Events {
		o.Events = append(o.Events, toStatusEvent(ev))
	}
	return o
}

func fromOrder(o kiosk.Order) models.Order {
	m := models.Order{
		DeviceID:     o.DeviceID,
		DeviceUID:    o.DeviceUID,
		AssignmentID: o.AssignmentID,
		PatientID:    o.PatientID,
		RoomID:       o.RoomID,
		RoomCode:     o.RoomCode,
		Status:       string(o.Status),
		PlacedAt:     o.PlacedAt,
		DeliveredAt:  o.DeliveredAt,
		CancelledAt:  o.CancelledAt,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitLabel:   it.UnitLabel,
		})
	}
	for _, ev := range o.Events {
		m.Events = append(m.Events, fromStatusEvent(0, ev))
	}
	return m
}

func toStatusEvent(m models.OrderStatusEvent) kiosk.StatusEvent {
	return kiosk.StatusEvent{
		From:      kiosk.Status(m.FromStatus),
		To:        kiosk.Status(m.ToStatus),
		ChangedBy: m.ChangedBy,
		Note:      m.Note,
		ChangedAt: m.ChangedAt,
	}
}

func fromStatusEvent(orderID int64, ev kiosk.StatusEvent) models.OrderStatusEvent {
	return models.OrderStatusEvent{
		OrderID:    orderID,
		FromStatus: string(ev.From),
		ToStatus:   string(ev.To),
		ChangedBy:  ev.ChangedBy,
		Note:       ev.Note,
		ChangedAt:  ev.ChangedAt,
	}
}
