package main

import (
	"github.com/Quint4n4/MenuInteractivo/internal/database/memory"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

// seedDemo fills an in-memory store with one room, patient and tablet plus
// a small catalog, enough to drive the kiosk end to end locally.
func seedDemo(store *memory.Store) {
	room := int64(1)
	store.PutRoom(kiosk.Room{ID: room, Code: "A-101"})
	store.PutPatient(kiosk.Patient{ID: 1, FullName: "Demo Patient"})
	store.PutDevice(kiosk.Device{ID: 1, UID: "demo-ipad-1", RoomID: &room, IsActive: true})

	products := []struct {
		product kiosk.Product
		onHand  int
	}{
		{kiosk.Product{ID: 1, Name: "Agua natural", Category: "DRINK", UnitLabel: "botella"}, 50},
		{kiosk.Product{ID: 2, Name: "Jugo de manzana", Category: "DRINK", UnitLabel: "vaso"}, 30},
		{kiosk.Product{ID: 3, Name: "Galletas", Category: "SNACK", UnitLabel: "paquete"}, 40},
		{kiosk.Product{ID: 4, Name: "Cobija extra", Category: "COMFORT", UnitLabel: "pieza"}, 10},
	}
	for _, p := range products {
		p.product.Active = true
		store.PutProduct(p.product)
		store.PutStock(p.product.ID, p.onHand)
	}
}
