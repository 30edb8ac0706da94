package client

import (
	"testing"

	"shipnotify/internal/domain/shipment"
	"shipnotify/internal/realtime"
)

func TestQueryCache(t *testing.T) {
	c := NewQueryCache()

	s := &shipment.Shipment{TrackingNumber: "UPS123", Status: shipment.StatusInTransit}
	c.SetShipment(s)
	s.Status = shipment.StatusDelivered
	got, ok := c.Shipment("UPS123")
	if !ok || got.Status != shipment.StatusInTransit {
		t.Errorf("Shipment = %+v, %v", got, ok)
	}
	if _, ok := c.Shipment("missing"); ok {
		t.Error("unknown shipment found")
	}

	c.SetTrackingHistory(&shipment.TrackingUpdate{
		TrackingNumber: "UPS123",
		History:        []shipment.TrackingEvent{{Status: shipment.StatusPickedUp}, {Status: shipment.StatusInTransit}},
	})
	h, ok := c.TrackingHistory("UPS123")
	if !ok || len(h) != 2 {
		t.Errorf("TrackingHistory = %v, %v", h, ok)
	}

	c.Invalidate(realtime.KeyShipments, realtime.KeyDashboardStats)
	if !c.Stale(realtime.KeyShipments) || !c.Stale(realtime.KeyDashboardStats) {
		t.Error("invalidated keys not stale")
	}
	c.Refreshed(realtime.KeyShipments)
	if c.Stale(realtime.KeyShipments) {
		t.Error("refreshed key still stale")
	}
}
