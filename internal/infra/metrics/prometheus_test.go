package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// sample returns the value of the series of family name whose labels match.
func sample(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue series
				}
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserver(t *testing.T) {
	var o Observer

	conns := sample(t, "shipnotify_ws_connections", nil)
	o.Connected(1)
	o.Connected(1)
	o.Connected(-1)
	if got := sample(t, "shipnotify_ws_connections", nil); got != conns+1 {
		t.Errorf("ws connections = %v, want %v", got, conns+1)
	}

	o.Pushed("notification")
	o.Pushed("notification")
	if got := sample(t, "shipnotify_frames_pushed_total", map[string]string{"event": "notification"}); got != 2 {
		t.Errorf("frames pushed = %v, want 2", got)
	}

	o.Dropped()
	if got := sample(t, "shipnotify_frames_dropped_total", nil); got != 1 {
		t.Errorf("frames dropped = %v, want 1", got)
	}

	o.Delivered("pushed")
	if got := sample(t, "shipnotify_deliveries_total", map[string]string{"result": "pushed"}); got != 1 {
		t.Errorf("deliveries = %v, want 1", got)
	}

	o.ShipmentEvent("kafka", "ok")
	o.ShipmentEvent("kafka", "invalid")
	if got := sample(t, "shipnotify_shipment_events_total", map[string]string{"source": "kafka", "result": "invalid"}); got != 1 {
		t.Errorf("shipment events = %v, want 1", got)
	}
}
