package client

import (
	"sync"

	"shipnotify/internal/domain/shipment"
	"shipnotify/internal/realtime"
)

var _ realtime.Cache = (*QueryCache)(nil)

// QueryCache holds shipment data pushed by the gateway and tracks which
// list queries went stale and must be refetched.
type QueryCache struct {
	mu        sync.RWMutex
	shipments map[string]*shipment.Shipment
	tracking  map[string][]shipment.TrackingEvent
	stale     map[string]int
}

// NewQueryCache creates an empty cache.
func NewQueryCache() *QueryCache {
	return &QueryCache{
		shipments: make(map[string]*shipment.Shipment),
		tracking:  make(map[string][]shipment.TrackingEvent),
		stale:     make(map[string]int),
	}
}

// SetShipment stores the latest state of a shipment.
func (c *QueryCache) SetShipment(s *shipment.Shipment) {
	cp := *s
	c.mu.Lock()
	c.shipments[s.TrackingNumber] = &cp
	c.mu.Unlock()
}

// Shipment returns the cached shipment.
func (c *QueryCache) Shipment(trackingNumber string) (*shipment.Shipment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shipments[trackingNumber]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// SetTrackingHistory replaces a shipment's tracking history.
func (c *QueryCache) SetTrackingHistory(u *shipment.TrackingUpdate) {
	history := make([]shipment.TrackingEvent, len(u.History))
	copy(history, u.History)
	c.mu.Lock()
	c.tracking[u.TrackingNumber] = history
	c.mu.Unlock()
}

// TrackingHistory returns the cached tracking history.
func (c *QueryCache) TrackingHistory(trackingNumber string) ([]shipment.TrackingEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.tracking[trackingNumber]
	if !ok {
		return nil, false
	}
	out := make([]shipment.TrackingEvent, len(h))
	copy(out, h)
	return out, true
}

// Invalidate marks list queries stale.
func (c *QueryCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.stale[k]++
	}
}

// Stale reports whether key was invalidated since the last Refreshed call.
func (c *QueryCache) Stale(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale[key] > 0
}

// Refreshed clears the stale mark of key after a refetch.
func (c *QueryCache) Refreshed(key string) {
	c.mu.Lock()
	delete(c.stale, key)
	c.mu.Unlock()
}
