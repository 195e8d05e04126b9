package buffers

import (
	"sync"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// DefaultSenseCapacity bounds the sense buffer unless overridden.
const DefaultSenseCapacity = 30

// UnknownApp is reported when no sense event has named an application.
const UnknownApp = "unknown"

// SenseBuffer is the bounded store of screen-capture observations.
type SenseBuffer struct {
	mu      sync.RWMutex
	items   []models.SenseEvent
	nextID  uint64
	version uint64
	cap     int
}

// NewSenseBuffer creates a sense buffer with the given capacity. A
// non-positive capacity falls back to DefaultSenseCapacity.
func NewSenseBuffer(capacity int) *SenseBuffer {
	if capacity <= 0 {
		capacity = DefaultSenseCapacity
	}
	return &SenseBuffer{nextID: 1, cap: capacity}
}

// Push assigns the next id, stamps ReceivedAt with the local clock, and
// appends the event. Producer timestamps in the future are accepted
// as-is. Fails with ErrBadInput when type or producer ts is missing.
func (b *SenseBuffer) Push(ev models.SenseEvent) (models.SenseEvent, error) {
	if ev.Type == "" || ev.TS == 0 {
		return models.SenseEvent{}, ErrBadInput
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ev.ID = b.nextID
	b.nextID++
	ev.ReceivedAt = time.Now().UnixMilli()
	b.items = append(b.items, ev)
	if len(b.items) > b.cap {
		b.items = b.items[len(b.items)-b.cap:]
	}
	b.version++
	return ev, nil
}

// Query returns events with id > afterID in id order. When metaOnly is
// set, the binary roi.data and diff.data bytes are stripped from the
// copies; payload dimensions stay intact.
func (b *SenseBuffer) Query(afterID uint64, metaOnly bool) []models.SenseEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.SenseEvent, 0, len(b.items))
	for _, ev := range b.items {
		if ev.ID <= afterID {
			continue
		}
		if metaOnly {
			ev.ROI = stripData(ev.ROI)
			ev.Diff = stripData(ev.Diff)
		}
		out = append(out, ev)
	}
	return out
}

// stripData copies the payload without its binary data so the stored
// entry keeps its bytes.
func stripData(p *models.ImagePayload) *models.ImagePayload {
	if p == nil {
		return nil
	}
	c := *p
	c.Data = nil
	return &c
}

// QueryByTime returns events with producer ts >= sinceMs in id order.
func (b *SenseBuffer) QueryByTime(sinceMs int64) []models.SenseEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.SenseEvent, 0, len(b.items))
	for _, ev := range b.items {
		if ev.TS >= sinceMs {
			out = append(out, ev)
		}
	}
	return out
}

// LatestApp returns the meta.app of the newest event that names one, or
// UnknownApp when no retained event names an application.
func (b *SenseBuffer) LatestApp() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := len(b.items) - 1; i >= 0; i-- {
		if app := b.items[i].Meta.App; app != "" {
			return app
		}
	}
	return UnknownApp
}

// AppHistory returns the chain of adjacent-distinct meta.app values with
// producer ts >= since, oldest first. Non-adjacent repeats are kept.
func (b *SenseBuffer) AppHistory(since int64) []models.AppTransition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []models.AppTransition
	last := ""
	for _, ev := range b.items {
		if ev.TS < since || ev.Meta.App == "" {
			continue
		}
		if ev.Meta.App == last {
			continue
		}
		out = append(out, models.AppTransition{App: ev.Meta.App, TS: ev.TS})
		last = ev.Meta.App
	}
	return out
}

// Latest returns the newest event, if any.
func (b *SenseBuffer) Latest() (models.SenseEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.items) == 0 {
		return models.SenseEvent{}, false
	}
	return b.items[len(b.items)-1], true
}

// Size returns the current event count.
func (b *SenseBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Version returns the monotonic write counter.
func (b *SenseBuffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}
