// Package buffers holds the bounded in-memory stores that mediate
// between the ingress paths and the analyzer, escalator, and overlay.
//
// Both buffers assign strictly increasing ids starting at 1, prune from
// the oldest end only, and bump a version counter on every push. Readers
// always receive value copies; entries are owned by the buffer.
package buffers

import (
	"strings"
	"sync"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// DefaultFeedCapacity bounds the feed buffer unless overridden.
const DefaultFeedCapacity = 100

// PeriodicPrefix marks feed items that are hidden from overlay-directed
// queries but still visible to the analyzer.
const PeriodicPrefix = "[PERIODIC]"

// FeedBuffer is the bounded store of feed items.
type FeedBuffer struct {
	mu      sync.RWMutex
	items   []models.FeedItem
	nextID  uint64
	version uint64
	cap     int
}

// NewFeedBuffer creates a feed buffer with the given capacity. A
// non-positive capacity falls back to DefaultFeedCapacity.
func NewFeedBuffer(capacity int) *FeedBuffer {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &FeedBuffer{nextID: 1, cap: capacity}
}

// Push assigns the next id, stamps the timestamp if unset, and appends
// the item, truncating from the head when over capacity. Returns the
// stored item. Fails with ErrBadInput when the item carries no text and
// no source.
func (b *FeedBuffer) Push(item models.FeedItem) (models.FeedItem, error) {
	if item.Text == "" && item.Source == "" {
		return models.FeedItem{}, ErrBadInput
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	item.ID = b.nextID
	b.nextID++
	if item.TS == 0 {
		item.TS = time.Now().UnixMilli()
	}
	if item.Source == "" {
		item.Source = models.SourceSystem
	}
	if item.Channel == "" {
		item.Channel = models.ChannelStream
	}
	if item.Priority == "" {
		item.Priority = models.PriorityNormal
	}
	b.items = append(b.items, item)
	if len(b.items) > b.cap {
		b.items = b.items[len(b.items)-b.cap:]
	}
	b.version++
	return item, nil
}

// Query returns items with id > afterID in id order.
func (b *FeedBuffer) Query(afterID uint64) []models.FeedItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.collect(afterID, false)
}

// QueryForOverlay returns items with id > afterID, skipping periodic
// housekeeping lines the overlay should not render.
func (b *FeedBuffer) QueryForOverlay(afterID uint64) []models.FeedItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.collect(afterID, true)
}

func (b *FeedBuffer) collect(afterID uint64, skipPeriodic bool) []models.FeedItem {
	out := make([]models.FeedItem, 0, len(b.items))
	for _, it := range b.items {
		if it.ID <= afterID {
			continue
		}
		if skipPeriodic && strings.HasPrefix(it.Text, PeriodicPrefix) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// QueryByTime returns items with ts >= sinceMs in id order.
func (b *FeedBuffer) QueryByTime(sinceMs int64) []models.FeedItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.FeedItem, 0, len(b.items))
	for _, it := range b.items {
		if it.TS >= sinceMs {
			out = append(out, it)
		}
	}
	return out
}

// QueryBySource returns items from one source with ts >= sinceMs.
func (b *FeedBuffer) QueryBySource(source models.FeedSource, sinceMs int64) []models.FeedItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.FeedItem, 0, len(b.items))
	for _, it := range b.items {
		if it.Source == source && it.TS >= sinceMs {
			out = append(out, it)
		}
	}
	return out
}

// Latest returns the newest item, if any.
func (b *FeedBuffer) Latest() (models.FeedItem, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.items) == 0 {
		return models.FeedItem{}, false
	}
	return b.items[len(b.items)-1], true
}

// Size returns the current item count.
func (b *FeedBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Version returns the monotonic write counter.
func (b *FeedBuffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}
