package overlay

import (
	"sync"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// MaxReplay is how many feed messages a late-joining overlay receives.
const MaxReplay = 20

// replayBuffer keeps the last MaxReplay broadcast feed items in id
// order for late joiners.
type replayBuffer struct {
	mu    sync.Mutex
	items []models.FeedItem
}

func newReplayBuffer() *replayBuffer {
	return &replayBuffer{}
}

// Add appends one item, evicting from the front past capacity.
func (r *replayBuffer) Add(item models.FeedItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	if len(r.items) > MaxReplay {
		r.items = r.items[len(r.items)-MaxReplay:]
	}
}

// Snapshot returns the retained items in id order.
func (r *replayBuffer) Snapshot() []models.FeedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FeedItem, len(r.items))
	copy(out, r.items)
	return out
}
