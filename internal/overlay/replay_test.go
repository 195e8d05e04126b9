package overlay

import (
	"testing"

	"github.com/Geravant/sinain-hud/pkg/models"
)

func TestReplayBuffer_CapAndOrder(t *testing.T) {
	r := newReplayBuffer()
	for i := 1; i <= 25; i++ {
		r.Add(models.FeedItem{ID: uint64(i), Text: "x"})
	}
	items := r.Snapshot()
	if len(items) != MaxReplay {
		t.Fatalf("retained %d items, want %d", len(items), MaxReplay)
	}
	if items[0].ID != 6 || items[len(items)-1].ID != 25 {
		t.Errorf("ids %d..%d, want 6..25", items[0].ID, items[len(items)-1].ID)
	}
	for i := 1; i < len(items); i++ {
		if items[i].ID <= items[i-1].ID {
			t.Fatal("replay not in id order")
		}
	}
}

func TestReplayBuffer_SnapshotIsCopy(t *testing.T) {
	r := newReplayBuffer()
	r.Add(models.FeedItem{ID: 1, Text: "x"})
	snap := r.Snapshot()
	snap[0].Text = "mutated"
	if r.Snapshot()[0].Text != "x" {
		t.Error("snapshot aliases internal storage")
	}
}
