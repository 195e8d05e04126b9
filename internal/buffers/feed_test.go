package buffers

import (
	"fmt"
	"testing"

	"github.com/Geravant/sinain-hud/pkg/models"
)

func pushN(t *testing.T, b *FeedBuffer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := b.Push(models.FeedItem{Text: fmt.Sprintf("item %d", i+1)}); err != nil {
			t.Fatalf("push %d: %v", i+1, err)
		}
	}
}

func TestFeedBuffer_MonotonicIDs(t *testing.T) {
	b := NewFeedBuffer(10)
	pushN(t, b, 5)

	items := b.Query(0)
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for i, it := range items {
		if it.ID != uint64(i+1) {
			t.Errorf("item %d has id %d, want %d", i, it.ID, i+1)
		}
	}
}

func TestFeedBuffer_CapacityEviction(t *testing.T) {
	b := NewFeedBuffer(10)
	pushN(t, b, 25)

	if b.Size() != 10 {
		t.Fatalf("size = %d, want 10", b.Size())
	}
	items := b.Query(0)
	if items[0].ID != 16 {
		t.Errorf("oldest retained id = %d, want 16", items[0].ID)
	}
	if items[len(items)-1].ID != 25 {
		t.Errorf("newest id = %d, want 25", items[len(items)-1].ID)
	}
}

func TestFeedBuffer_QueryAfter(t *testing.T) {
	b := NewFeedBuffer(10)
	pushN(t, b, 8)

	items := b.Query(5)
	if len(items) != 3 {
		t.Fatalf("expected 3 items after id 5, got %d", len(items))
	}
	for i, it := range items {
		if it.ID != uint64(6+i) {
			t.Errorf("item %d id = %d, want %d", i, it.ID, 6+i)
		}
	}
}

func TestFeedBuffer_VersionBumps(t *testing.T) {
	b := NewFeedBuffer(3)
	pushN(t, b, 7)
	if b.Version() != 7 {
		t.Errorf("version = %d, want 7", b.Version())
	}
}

func TestFeedBuffer_OverlayQuerySkipsPeriodic(t *testing.T) {
	b := NewFeedBuffer(10)
	b.Push(models.FeedItem{Text: "visible"})
	b.Push(models.FeedItem{Text: "[PERIODIC] housekeeping"})
	b.Push(models.FeedItem{Text: "also visible"})

	overlay := b.QueryForOverlay(0)
	if len(overlay) != 2 {
		t.Fatalf("overlay query returned %d items, want 2", len(overlay))
	}
	all := b.Query(0)
	if len(all) != 3 {
		t.Fatalf("full query returned %d items, want 3", len(all))
	}
}

func TestFeedBuffer_QueryBySource(t *testing.T) {
	b := NewFeedBuffer(10)
	b.Push(models.FeedItem{Text: "a", Source: models.SourceAudio, TS: 100})
	b.Push(models.FeedItem{Text: "b", Source: models.SourceSystem, TS: 200})
	b.Push(models.FeedItem{Text: "c", Source: models.SourceAudio, TS: 300})

	audio := b.QueryBySource(models.SourceAudio, 0)
	if len(audio) != 2 {
		t.Fatalf("expected 2 audio items, got %d", len(audio))
	}
	recent := b.QueryBySource(models.SourceAudio, 200)
	if len(recent) != 1 || recent[0].Text != "c" {
		t.Errorf("expected only the recent audio item, got %+v", recent)
	}
}

func TestFeedBuffer_BadInput(t *testing.T) {
	b := NewFeedBuffer(10)
	if _, err := b.Push(models.FeedItem{}); err != ErrBadInput {
		t.Errorf("expected ErrBadInput, got %v", err)
	}
	if b.Size() != 0 || b.Version() != 0 {
		t.Errorf("bad push mutated buffer state")
	}
}

func TestFeedBuffer_Defaults(t *testing.T) {
	b := NewFeedBuffer(10)
	item, err := b.Push(models.FeedItem{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if item.Source != models.SourceSystem || item.Channel != models.ChannelStream || item.Priority != models.PriorityNormal {
		t.Errorf("defaults not applied: %+v", item)
	}
	if item.TS == 0 {
		t.Error("timestamp not stamped")
	}
}
