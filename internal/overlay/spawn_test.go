package overlay

import (
	"testing"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestSpawnBuffer_UpsertKeepsStartedAt(t *testing.T) {
	s := newSpawnBuffer()
	s.now = fixedClock(1000)
	s.Upsert(models.SpawnTask{TaskID: "t1", Label: "research", Status: models.SpawnSpawned})

	s.now = fixedClock(5000)
	got := s.Upsert(models.SpawnTask{TaskID: "t1", Label: "research", Status: models.SpawnPolling, StartedAt: 9999})
	if got.StartedAt != 1000 {
		t.Errorf("startedAt = %d, want immutable 1000", got.StartedAt)
	}
}

func TestSpawnBuffer_CompletedAtSetOnce(t *testing.T) {
	s := newSpawnBuffer()
	s.now = fixedClock(1000)
	s.Upsert(models.SpawnTask{TaskID: "t1", Status: models.SpawnSpawned})

	s.now = fixedClock(2000)
	first := s.Upsert(models.SpawnTask{TaskID: "t1", Status: models.SpawnCompleted})
	if first.CompletedAt != 2000 {
		t.Fatalf("completedAt = %d, want 2000", first.CompletedAt)
	}

	s.now = fixedClock(9000)
	again := s.Upsert(models.SpawnTask{TaskID: "t1", Status: models.SpawnCompleted})
	if again.CompletedAt != 2000 {
		t.Errorf("completedAt moved to %d on repeat terminal update", again.CompletedAt)
	}
}

func TestSpawnBuffer_TTLEviction(t *testing.T) {
	s := newSpawnBuffer()
	s.now = fixedClock(0)
	s.Upsert(models.SpawnTask{TaskID: "old", Status: models.SpawnCompleted})
	s.Upsert(models.SpawnTask{TaskID: "live", Status: models.SpawnPolling})

	// Just inside the TTL: both retained.
	s.now = fixedClock(SpawnTaskTTL.Milliseconds() - 1)
	s.Prune()
	if len(s.Snapshot()) != 2 {
		t.Fatalf("premature eviction: %+v", s.Snapshot())
	}

	// Past the TTL: only the non-terminal task survives.
	s.now = fixedClock(SpawnTaskTTL.Milliseconds() + 1000)
	s.Prune()
	tasks := s.Snapshot()
	if len(tasks) != 1 || tasks[0].TaskID != "live" {
		t.Errorf("tasks after prune = %+v, want only live", tasks)
	}
}

func TestSpawnBuffer_InsertionOrder(t *testing.T) {
	s := newSpawnBuffer()
	s.now = fixedClock(100)
	for _, id := range []string{"a", "b", "c"} {
		s.Upsert(models.SpawnTask{TaskID: id, Status: models.SpawnSpawned})
	}
	s.Upsert(models.SpawnTask{TaskID: "a", Status: models.SpawnPolling})

	tasks := s.Snapshot()
	want := []string{"a", "b", "c"}
	for i, task := range tasks {
		if task.TaskID != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, task.TaskID, want[i])
		}
	}
}
