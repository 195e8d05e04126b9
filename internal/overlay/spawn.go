package overlay

import (
	"sync"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// SpawnTaskTTL is how long a terminal spawn task remains replayable
// after completion.
const SpawnTaskTTL = 120 * time.Second

// spawnBuffer tracks spawn-task lifecycle updates keyed by taskId, in
// insertion order, evicting terminal tasks past the TTL.
type spawnBuffer struct {
	mu    sync.Mutex
	order []string
	tasks map[string]models.SpawnTask
	now   func() time.Time
}

func newSpawnBuffer() *spawnBuffer {
	return &spawnBuffer{
		tasks: make(map[string]models.SpawnTask),
		now:   time.Now,
	}
}

// Upsert inserts or updates a task. StartedAt is immutable once set and
// CompletedAt is stamped exactly once, on the first terminal transition.
func (s *spawnBuffer) Upsert(task models.SpawnTask) models.SpawnTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[task.TaskID]
	if !ok {
		if task.StartedAt == 0 {
			task.StartedAt = s.now().UnixMilli()
		}
		s.order = append(s.order, task.TaskID)
	} else {
		task.StartedAt = existing.StartedAt
		if existing.CompletedAt != 0 {
			task.CompletedAt = existing.CompletedAt
		}
	}
	if task.IsTerminal() && task.CompletedAt == 0 {
		task.CompletedAt = s.now().UnixMilli()
	}
	s.tasks[task.TaskID] = task
	return task
}

// Prune drops terminal tasks whose completedAt is older than the TTL.
func (s *spawnBuffer) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().UnixMilli() - SpawnTaskTTL.Milliseconds()
	kept := s.order[:0]
	for _, id := range s.order {
		task := s.tasks[id]
		if task.IsTerminal() && task.CompletedAt < cutoff {
			delete(s.tasks, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Snapshot returns the retained tasks in insertion order.
func (s *spawnBuffer) Snapshot() []models.SpawnTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SpawnTask, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}
