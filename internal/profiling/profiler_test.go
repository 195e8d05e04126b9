package profiling

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestProfiler() *Profiler {
	return NewProfiler(prometheus.NewRegistry())
}

func TestGauge_LastWriteWins(t *testing.T) {
	p := newTestProfiler()
	p.Gauge("queue.depth", 5)
	p.Gauge("queue.depth", 2)

	snap := p.Snapshot()
	if snap.Gauges["queue.depth"] != 2 {
		t.Errorf("gauge = %f, want 2", snap.Gauges["queue.depth"])
	}
}

func TestTimerRecord_Aggregates(t *testing.T) {
	p := newTestProfiler()
	p.TimerRecord("tick", 10*time.Millisecond)
	p.TimerRecord("tick", 30*time.Millisecond)
	p.TimerRecord("tick", 20*time.Millisecond)

	stats := p.Snapshot().Timers["tick"]
	if stats.Count != 3 {
		t.Errorf("count = %d, want 3", stats.Count)
	}
	if stats.TotalMs != 60 {
		t.Errorf("totalMs = %f, want 60", stats.TotalMs)
	}
	if stats.LastMs != 20 {
		t.Errorf("lastMs = %f, want 20", stats.LastMs)
	}
	if stats.MaxMs != 30 {
		t.Errorf("maxMs = %f, want 30", stats.MaxMs)
	}
}

func TestTimeFunc_RecordsOnError(t *testing.T) {
	p := newTestProfiler()
	wantErr := errors.New("boom")
	err := p.TimeFunc("op", func() error { return wantErr })
	if err != wantErr {
		t.Errorf("error = %v", err)
	}
	if p.Snapshot().Timers["op"].Count != 1 {
		t.Error("failed op not timed")
	}
}

func TestExternalSnapshots_NilUntilReported(t *testing.T) {
	p := newTestProfiler()
	snap := p.Snapshot()
	if snap.Screen != nil || snap.Overlay != nil {
		t.Error("external snapshots should be nil before first report")
	}

	p.ReportScreen(map[string]any{"fps": 2.0})
	p.ReportOverlay(map[string]any{"rssMb": 80.0})
	snap = p.Snapshot()
	if snap.Screen == nil || snap.Screen.Data["fps"] != 2.0 {
		t.Errorf("screen snapshot = %+v", snap.Screen)
	}
	if snap.Overlay == nil || snap.Overlay.ReportedAt == 0 {
		t.Errorf("overlay snapshot = %+v", snap.Overlay)
	}
}

func TestSample_PopulatesProcess(t *testing.T) {
	p := newTestProfiler()
	p.sample()
	snap := p.Snapshot()
	if snap.Process == nil {
		t.Fatal("process sample missing")
	}
	if snap.Process.Goroutines <= 0 || snap.Process.HeapMb <= 0 {
		t.Errorf("process sample = %+v", snap.Process)
	}
}
