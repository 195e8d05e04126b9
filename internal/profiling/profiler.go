// Package profiling collects in-process gauges and timers plus
// snapshots reported by the external capture processes. Aggregates are
// mirrored into Prometheus for the /metrics endpoint.
package profiling

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const sampleInterval = 10 * time.Second

// TimerStats aggregates recorded durations for one named timer.
type TimerStats struct {
	Count   int64   `json:"count"`
	TotalMs float64 `json:"totalMs"`
	LastMs  float64 `json:"lastMs"`
	MaxMs   float64 `json:"maxMs"`
}

// ProcessSample is the periodically refreshed view of this process.
type ProcessSample struct {
	RSSMb         float64 `json:"rssMb"`
	HeapMb        float64 `json:"heapMb"`
	Goroutines    int     `json:"goroutines"`
	GCCount       uint32  `json:"gcCount"`
	GCTotalMs     float64 `json:"gcTotalMs"`
	GCLastMs      float64 `json:"gcLastMs"`
	GCMaxMs       float64 `json:"gcMaxMs"`
	SampledAt     int64   `json:"sampledAt"`
	UptimeSeconds float64 `json:"uptimeS"`
}

// ExternalSnapshot is an opaque profiling report posted by a collaborator
// process (screen client, overlay). Nil until the first report arrives.
type ExternalSnapshot struct {
	ReportedAt int64          `json:"reportedAt"`
	Data       map[string]any `json:"data"`
}

// Profiler owns the gauge map, timer aggregates, and external snapshots.
type Profiler struct {
	mu        sync.RWMutex
	gauges    map[string]float64
	timers    map[string]*TimerStats
	process   *ProcessSample
	screen    *ExternalSnapshot
	overlay   *ExternalSnapshot
	startedAt time.Time
	lastGCMax float64

	promGauge *prometheus.GaugeVec
	promTimer *prometheus.HistogramVec
}

// NewProfiler creates a profiler registered against the given prometheus
// registerer. A nil registerer uses the default registry.
func NewProfiler(reg prometheus.Registerer) *Profiler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Profiler{
		gauges:    make(map[string]float64),
		timers:    make(map[string]*TimerStats),
		startedAt: time.Now(),
		promGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sinain_gauge",
				Help: "Last-write-wins named gauges",
			},
			[]string{"name"},
		),
		promTimer: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sinain_timer_duration_seconds",
				Help:    "Named timer durations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"name"},
		),
	}
}

// Gauge records a last-write-wins value under name.
func (p *Profiler) Gauge(name string, value float64) {
	p.mu.Lock()
	p.gauges[name] = value
	p.mu.Unlock()
	p.promGauge.WithLabelValues(name).Set(value)
}

// TimerRecord folds one duration into the named timer aggregate.
func (p *Profiler) TimerRecord(name string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	p.mu.Lock()
	stats, ok := p.timers[name]
	if !ok {
		stats = &TimerStats{}
		p.timers[name] = stats
	}
	stats.Count++
	stats.TotalMs += ms
	stats.LastMs = ms
	if ms > stats.MaxMs {
		stats.MaxMs = ms
	}
	p.mu.Unlock()
	p.promTimer.WithLabelValues(name).Observe(d.Seconds())
}

// TimeFunc runs fn and records its duration under name. The duration is
// recorded whether or not fn returns an error.
func (p *Profiler) TimeFunc(name string, fn func() error) error {
	start := time.Now()
	defer func() { p.TimerRecord(name, time.Since(start)) }()
	return fn()
}

// ReportScreen stores the latest screen-client profiling snapshot.
func (p *Profiler) ReportScreen(data map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screen = &ExternalSnapshot{ReportedAt: time.Now().UnixMilli(), Data: data}
}

// ReportOverlay stores the latest overlay profiling snapshot.
func (p *Profiler) ReportOverlay(data map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overlay = &ExternalSnapshot{ReportedAt: time.Now().UnixMilli(), Data: data}
}

// Snapshot is the merged profiling view exposed over /health.
type Snapshot struct {
	Gauges  map[string]float64    `json:"gauges"`
	Timers  map[string]TimerStats `json:"timers"`
	Process *ProcessSample        `json:"process"`
	Screen  *ExternalSnapshot     `json:"screen"`
	Overlay *ExternalSnapshot     `json:"overlay"`
}

// Snapshot returns a point-in-time copy of all aggregates.
func (p *Profiler) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := Snapshot{
		Gauges: make(map[string]float64, len(p.gauges)),
		Timers: make(map[string]TimerStats, len(p.timers)),
	}
	for k, v := range p.gauges {
		snap.Gauges[k] = v
	}
	for k, v := range p.timers {
		snap.Timers[k] = *v
	}
	if p.process != nil {
		c := *p.process
		snap.Process = &c
	}
	if p.screen != nil {
		c := *p.screen
		snap.Screen = &c
	}
	if p.overlay != nil {
		c := *p.overlay
		snap.Overlay = &c
	}
	return snap
}

// Run samples process memory and GC stats every 10s until ctx is done.
func (p *Profiler) Run(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	p.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sample()
		}
	}
}

func (p *Profiler) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	lastGC := float64(ms.PauseNs[(ms.NumGC+255)%256]) / 1e6
	p.mu.Lock()
	if lastGC > p.lastGCMax {
		p.lastGCMax = lastGC
	}
	p.process = &ProcessSample{
		RSSMb:         float64(ms.Sys) / (1 << 20),
		HeapMb:        float64(ms.HeapAlloc) / (1 << 20),
		Goroutines:    runtime.NumGoroutine(),
		GCCount:       ms.NumGC,
		GCTotalMs:     float64(ms.PauseTotalNs) / 1e6,
		GCLastMs:      lastGC,
		GCMaxMs:       p.lastGCMax,
		SampledAt:     time.Now().UnixMilli(),
		UptimeSeconds: time.Since(p.startedAt).Seconds(),
	}
	p.mu.Unlock()

	p.promGauge.WithLabelValues("process.heap_mb").Set(float64(ms.HeapAlloc) / (1 << 20))
	p.promGauge.WithLabelValues("process.goroutines").Set(float64(runtime.NumGoroutine()))
}
