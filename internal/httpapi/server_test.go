package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/internal/escalation"
	"github.com/Geravant/sinain-hud/internal/profiling"
	"github.com/Geravant/sinain-hud/internal/tracing"
	"github.com/Geravant/sinain-hud/pkg/models"
)

type countingNotifier struct{ count int }

func (n *countingNotifier) Notify() { n.count++ }

func newTestAPI(t *testing.T) (*httptest.Server, *Server, *countingNotifier, *escalation.Orchestrator) {
	t.Helper()
	notifier := &countingNotifier{}
	feed := buffers.NewFeedBuffer(100)
	orch := escalation.NewOrchestrator(escalation.Options{Mode: "off", Feed: feed})
	s := NewServer(Options{
		Feed:     feed,
		Sense:    buffers.NewSenseBuffer(30),
		Tracer:   tracing.NewTracer(nil),
		Profiler: profiling.NewProfiler(prometheus.NewRegistry()),
		Engine:   notifier,
		Modes:    orch,
	})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts, s, notifier, orch
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestSensePostAndGet(t *testing.T) {
	ts, _, notifier, _ := newTestAPI(t)

	resp, body := postJSON(t, ts.URL+"/sense", map[string]any{
		"type": "text", "ts": 1234, "ocr": "hello",
		"meta": map[string]any{"app": "Code", "screen": "main", "ssim": 0.8},
	})
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if body["id"].(float64) != 1 {
		t.Errorf("id = %v, want 1", body["id"])
	}
	if notifier.count != 1 {
		t.Errorf("engine notified %d times, want 1", notifier.count)
	}

	_, got := getJSON(t, ts.URL+"/sense?after=0")
	events := got["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
}

func TestSensePost_MissingFields(t *testing.T) {
	ts, _, _, _ := newTestAPI(t)
	resp, _ := postJSON(t, ts.URL+"/sense", map[string]any{"ocr": "no type or ts"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSensePost_OversizeBody(t *testing.T) {
	ts, _, _, _ := newTestAPI(t)
	big := bytes.Repeat([]byte("a"), maxSenseBody+1024)
	payload := fmt.Sprintf(`{"type":"text","ts":1,"ocr":%q}`, big)
	resp, err := http.Post(ts.URL+"/sense", "application/json", bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestFeedPostAndGet(t *testing.T) {
	ts, _, _, _ := newTestAPI(t)

	postJSON(t, ts.URL+"/feed", models.FeedItem{Text: "injected", Source: models.SourceSystem})
	postJSON(t, ts.URL+"/feed", models.FeedItem{Text: "[PERIODIC] hidden", Source: models.SourceSystem})

	_, got := getJSON(t, ts.URL+"/feed?after=0")
	items := got["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("overlay-visible items = %d, want 1", len(items))
	}
}

func TestAgentConfig_ModeSwap(t *testing.T) {
	ts, _, _, orch := newTestAPI(t)

	resp, _ := postJSON(t, ts.URL+"/agent/config", map[string]any{"mode": "selective"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if orch.Mode() != "selective" {
		t.Errorf("mode = %q, want selective", orch.Mode())
	}

	resp, _ = postJSON(t, ts.URL+"/agent/config", map[string]any{"mode": "bogus"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus mode status = %d, want 400", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, _, _, _ := newTestAPI(t)
	resp, body := getJSON(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("health = %v", body)
	}
	if _, ok := body["profiling"]; !ok {
		t.Error("health missing profiling snapshot")
	}
	if body["escalationMode"] != "off" {
		t.Errorf("escalationMode = %v", body["escalationMode"])
	}
}

func TestTraces(t *testing.T) {
	ts, s, _, _ := newTestAPI(t)
	for i := uint64(1); i <= 3; i++ {
		s.tracer.StartTick(i).Finish(models.TraceMetrics{})
	}
	_, body := getJSON(t, ts.URL+"/traces?after=1&limit=10")
	traces := body["traces"].([]any)
	if len(traces) != 2 {
		t.Errorf("traces = %d, want 2", len(traces))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _, _ := newTestAPI(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}
