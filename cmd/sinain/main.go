// Command sinain runs the activity-awareness hub: it ingests sense and
// transcript events, runs the analyzer tick loop, escalates to the
// assistant gateway when warranted, and fans feed updates out to
// connected HUD overlays.
//
// Usage:
//
//	sinain --config sinain.yaml
//
// The config path can also be supplied via SINAIN_CONFIG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Geravant/sinain-hud/internal/analyzer"
	"github.com/Geravant/sinain-hud/internal/buffers"
	"github.com/Geravant/sinain-hud/internal/capture"
	"github.com/Geravant/sinain-hud/internal/config"
	"github.com/Geravant/sinain-hud/internal/escalation"
	"github.com/Geravant/sinain-hud/internal/gateway"
	"github.com/Geravant/sinain-hud/internal/httpapi"
	"github.com/Geravant/sinain-hud/internal/observability"
	"github.com/Geravant/sinain-hud/internal/overlay"
	"github.com/Geravant/sinain-hud/internal/profiling"
	"github.com/Geravant/sinain-hud/internal/situation"
	"github.com/Geravant/sinain-hud/internal/tracing"
	"github.com/Geravant/sinain-hud/pkg/models"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sinain:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("SINAIN_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := buffers.NewFeedBuffer(buffers.DefaultFeedCapacity)
	sense := buffers.NewSenseBuffer(buffers.DefaultSenseCapacity)
	profiler := profiling.NewProfiler(nil)

	var journal *tracing.Journal
	if cfg.Trace.Enabled {
		journal = tracing.NewJournal(cfg.Trace.Dir, logger)
		defer journal.Close()
	}
	tracer := tracing.NewTracer(journal)

	var rpc *gateway.Client
	if cfg.OpenClaw.GatewayWSURL != "" {
		rpc = gateway.NewClient(gateway.Config{
			URL:   cfg.OpenClaw.GatewayWSURL,
			Token: cfg.OpenClaw.GatewayToken,
		}, logger)
	}
	hook := gateway.NewHookClient(cfg.OpenClaw.HookURL, cfg.OpenClaw.HookToken, logger)

	// The overlay server and orchestrator reference each other through
	// narrow callbacks; the publish closure resolves after both exist.
	var ovl *overlay.Server
	publish := func(item models.FeedItem) {
		if ovl != nil {
			ovl.BroadcastFeed(item)
		}
	}

	orch := escalation.NewOrchestrator(escalation.Options{
		Mode:       cfg.Escalation.Mode,
		CooldownMs: int64(cfg.Escalation.CooldownMs),
		RPC:        rpc,
		Hook:       hook,
		SessionKey: cfg.OpenClaw.SessionKey,
		Feed:       feed,
		Publish:    publish,
		Logger:     logger,
	})

	ctrl := capture.NewController(capture.Options{
		Feed:    feed,
		Publish: publish,
		Logger:  logger,
	})

	gwState := func() string {
		if rpc == nil {
			return "disconnected"
		}
		return rpc.State().String()
	}
	ovl = overlay.NewServer(overlay.Options{
		Capture:      ctrl,
		Sender:       orch,
		Sink:         profiler,
		GatewayState: gwState,
		Logger:       logger,
	})

	if rpc != nil {
		rpc.OnInbound(func(text string) {
			item, err := feed.Push(models.FeedItem{
				Source:   models.SourceAssistant,
				Channel:  models.ChannelAgent,
				Priority: models.PriorityHigh,
				Text:     text,
			})
			if err == nil {
				ovl.BroadcastFeed(item)
			}
		})
		rpc.OnStateChange(func(gateway.State) {
			ovl.BroadcastStatus()
		})
	}

	var engine *analyzer.Engine
	agentEnabled := cfg.Agent.Enabled
	if agentEnabled && cfg.Agent.APIKey == "" {
		logger.Warn("agent enabled but no API key configured, analyzer disabled")
		agentEnabled = false
	}
	if agentEnabled {
		var sitWriter *situation.Writer
		if cfg.Situation.Enabled {
			sitWriter = situation.NewWriter(cfg.Situation.Path)
		}
		engine = analyzer.NewEngine(analyzer.Options{
			Config:          cfg.Agent,
			Chat:            analyzer.NewChatClient(cfg.Agent.APIKey, cfg.Agent.APIBase),
			Feed:            feed,
			Sense:           sense,
			Tracer:          tracer,
			Situation:       sitWriter,
			Escalator:       orch,
			Profiler:        profiler,
			Publish:         publish,
			BroadcastStatus: ovl.BroadcastStatus,
			Logger:          logger,
		})
	}

	var notifier httpapi.Notifier
	if engine != nil {
		notifier = engine
	}
	api := httpapi.NewServer(httpapi.Options{
		Feed:     feed,
		Sense:    sense,
		Tracer:   tracer,
		Profiler: profiler,
		Overlay:  ovl,
		Engine:   notifier,
		Modes:    orch,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go profiler.Run(ctx)
	go ovl.Run(ctx)
	if engine != nil {
		go engine.Run(ctx)
	}
	if rpc != nil && cfg.Escalation.Mode != "off" {
		rpc.Start()
	}

	ln, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", httpSrv.Addr, err)
	}
	logger.Info("sinain listening", "addr", httpSrv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	ovl.Shutdown()
	if rpc != nil {
		rpc.Stop()
	}
	return nil
}
