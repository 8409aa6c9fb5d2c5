// Command voxgate is the OpenAI-compatible inference gateway. It fronts the
// configured LLM, TTS and STT model servers and fuses their streams into the
// chat, speech and realtime endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/ffmpeg"
	"github.com/voxgate/voxgate/internal/health"
	"github.com/voxgate/voxgate/internal/model"
	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/internal/server"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/llm/llamacpp"
	"github.com/voxgate/voxgate/pkg/provider/stt"
	"github.com/voxgate/voxgate/pkg/provider/stt/parakeet"
	"github.com/voxgate/voxgate/pkg/provider/tts"
	"github.com/voxgate/voxgate/pkg/provider/tts/kokoro"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxgate: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxgate: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("voxgate starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"models", len(cfg.Models),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxgate"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Model registry ────────────────────────────────────────────────────────
	registry, err := model.NewRegistry(cfg.Endpoints())
	if err != nil {
		slog.Error("invalid model configuration", "err", err)
		return 1
	}

	// ── Upstream providers ────────────────────────────────────────────────────
	providers, targets, closers, err := buildProviders(registry)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("provider close error", "err", err)
			}
		}
	}()

	// ── Audio transcoder ──────────────────────────────────────────────────────
	var codec server.Transcoder
	if c, err := ffmpeg.New(); err != nil {
		slog.Warn("ffmpeg not available; mp3/ogg output, transcriptions and realtime are disabled", "err", err)
	} else {
		codec = c
	}

	// ── Health worker ─────────────────────────────────────────────────────────
	worker := health.NewWorker(targets, health.WithMetrics(metrics))
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("health worker stopped", "err", err)
		}
	}()

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Registry:  registry,
		Providers: providers,
		Codec:     codec,
		Metrics:   metrics,
		Health:    health.NewHandler(health.ModelsChecker(registry)),
	})
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	printStartupSummary(cfg, registry)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx, cfg.Server.ListenAddr); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates one provider per registered model, plus the
// health probe targets and the close functions for the gRPC connections. All
// HTTP upstreams share one pooled client.
func buildProviders(registry *model.Registry) (server.Providers, []health.Target, []func() error, error) {
	providers := server.Providers{
		LLM: make(map[string]llm.Provider),
		TTS: make(map[string]tts.Provider),
		STT: make(map[string]stt.Provider),
	}
	var targets []health.Target
	var closers []func() error

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxConnsPerHost:     100,
			MaxIdleConnsPerHost: 100,
		},
	}

	for _, m := range registry.Models() {
		name := m.Record.ResolveName
		switch m.Record.Kind {
		case model.KindLLM:
			p, err := llamacpp.New(m.BaseURL(), m.Record.Model,
				llamacpp.WithHTTPClient(httpClient),
				llamacpp.WithHealthPath(m.Record.HealthPath),
			)
			if err != nil {
				return providers, nil, closers, fmt.Errorf("llm provider %s: %w", name, err)
			}
			providers.LLM[name] = p
			targets = append(targets, health.Target{Model: m, Probe: health.LLMProbe{Pinger: p, Chatter: p}})

		case model.KindTTS:
			c, err := kokoro.New(m.GRPCAddr())
			if err != nil {
				return providers, nil, closers, fmt.Errorf("tts provider %s: %w", name, err)
			}
			providers.TTS[name] = c
			closers = append(closers, c.Close)
			targets = append(targets, health.Target{Model: m, Probe: health.GRPCProbe{Pinger: c}})

		case model.KindSTT:
			c, err := parakeet.New(m.GRPCAddr(), m.Record.Model)
			if err != nil {
				return providers, nil, closers, fmt.Errorf("stt provider %s: %w", name, err)
			}
			providers.STT[name] = c
			closers = append(closers, c.Close)
			targets = append(targets, health.Target{Model: m, Probe: health.GRPCProbe{Pinger: c}})

		default:
			return providers, nil, closers, fmt.Errorf("model %s has unknown kind %q", name, m.Record.Kind)
		}
		slog.Info("provider created", "kind", m.Record.Kind, "model", name, "upstream", m.GRPCAddr())
	}

	return providers, targets, closers, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, registry *model.Registry) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Voxgate — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	for _, m := range registry.Models() {
		value := fmt.Sprintf("%s:%d", m.Host, m.Port)
		if len(value) > 19 {
			value = value[:16] + "…"
		}
		fmt.Printf("║  %-12s    : %-19s ║\n", m.Record.ResolveName, value)
	}
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
