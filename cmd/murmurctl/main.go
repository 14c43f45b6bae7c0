// Command murmurctl drives one recording session from the command line,
// against the audio provider configured in providers.audio (a WAV file or
// the in-memory mock source), or a WAV file given with -wav, all played
// back through the same [audio.Source] contract. There is no live
// microphone capture.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quietloop/murmur/internal/config"
	"github.com/quietloop/murmur/internal/health"
	"github.com/quietloop/murmur/internal/observe"
	"github.com/quietloop/murmur/internal/resilience"
	"github.com/quietloop/murmur/internal/scheduler"
	"github.com/quietloop/murmur/internal/session"
	"github.com/quietloop/murmur/pkg/audio"
	audiomock "github.com/quietloop/murmur/pkg/audio/mock"
	"github.com/quietloop/murmur/pkg/audio/wavfile"
	"github.com/quietloop/murmur/pkg/decoder"
	decodermock "github.com/quietloop/murmur/pkg/decoder/mock"
	"github.com/quietloop/murmur/pkg/decoder/whispercpp"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	wavPath := flag.String("wav", "", "path to a WAV file to transcribe instead of the configured audio provider")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "murmurctl: config file %q not found — pass its path with -config\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "murmurctl: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("murmurctl starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to init telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	httpSrv := newHealthServer(cfg.Server.ListenAddr)
	go func() {
		slog.Info("serving health and metrics", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health/metrics server failed", "err", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			slog.Error("health/metrics server shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	dec, err := reg.CreateDecoder(cfg.Providers.Decoder)
	if err != nil {
		slog.Error("failed to create decoder", "name", cfg.Providers.Decoder.Name, "err", err)
		return 1
	}
	if closer, ok := dec.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	fallbackDec := resilience.NewDecoderFallback(dec, cfg.Providers.Decoder.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: 30 * time.Second},
	})
	fallbackDec.AddFallback("mock", &decodermock.Decoder{})

	var src audio.Source
	if *wavPath != "" {
		src, err = wavfile.Open(*wavPath)
		if err != nil {
			slog.Error("failed to open wav file", "path", *wavPath, "err", err)
			return 1
		}
	} else {
		src, err = reg.CreateAudio(cfg.Providers.Audio)
		if err != nil {
			slog.Error("failed to create audio source", "name", cfg.Providers.Audio.Name, "err", err)
			return 1
		}
	}

	sess := session.New(session.Config{
		Pipeline: toSchedulerConfig(cfg.Pipeline),
		Decoder:  fallbackDec,
		Source:   src,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}

	go printUpdates(sess)

	slog.Info("recording — press Ctrl+C to stop")
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("stop signal received, finalizing transcript…")
	result, err := sess.Stop(stopCtx)
	if err != nil {
		slog.Error("session stop error", "err", err)
		return 1
	}

	fmt.Println("--- final transcript ---")
	fmt.Println(result.FullTranscript)
	slog.Info("session complete",
		"decodes_issued", result.Stats.DecodesIssued,
		"silent_ticks", result.Stats.SilentTicks,
		"queued_ticks_dropped", result.Stats.QueuedTicksDropped,
	)
	return 0
}

// printUpdates drains sess.Updates() and prints the committed/speculative
// split as it evolves, overwriting the speculative tail each time.
func printUpdates(sess *session.Session) {
	for u := range sess.Updates() {
		fmt.Printf("\r%s|%s", u.Committed, u.Speculative)
	}
}

// ── Health and metrics server ─────────────────────────────────────────────

// newHealthServer builds the HTTP server exposing /healthz, /readyz, and
// /metrics (the Prometheus scrape endpoint for [observe.InitProvider]'s
// exporter bridge). listenAddr defaults to ":9090" when empty.
func newHealthServer(listenAddr string) *http.Server {
	if listenAddr == "" {
		listenAddr = ":9090"
	}

	mux := http.NewServeMux()
	health.New().Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &http.Server{
		Addr:    listenAddr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────

// registerBuiltinProviders registers the decoder and audio factories
// murmurctl ships with.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterDecoder("whispercpp", func(entry config.ProviderEntry) (decoder.Decoder, error) {
		return whispercpp.New(entry.ModelPath)
	})
	reg.RegisterDecoder("mock", func(entry config.ProviderEntry) (decoder.Decoder, error) {
		return &decodermock.Decoder{}, nil
	})

	reg.RegisterAudio("wavfile", func(entry config.ProviderEntry) (audio.Source, error) {
		return wavfile.Open(entry.Path)
	})
	reg.RegisterAudio("mock", func(entry config.ProviderEntry) (audio.Source, error) {
		return &audiomock.Source{}, nil
	})
}

// toSchedulerConfig converts the YAML-loaded pipeline config to the
// scheduler's runtime Config. Logger is filled in by the session.
func toSchedulerConfig(p config.PipelineConfig) scheduler.Config {
	return scheduler.Config{
		TickMs:              p.TickMs,
		WindowMs:            p.WindowMs,
		CommitMarginMs:      p.CommitMarginMs,
		MaxPromptChars:      p.MaxPromptChars,
		SilenceMs:           p.SilenceMs,
		NoSpeechThreshold:   p.NoSpeechThreshold,
		MinTokenProbability: p.MinTokenProbability,
		MaxSessionMinutes:   p.MaxSessionMinutes,
		SampleRate:          p.SampleRate,
	}
}

// ── Logger ────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
