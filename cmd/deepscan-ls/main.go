package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/adapter/debugserver"
	"github.com/Strob0t/deepscan-ls/internal/adapter/deepscan"
	"github.com/Strob0t/deepscan-ls/internal/adapter/lsp"
	cfotel "github.com/Strob0t/deepscan-ls/internal/adapter/otel"
	"github.com/Strob0t/deepscan-ls/internal/adapter/ristretto"
	"github.com/Strob0t/deepscan-ls/internal/adapter/ws"
	"github.com/Strob0t/deepscan-ls/internal/config"
	"github.com/Strob0t/deepscan-ls/internal/lifecycle"
	"github.com/Strob0t/deepscan-ls/internal/logger"
	"github.com/Strob0t/deepscan-ls/internal/pool"
	"github.com/Strob0t/deepscan-ls/internal/port/broadcast"
	"github.com/Strob0t/deepscan-ls/internal/resilience"
	"github.com/Strob0t/deepscan-ls/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(runToken(os.Args[2:]))
	}

	sup := lifecycle.New(lifecycle.DefaultGrace)
	sup.Exit(run(sup))
}

// run serves the editor over stdio and returns the process exit code.
func run(sup *lifecycle.Supervisor) int {
	defer sup.Recover()

	flags, err := config.ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepscan-ls: %v\n", err)
		return 1
	}

	base, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()

	// Stdout carries the protocol; nothing else may write to it.
	conn := lsp.NewJSONRPCConn(os.Stdin, os.Stdout, os.Stdin)
	notifier := lsp.NewNotifier(conn)
	sup.Register("notify-client", func(ctx context.Context, code int, stack string) {
		if err := notifier.ExitCalled(ctx, code, stack); err != nil {
			slog.Debug("exit notification failed", "error", err)
		}
	})
	slog.SetDefault(slog.New(logger.NewClientHandler(base.Handler(), notifier, slog.LevelWarn)))

	slog.Info("config loaded",
		"path", cfgPath,
		"server", cfg.DeepScan.Server,
		"log_level", cfg.Logging.Level,
		"max_concurrent", cfg.Inspection.MaxConcurrent,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOtel, err := cfotel.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		slog.Error("metrics setup failed", "error", err)
		return 1
	}

	// --- Remote service ---

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breaker.OnStateChange(func(from, to resilience.State) {
		slog.Info("deepscan circuit breaker", "from", from.String(), "to", to.String())
	})
	client := deepscan.NewClient(cfg.Inspection.Timeout)
	client.SetBreaker(breaker)

	tokenCache, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		slog.Error("cache setup failed", "error", err)
		return 1
	}
	defer tokenCache.Close()

	// --- Services ---

	var (
		statuses *service.StatusBroadcaster
		hub      *ws.Hub
		mirror   broadcast.Broadcaster
	)
	if cfg.Debug.Addr != "" {
		hub = ws.NewHub(func() any { return statuses.Snapshot() })
		mirror = hub
	}
	statuses = service.NewStatusBroadcaster(notifier, mirror)

	docs := lsp.NewDocuments()
	settings := service.SettingsFromConfig(cfg.DeepScan)
	inspector, err := service.NewInspector(service.InspectorDeps{
		Session:     service.NewSession(client, nil, pool.New(cfg.Inspection.MaxConcurrent), metrics),
		Broadcaster: statuses,
		Client:      notifier,
		Tokens:      service.NewTokenService(client, tokenCache, cfg.Cache.TokenInfoTTL),
		Documents:   docs,
		Metrics:     metrics,
	}, settings, service.InspectorOptions{
		Limits:        service.Limits{MaxLines: cfg.Inspection.MaxLines, MaxChars: cfg.Inspection.MaxChars},
		InspectedURIs: cfg.Cache.InspectedURIs,
		Concurrency:   cfg.Inspection.MaxConcurrent,
		OnPanic:       sup.HandlePanic,
	})
	if err != nil {
		slog.Error("inspector setup failed", "error", err)
		return 1
	}
	server := lsp.NewServer(conn, notifier, docs, inspector, settings, version)
	server.SetPanicHandler(sup.HandlePanic)

	// --- Background ---

	holder := config.NewHolder(cfg, cfgPath)
	stopWatch := startWatch(ctx, sup.HandlePanic, func(ctx context.Context) error {
		return holder.Watch(ctx, config.DefaultDebounce, func(c *config.Config) {
			logger.SetLevel(c.Logging.Level)
			server.SetBaseFromConfig(ctx, c)
		})
	})

	if hub != nil {
		defer hub.Close()
		handlers := &debugserver.Handlers{
			Statuses:    statuses,
			Settings:    inspector.Settings,
			Connections: hub.ConnectionCount,
			Version:     version,
			Started:     time.Now(),
		}
		router := debugserver.NewRouter(handlers, hub, cfg.Telemetry.ServiceName)
		go func() {
			defer sup.Recover()
			if err := debugserver.Serve(ctx, cfg.Debug.Addr, router); err != nil {
				slog.Error("debug server failed", "error", err)
			}
		}()
	}

	// --- Serve ---

	err = server.Run(ctx)
	// The watcher can start re-inspections; stop it before waiting on them.
	stopWatch()
	inspector.Wait()
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("interrupted")
		return 1
	case err != nil:
		slog.Error("lsp server failed", "error", err)
		return 1
	}
	return server.ExitCode()
}
