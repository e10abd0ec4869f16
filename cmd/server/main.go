package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/TeamChat/internal/adapters/http"
	"github.com/dkeye/TeamChat/internal/adapters/natsbus"
	wsignal "github.com/dkeye/TeamChat/internal/adapters/signal"
	"github.com/dkeye/TeamChat/internal/app"
	"github.com/dkeye/TeamChat/internal/app/orch"
	"github.com/dkeye/TeamChat/internal/config"
	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/dkeye/TeamChat/internal/metrics"
	"github.com/dkeye/TeamChat/internal/storage"
	"github.com/dkeye/TeamChat/internal/storage/memory"
	"github.com/dkeye/TeamChat/internal/storage/sqlite"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "teamchat",
		Short: "Team chat server with HR announcements, bot commands and live polls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML); defaults to config/config.<CONFIG_ENV>.yaml")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("teamchat version %s\n", version)
		},
	})
	return cmd
}

func setupLogger(mode, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// openStore falls back to memory when the database is unusable; this only
// happens at startup.
func openStore(cfg config.StorageConfig) storage.Store {
	if cfg.Driver != "sqlite" {
		log.Info().Str("module", "main").Msg("using in-memory storage")
		return memory.New()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		log.Warn().Err(err).Str("module", "main").Msg("create storage dir")
	}
	store, err := sqlite.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Str("module", "main").Msg("sqlite unavailable, using in-memory storage")
		return memory.New()
	}
	return store
}

func openEvents(cfg config.NATSConfig) (core.EventPublisher, func()) {
	if cfg.URL == "" {
		return core.NopPublisher{}, func() {}
	}
	pub, err := natsbus.Connect(cfg.URL, cfg.SubjectPrefix)
	if err != nil {
		log.Error().Err(err).Str("module", "main").Msg("event mirror disabled")
		return core.NopPublisher{}, func() {}
	}
	return pub, pub.Close
}

func run(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console output until the config tells us otherwise.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.Mode, cfg.LogLevel)

	store := openStore(cfg.Storage)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("close store")
		}
	}()
	events, closeEvents := openEvents(cfg.NATS)
	defer closeEvents()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	o := &orch.Orchestrator{
		Registry:     app.NewRegistry(),
		Rooms:        app.NewRoomManager(domain.Rooms),
		Policy:       app.SimplePolicy{},
		Polls:        app.NewPollEngine(store),
		Bot:          app.NewHRBot(),
		Store:        store,
		Events:       events,
		Metrics:      m,
		HistoryLimit: cfg.HistoryLimit,
	}
	ctl := wsignal.NewSignalWSController(o,
		wsignal.NewRoomRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Interval),
		wsignal.Options{ReadLimit: cfg.ReadLimit, PingPeriod: cfg.PingPeriod, SendBuffer: cfg.SendBuffer},
	)

	r := router.SetupRouter(ctx, cfg, o, ctl, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", addr).Str("storage", store.Kind()).Msg("chat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "main").Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Str("module", "main").Msg("server exited gracefully")
	return nil
}
