package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"downshot/internal/api"
	"downshot/pkg/config"
	"downshot/pkg/db"
	"downshot/pkg/db/maintenance"
	"downshot/pkg/geo"
	"downshot/pkg/logging"
	"downshot/pkg/mapsurface"
	"downshot/pkg/mission"
	"downshot/pkg/probe"
	"downshot/pkg/store"
	"downshot/pkg/telemetry"
	"downshot/pkg/tracker"
	"downshot/pkg/vehicle"
	"downshot/pkg/version"
	"downshot/pkg/video"
)

const defaultConfigPath = "configs/downshot.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	// .env may carry DOWNSHOT_APP_KEY; it is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	journal := logging.NewJournal(appCfg.Log.JournalSize)
	cleanupLogs, err := logging.Init(&appCfg.Log, journal)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Downshot Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, time.Duration(appCfg.DB.Retention)); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	cfgProv := config.NewProvider(appCfg, st)

	aircraft, appKey := initializeVehicle(ctx, cfgProv)
	defer aircraft.Close()

	// Telemetry feeds the map surface; the orchestrator reads the listener.
	surface := mapsurface.New(appCfg.Map.TrailSize)
	listener := telemetry.NewListener(surface)
	detach := listener.Attach(aircraft)
	defer detach()

	relay := video.NewRelay()
	defer relay.Close()

	sess := vehicle.NewSession(aircraft, appKey)
	sess.OnConnect(func(p vehicle.Product) {
		relay.Attach(aircraft, p.Model)
	})
	if _, err := sess.Start(ctx); err != nil {
		slog.Error("Vehicle session failed", "error", err)
	}

	tr := tracker.New()
	orch := mission.NewOrchestrator(mission.Deps{
		Controller: aircraft,
		Executor:   aircraft,
		State:      listener,
		Settings:   cfgProv,
		Reporter:   journal,
		Recorder:   st,
		Tracker:    tr,
		Targets:    surface,
	}, mission.Options{
		Altitude:                 cfgProv.MissionAltitude(ctx),
		SettleDelay:              cfgProv.SettleDelay(ctx),
		Timeout:                  cfgProv.MissionTimeout(ctx),
		ResetTimelineBeforeStart: cfgProv.ResetTimeline(ctx),
	})
	restoreTarget(ctx, st, orch)

	// Startup Probes
	results := probe.Run(ctx, probe.Preflight(st, sess))
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	handlers := api.Handlers{
		Telemetry: api.NewTelemetryHandler(listener, sess),
		Mission:   api.NewMissionHandler(orch, st),
		History:   api.NewHistoryHandler(st),
		Map:       api.NewMapHandler(surface),
		Log:       api.NewLogHandler(journal),
		Video:     api.NewVideoHandler(relay),
		Config:    api.NewConfigHandler(st, cfgProv),
		Stats:     api.NewStatsHandler(tr),
	}
	return runServer(ctx, appCfg, handlers, cancel)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// restoreTarget reselects the target chosen before the last shutdown.
func restoreTarget(ctx context.Context, st store.StateStore, orch *mission.Orchestrator) {
	raw, ok := st.GetState(ctx, config.KeyLastTarget)
	if !ok || raw == "" {
		return
	}
	p, err := geo.ParsePoint(raw)
	if err != nil {
		slog.Warn("Ignoring stored target", "value", raw, "error", err)
		return
	}
	orch.SetTarget(p)
	slog.Info("Restored mission target", "target", p)
}

func runServer(ctx context.Context, cfg *config.Config, h api.Handlers, shutdown func()) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	srv := api.NewServer(cfg.Server.Address, h, shutdown)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
