package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/http"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/realtime"
	"github.com/sillsdev/silauto-backend/internal/realtime/bus"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

var catalogTables = []string{"projects", "scriptures", "tasks", "drafts", "lang_codes"}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics
	Hub      *realtime.Hub
	Bus      bus.Bus
	Server   *http.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Environment:   cfg.Environment,
		DataDir:       cfg.DataDir,
		CatalogDriver: cfg.DatabaseDriver,
	})

	gdb, err := db.Open(cfg.DBOptions(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	var taskBus bus.Bus
	if cfg.RedisAddr != "" {
		taskBus, err = bus.NewRedisBus(cfg.RedisAddr, cfg.RedisChannel, log)
		if err != nil {
			_ = db.Close(gdb)
			log.Sync()
			return nil, fmt.Errorf("init task bus: %w", err)
		}
	}

	metrics := observability.NewMetrics(cfg.MetricsEnabled)
	hub := realtime.NewHub(log)
	reposet := wireRepos(gdb, log)
	serviceset := wireServices(gdb, log, cfg, reposet, metrics, hub, taskBus)
	handlerset := wireHandlers(log, serviceset, hub)
	server := wireServer(log, cfg, metrics, otelShutdown != nil, handlerset)

	return &App{
		Log:          log,
		DB:           gdb,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		Hub:          hub,
		Bus:          taskBus,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background work of a serving process: the task bus forwarder,
// the catalog metrics collector and, unless disabled, the startup scan.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start task bus forwarder: %w", err)
		}
	}
	a.Metrics.StartCatalogCollector(ctx, a.Log, a.DB, catalogTables, a.Cfg.MetricsInterval)

	if a.Cfg.SkipStartupScan {
		a.Log.Info("Skipping startup scan")
		return nil
	}
	go func() {
		if _, err := a.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Log.Error("startup scan failed", "error", err)
		}
	}()
	return nil
}

// Scan reconciles the given kinds (all when none) and logs a summary per kind.
func (a *App) Scan(ctx context.Context, kinds ...reconcile.Kind) ([]*reconcile.Report, error) {
	a.Log.Info("Scanning artifacts...", "kinds", kinds)
	reports, err := a.Services.Engine.ReconcileAll(ctx, kinds...)
	for _, r := range reports {
		if r == nil {
			continue
		}
		a.Log.Info("scan finished",
			"kind", r.Kind,
			"candidates", r.Candidates,
			"stored", r.Stored,
			"skipped", r.Skipped,
			"failures", len(r.Failures),
			"duration_ms", r.DurationMS,
		)
	}
	return reports, err
}

// Run serves the API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	a.Log.Info("Serving API", "addr", a.Cfg.Addr())
	return a.Server.Run(ctx, a.Cfg.Addr(), a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("task bus close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if err := db.Close(a.DB); err != nil {
		a.Log.Warn("catalog close failed", "error", err)
	}
	a.Log.Sync()
}
