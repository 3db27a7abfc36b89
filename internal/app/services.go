package app

import (
	"gorm.io/gorm"

	"github.com/sillsdev/silauto-backend/internal/corpus"
	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/realtime"
	"github.com/sillsdev/silauto-backend/internal/realtime/bus"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
	"github.com/sillsdev/silauto-backend/internal/services"
)

type Services struct {
	Engine   *reconcile.Engine
	Notifier services.TaskNotifier
	Tasks    services.TaskService
	Projects services.ProjectService
	Catalog  services.CatalogService
}

func wireServices(gdb *gorm.DB, log *logger.Logger, cfg Config, r Repos, metrics *observability.Metrics, hub *realtime.Hub, taskBus bus.Bus) Services {
	log.Info("Wiring services...")
	tx := db.NewGormTxRunner(gdb)

	engine := reconcile.NewEngine(cfg.ReconcileConfig(), log, tx,
		corpus.NewVrefAnalyzer(cfg.VrefPath, log), metrics,
		r.Projects, r.Scriptures, r.Tasks, r.Drafts, r.LangCodes)
	notifier := services.NewTaskNotifier(log, hub, taskBus)

	return Services{
		Engine:   engine,
		Notifier: notifier,
		Tasks: services.NewTaskService(log, tx, engine, notifier, metrics,
			r.Tasks, r.Projects, r.Scriptures, r.LangCodes),
		Projects: services.NewProjectService(log, tx, engine, notifier,
			r.Projects, r.Tasks, r.Drafts),
		Catalog: services.NewCatalogService(log, r.Projects, r.Scriptures, r.Tasks, r.Drafts, r.LangCodes),
	}
}
