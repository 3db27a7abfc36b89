package app

import (
	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/http"
	httpH "github.com/sillsdev/silauto-backend/internal/http/handlers"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Project  *httpH.ProjectHandler
	Task     *httpH.TaskHandler
	Catalog  *httpH.CatalogHandler
	Realtime *httpH.RealtimeHandler
	Rescan   *httpH.RescanHandler
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(services.Catalog),
		Project:  httpH.NewProjectHandler(log, services.Projects),
		Task:     httpH.NewTaskHandler(services.Tasks),
		Catalog:  httpH.NewCatalogHandler(services.Catalog),
		Realtime: httpH.NewRealtimeHandler(log, hub),
		Rescan:   httpH.NewRescanHandler(log, services.Engine),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, tracing bool, handlers Handlers) *http.Server {
	log.Info("Wiring router...")
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return http.NewServer(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSOrigins,
		Tracing:         tracing,
		HealthHandler:   handlers.Health,
		ProjectHandler:  handlers.Project,
		TaskHandler:     handlers.Task,
		CatalogHandler:  handlers.Catalog,
		RealtimeHandler: handlers.Realtime,
		RescanHandler:   handlers.Rescan,
	})
}
