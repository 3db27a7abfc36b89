package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/sillsdev/silauto-backend/internal/http/handlers"
	httpMW "github.com/sillsdev/silauto-backend/internal/http/middleware"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

const serviceName = "silauto-backend"

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	Tracing     bool

	HealthHandler   *httpH.HealthHandler
	ProjectHandler  *httpH.ProjectHandler
	TaskHandler     *httpH.TaskHandler
	CatalogHandler  *httpH.CatalogHandler
	RealtimeHandler *httpH.RealtimeHandler
	RescanHandler   *httpH.RescanHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/health", cfg.HealthHandler.Health)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Projects
		if cfg.ProjectHandler != nil {
			api.POST("/projects", cfg.ProjectHandler.CreateProject)
			api.GET("/projects", cfg.ProjectHandler.ListProjects)
			api.GET("/projects/:id", cfg.ProjectHandler.GetProject)
			api.DELETE("/projects/:id", cfg.ProjectHandler.DeleteProject)
			api.GET("/projects/:id/download_drafts", cfg.ProjectHandler.DownloadDrafts)
		}

		// Tasks
		if cfg.RealtimeHandler != nil {
			api.GET("/tasks/events", cfg.RealtimeHandler.TaskEvents)
		}
		if cfg.TaskHandler != nil {
			api.POST("/tasks/align_task", cfg.TaskHandler.CreateAlignTask)
			api.POST("/tasks/train_task", cfg.TaskHandler.CreateTrainTask)
			api.POST("/tasks/draft_task", cfg.TaskHandler.CreateDraftTask)
			api.POST("/tasks/extract_task", cfg.TaskHandler.CreateExtractTask)
			api.GET("/tasks", cfg.TaskHandler.ListTasks)
			api.GET("/tasks/:id", cfg.TaskHandler.GetTask)
			api.PATCH("/tasks/:id/status", cfg.TaskHandler.UpdateTaskStatus)
			api.DELETE("/tasks/:id", cfg.TaskHandler.DeleteTask)
		}

		// Catalog
		if cfg.CatalogHandler != nil {
			api.GET("/scriptures", cfg.CatalogHandler.ListScriptures)
			api.GET("/scriptures/:id", cfg.CatalogHandler.GetScripture)
			api.GET("/drafts", cfg.CatalogHandler.ListDrafts)
			api.GET("/lang_codes", cfg.CatalogHandler.LangCodes)
			api.GET("/lang_codes/:code", cfg.CatalogHandler.LangCodes)
		}

		if cfg.RescanHandler != nil {
			api.POST("/rescan", cfg.RescanHandler.Rescan)
		}
	}

	return r
}
