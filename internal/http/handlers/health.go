package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/http/response"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/services"
)

type HealthHandler struct {
	catalog services.CatalogService
}

func NewHealthHandler(catalog services.CatalogService) *HealthHandler {
	return &HealthHandler{catalog: catalog}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.catalog == nil {
		response.RespondOK(c, gin.H{"status": "ok"})
		return
	}
	counts, err := h.catalog.Counts(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "catalog_unavailable", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "ok", "counts": counts})
}
