package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/http/response"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/services"
)

// CatalogHandler serves the read-only catalog collections that scans populate.
type CatalogHandler struct {
	catalog services.CatalogService
}

func NewCatalogHandler(catalog services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GET /api/scriptures
func (h *CatalogHandler) ListScriptures(c *gin.Context) {
	skip, limit, err := pagination(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pagination", err)
		return
	}
	scriptures, err := h.catalog.ListScriptures(dbctx.Context{Ctx: c.Request.Context()}, strings.TrimSpace(c.Query("query")), skip, limit)
	if err != nil {
		respondServiceError(c, "list_scriptures_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"scriptures": scriptures})
}

// GET /api/scriptures/:id
func (h *CatalogHandler) GetScripture(c *gin.Context) {
	scripture, err := h.catalog.GetScripture(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		respondServiceError(c, "get_scripture_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"scripture": scripture})
}

// GET /api/drafts
func (h *CatalogHandler) ListDrafts(c *gin.Context) {
	skip, limit, err := pagination(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pagination", err)
		return
	}
	filter := services.DraftListFilter{
		ProjectID:      strings.TrimSpace(c.Query("project_id")),
		ExperimentName: strings.TrimSpace(c.Query("experiment_name")),
	}
	drafts, err := h.catalog.ListDrafts(dbctx.Context{Ctx: c.Request.Context()}, filter, skip, limit)
	if err != nil {
		respondServiceError(c, "list_drafts_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"drafts": drafts})
}

// GET /api/lang_codes
// GET /api/lang_codes/:code
func (h *CatalogHandler) LangCodes(c *gin.Context) {
	codes, err := h.catalog.LangCodes(dbctx.Context{Ctx: c.Request.Context()}, c.Param("code"))
	if err != nil {
		respondServiceError(c, "list_lang_codes_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"lang_codes": codes})
}
