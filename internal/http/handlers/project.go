package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/http/response"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/services"
)

// maxUploadMemory is the in-memory share of a multipart upload; the rest spills to temp files.
const maxUploadMemory = 32 << 20

type ProjectHandler struct {
	log      *logger.Logger
	projects services.ProjectService
}

func NewProjectHandler(log *logger.Logger, projects services.ProjectService) *ProjectHandler {
	return &ProjectHandler{log: log.With("handler", "ProjectHandler"), projects: projects}
}

// POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()
	files := c.Request.MultipartForm.File["files"]
	if len(files) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", errors.New(`no files in form field "files"`))
		return
	}

	project, task, err := h.projects.Create(dbctx.Context{Ctx: c.Request.Context()}, files)
	if err != nil {
		respondServiceError(c, "create_project_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"project": project, "task": task})
}

// GET /api/projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	skip, limit, err := pagination(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pagination", err)
		return
	}
	filter := services.ProjectListFilter{ScriptureFilename: strings.TrimSpace(c.Query("scripture_filename"))}
	projects, err := h.projects.List(dbctx.Context{Ctx: c.Request.Context()}, filter, skip, limit)
	if err != nil {
		respondServiceError(c, "list_projects_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"projects": projects})
}

// GET /api/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projects.Get(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		respondServiceError(c, "get_project_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"project": project})
}

// DELETE /api/projects/:id
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	if err := h.projects.Delete(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id")); err != nil {
		respondServiceError(c, "delete_project_failed", err)
		return
	}
	response.RespondNoContent(c)
}

// GET /api/projects/:id/download_drafts
func (h *ProjectHandler) DownloadDrafts(c *gin.Context) {
	archive, err := h.projects.DraftsArchive(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		respondServiceError(c, "download_drafts_failed", err)
		return
	}
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Filename()))
	c.Status(http.StatusOK)
	// Headers are gone once the first byte is written, so a failure can only be logged.
	if _, err := archive.WriteTo(c.Writer); err != nil {
		h.log.Error("drafts archive write failed", "project_id", archive.ProjectID, "error", err)
		_ = c.Error(err)
	}
}
