package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/http/response"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/services"
)

type TaskHandler struct {
	tasks services.TaskService
}

func NewTaskHandler(tasks services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// POST /api/tasks/align_task
func (h *TaskHandler) CreateAlignTask(c *gin.Context) {
	var req types.AlignParams
	if !bindParams(c, &req) {
		return
	}
	task, err := h.tasks.CreateAlign(dbctx.Context{Ctx: c.Request.Context()}, &req)
	h.respondCreated(c, task, err)
}

// POST /api/tasks/train_task
func (h *TaskHandler) CreateTrainTask(c *gin.Context) {
	var req types.TrainParams
	if !bindParams(c, &req) {
		return
	}
	task, err := h.tasks.CreateTrain(dbctx.Context{Ctx: c.Request.Context()}, &req)
	h.respondCreated(c, task, err)
}

// POST /api/tasks/draft_task
func (h *TaskHandler) CreateDraftTask(c *gin.Context) {
	var req types.DraftParams
	if !bindParams(c, &req) {
		return
	}
	task, err := h.tasks.CreateDraft(dbctx.Context{Ctx: c.Request.Context()}, &req)
	h.respondCreated(c, task, err)
}

// POST /api/tasks/extract_task
func (h *TaskHandler) CreateExtractTask(c *gin.Context) {
	var req types.ExtractParams
	if !bindParams(c, &req) {
		return
	}
	task, err := h.tasks.CreateExtract(dbctx.Context{Ctx: c.Request.Context()}, &req)
	h.respondCreated(c, task, err)
}

func (h *TaskHandler) respondCreated(c *gin.Context, task *types.Task, err error) {
	if err != nil {
		respondServiceError(c, "create_task_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"task": task})
}

// GET /api/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	skip, limit, err := pagination(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pagination", err)
		return
	}
	filter := services.TaskListFilter{
		Kind:      types.TaskKind(strings.TrimSpace(c.Query("kind"))),
		Status:    types.TaskStatus(strings.TrimSpace(c.Query("status"))),
		ProjectID: strings.TrimSpace(c.Query("project_id")),
	}
	tasks, err := h.tasks.List(dbctx.Context{Ctx: c.Request.Context()}, filter, skip, limit)
	if err != nil {
		respondServiceError(c, "list_tasks_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"tasks": tasks})
}

// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.tasks.Get(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		respondServiceError(c, "get_task_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"task": task})
}

// PATCH /api/tasks/:id/status
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	var req services.StatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.tasks.UpdateStatus(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"), req)
	if err != nil {
		respondServiceError(c, "update_task_status_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.tasks.Delete(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id")); err != nil {
		respondServiceError(c, "delete_task_failed", err)
		return
	}
	response.RespondNoContent(c)
}

func bindParams(c *gin.Context, dst types.TaskParams) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request",
			fmt.Errorf("invalid %s task parameters: %w", dst.Kind(), err))
		return false
	}
	return true
}
