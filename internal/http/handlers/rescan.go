package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/http/response"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

type Reconciler interface {
	ReconcileAll(ctx context.Context, kinds ...reconcile.Kind) ([]*reconcile.Report, error)
}

type RescanHandler struct {
	log        *logger.Logger
	reconciler Reconciler
}

func NewRescanHandler(log *logger.Logger, reconciler Reconciler) *RescanHandler {
	return &RescanHandler{log: log.With("handler", "RescanHandler"), reconciler: reconciler}
}

type rescanRequest struct {
	Kinds []string `json:"kinds"`
}

// POST /api/rescan
// Kinds come from the JSON body or a comma separated "kinds" query; none means all.
func (h *RescanHandler) Rescan(c *gin.Context) {
	var req rescanRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if q := strings.TrimSpace(c.Query("kinds")); q != "" {
		req.Kinds = append(req.Kinds, strings.Split(q, ",")...)
	}

	kinds := make([]reconcile.Kind, 0, len(req.Kinds))
	for _, raw := range req.Kinds {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		k, err := reconcile.ParseKind(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_scan_kind", err)
			return
		}
		kinds = append(kinds, k)
	}

	reports, err := h.reconciler.ReconcileAll(c.Request.Context(), kinds...)
	if err != nil {
		h.log.Error("rescan failed", "kinds", kinds, "error", err)
		response.RespondErrorDetails(c, http.StatusInternalServerError, "rescan_failed", err, gin.H{"reports": reports})
		return
	}
	response.RespondOK(c, gin.H{"reports": reports})
}
