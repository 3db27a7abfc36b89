package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/http/response"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/realtime"
)

const heartbeatInterval = 15 * time.Second

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/tasks/events
func (h *RealtimeHandler) TaskEvents(c *gin.Context) {
	if h.hub == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "events_unavailable", errors.New("task events are disabled"))
		return
	}
	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)
	h.log.Debug("task event stream open", "subscriber_id", sub.ID, "subscribers", h.hub.Len())

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-sub.Done():
			return false
		case ev, ok := <-sub.Outbound:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Event), ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
	h.log.Debug("task event stream closed", "subscriber_id", sub.ID)
}
