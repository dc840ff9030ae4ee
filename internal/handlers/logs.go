package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mold_monitor/internal/service"
)

// @Summary      List session events
// @Description  Oldest first. If 'to' is date-only it covers the whole day (UTC).
// @Tags         logs
// @Produce      json
// @Param        from        query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to          query   string  false  "End of range; date-only means end of day"  example(2025-08-31)
// @Param        type        query   string  false  "Event type"  Enums(SESSION_START,SESSION_STOP,CYCLE_START,CYCLE_END,TRIGGER_GLITCH,RESET,ERROR)
// @Param        session_id  query   string  false  "Only events of this session"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	from, to, ok := h.parseRange(c)
	if !ok {
		return
	}
	f := service.LogFilter{
		From:      from,
		To:        to,
		Type:      strings.ToUpper(strings.TrimSpace(c.Query("type"))),
		SessionID: c.Query("session_id"),
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		if errorStatus(err) == http.StatusBadRequest {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"from", from, "to", to, "type", f.Type, "session_id", f.SessionID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}
