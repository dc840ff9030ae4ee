package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mold_monitor/internal/service"
)

const csvContentType = "text/csv; charset=utf-8"

// @Summary      List recorded cycles
// @Description  Newest first, without samples
// @Tags         cycles
// @Produce      json
// @Param        session_id  query  string  false  "Only cycles of this session"
// @Param        from        query  string  false  "Cycle start >= (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"
// @Param        to          query  string  false  "Cycle start <= (date-only means end of day)"
// @Param        limit       query  int     false  "Max results (default 100, max 1000)"
// @Success      200  {object}  map[string]interface{}  "count, cycles"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/cycles [get]
// @Security     BearerAuth
func (h *Handler) listCycles(c *gin.Context) {
	from, to, ok := h.parseRange(c)
	if !ok {
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'"})
			return
		}
		limit = n
	}
	out, err := h.services.Cycles.List(c.Request.Context(), service.CycleFilter{
		SessionID: c.Query("session_id"),
		From:      from,
		To:        to,
		Limit:     limit,
	})
	if err != nil {
		if errorStatus(err) == http.StatusBadRequest {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load cycles", "cycles_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(out),
		"cycles": out,
	})
}

// @Summary      Get one cycle with its samples
// @Tags         cycles
// @Produce      json
// @Param        id  path  string  true  "Cycle id"
// @Success      200  {object}  mold_monitor.CycleRecord
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/cycles/{id} [get]
// @Security     BearerAuth
func (h *Handler) getCycle(c *gin.Context) {
	rec, err := h.services.Cycles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.cycleError(c, err, "cycle_get_failed")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary      Export one cycle as CSV
// @Description  Columns: Cycle, Time(s) since cycle start, one column per channel
// @Tags         cycles
// @Produce      text/csv
// @Param        id  path  string  true  "Cycle id"
// @Success      200  {string}  string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/cycles/{id}/csv [get]
// @Security     BearerAuth
func (h *Handler) exportCycleCSV(c *gin.Context) {
	id := c.Param("id")
	var buf bytes.Buffer
	if err := h.services.Cycles.ExportCSV(c.Request.Context(), id, &buf); err != nil {
		h.cycleError(c, err, "cycle_csv_failed")
		return
	}
	sendCSV(c, fmt.Sprintf("cycle-%s.csv", id), buf.Bytes())
}

// @Summary      Export all cycles of a session as CSV
// @Tags         session
// @Produce      text/csv
// @Param        id  path  string  true  "Session id"
// @Success      200  {string}  string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sessions/{id}/csv [get]
// @Security     BearerAuth
func (h *Handler) exportSessionCSV(c *gin.Context) {
	id := c.Param("id")
	var buf bytes.Buffer
	if err := h.services.Cycles.ExportSessionCSV(c.Request.Context(), id, &buf); err != nil {
		h.cycleError(c, err, "session_csv_failed")
		return
	}
	sendCSV(c, fmt.Sprintf("session-%s.csv", id), buf.Bytes())
}

func (h *Handler) cycleError(c *gin.Context, err error, logKey string) {
	if code := errorStatus(err); code == http.StatusNotFound {
		c.JSON(code, gin.H{"error": "not found"})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, "failed to load cycle data", logKey, err, "id", c.Param("id"))
}

func sendCSV(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, csvContentType, body)
}
