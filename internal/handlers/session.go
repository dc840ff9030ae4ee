package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mold_monitor"
)

const (
	statusOK      = "ok"
	statusStarted = "started"
	statusStopped = "stopped"

	stopTimeout = 10 * time.Second
)

// controlResponse is the body of start and stop.
type controlResponse struct {
	Status  string                     `json:"status"`
	Session *mold_monitor.SessionInfo  `json:"session,omitempty"`
	State   *mold_monitor.SessionState `json:"state,omitempty"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Start monitoring
// @Description  Freezes the active profile and starts acquisition and cycle segmentation
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, session, state"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "already running"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/session/start [post]
// @Security     BearerAuth
func (h *Handler) startSession(c *gin.Context) {
	info, err := h.services.Control.Start(c.Request.Context())
	if err != nil {
		h.controlError(c, err, "failed to start monitoring", "session_start_failed")
		return
	}
	if h.log != nil {
		h.log.Infow("session_started", "session_id", info.ID, "profile", info.ProfileName, "operator_id", operatorID(c))
	}

	resp := controlResponse{Status: statusStarted, Session: &info}
	// the state is informational; start already succeeded
	if st, err := h.services.Monitoring.GetState(c.Request.Context()); err == nil {
		resp.State = &st
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Stop monitoring
// @Description  An open cycle is kept as an incomplete record
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "not running"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/session/stop [post]
// @Security     BearerAuth
func (h *Handler) stopSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), stopTimeout)
	defer cancel()

	st, err := h.services.Control.Stop(ctx)
	if err != nil {
		h.controlError(c, err, "failed to stop monitoring", "session_stop_failed")
		return
	}
	if h.log != nil {
		h.log.Infow("session_stopped", "session_id", st.SessionID, "cycles", st.CyclesCompleted, "operator_id", operatorID(c))
	}
	c.JSON(http.StatusOK, controlResponse{Status: statusStopped, State: &st})
}

// @Summary      Get session state
// @Tags         session
// @Produce      json
// @Success      200  {object}  mold_monitor.SessionState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/session/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load state", "session_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
