package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mold_monitor/internal/repository"
	"mold_monitor/internal/service"
)

const errInvalidBodyPref = "invalid body: "

// errorStatus maps service errors to HTTP codes; unknown errors are 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionRunning), errors.Is(err, service.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidProfile), errors.Is(err, service.ErrEmptyProfile),
		errors.Is(err, service.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// logAndJSONError logs err under logKey and answers with userMsg only.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...any) {
	if h.log != nil && err != nil {
		h.log.Errorw(logKey, append([]any{"err", err, "path", c.FullPath()}, kv...)...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// controlError answers a failed start or stop. Conflicts are the operator's
// business and carry the service message; anything else gets fallback.
func (h *Handler) controlError(c *gin.Context, err error, fallback, logKey string) {
	code := errorStatus(err)
	if code == http.StatusConflict {
		if h.log != nil {
			h.log.Infow(logKey, "err", err, "operator_id", operatorID(c))
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, code, fallback, logKey, err, "operator_id", operatorID(c))
}
