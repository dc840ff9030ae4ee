package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	operatorIDKey = "operatorId"
	// Browsers cannot set headers on a websocket handshake.
	tokenQueryParam = "access_token"
)

var (
	errMissingToken = errors.New("missing Authorization header")
	errBadScheme    = errors.New("invalid Authorization header format")
)

// operatorMiddleware authenticates the operator by bearer token and stores
// the operator id in the gin context.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_token_rejected", "path", c.FullPath(), "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(operatorIDKey, id)
	c.Next()
}

// bearerToken reads "Authorization: Bearer <token>", or ?access_token= on a
// websocket upgrade request.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			if tok := c.Query(tokenQueryParam); tok != "" {
				return tok, nil
			}
		}
		return "", errMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBadScheme
	}
	return strings.TrimSpace(token), nil
}

// operatorID returns the id set by operatorMiddleware, or 0.
func operatorID(c *gin.Context) int {
	return c.GetInt(operatorIDKey)
}
