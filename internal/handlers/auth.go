package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// operatorCredentials is the sign-up and sign-in body for an operator account.
type operatorCredentials struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=72"` // bcrypt input limit
}

const tokenType = "Bearer"

// bindCredentials binds the request body and writes a 400 on failure.
// Returns false if the request was already answered.
func (h *Handler) bindCredentials(c *gin.Context, dst *operatorCredentials) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("auth_bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary      Create an operator account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  operatorCredentials  true  "Credentials"
// @Success      200  {object}  map[string]int  "id"
// @Failure      400  {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *Handler) signUp(c *gin.Context) {
	var input operatorCredentials
	if !h.bindCredentials(c, &input) {
		return
	}

	id, err := h.services.SignUp(input.Username, input.Password)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_sign_up_failed", "username", input.Username, "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.log != nil {
		h.log.Infow("operator_created", "operator_id", id, "username", input.Username)
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary      Issue a bearer token for the control API and the live feed
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  operatorCredentials  true  "Credentials"
// @Success      200  {object}  map[string]string  "token, token_type"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var input operatorCredentials
	if !h.bindCredentials(c, &input) {
		return
	}

	token, err := h.services.GenerateToken(input.Username, input.Password)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_sign_in_failed", "username", input.Username, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "token_type": tokenType})
}
