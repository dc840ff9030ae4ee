package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	maxProfileBytes = 1 << 20
	yamlContentType = "application/yaml"
)

func wantsYAML(c *gin.Context) bool {
	if strings.EqualFold(c.Query("format"), "yaml") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "yaml")
}

// @Summary      Get the active mold profile
// @Description  JSON by default; ?format=yaml (or Accept: application/yaml) returns the file form
// @Tags         profile
// @Produce      json
// @Produce      application/yaml
// @Param        format  query  string  false  "Response format"  Enums(json,yaml)
// @Success      200  {object}  config.Profile
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/profile [get]
// @Security     BearerAuth
func (h *Handler) getProfile(c *gin.Context) {
	p, err := h.services.Profiles.Active(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load profile", "profile_get_failed", err)
		return
	}
	if wantsYAML(c) {
		out, err := p.YAML()
		if err != nil {
			h.logAndJSONError(c, http.StatusInternalServerError, "failed to render profile", "profile_render_failed", err)
			return
		}
		c.Data(http.StatusOK, yamlContentType, out)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Replace the active mold profile
// @Description  Accepts YAML or JSON. Rejected while a session is running.
// @Tags         profile
// @Accept       json
// @Accept       application/yaml
// @Produce      json
// @Param        body  body  config.Profile  true  "Profile"
// @Success      200  {object}  config.Profile
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "session running"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/profile [put]
// @Security     BearerAuth
func (h *Handler) putProfile(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxProfileBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	p, err := h.services.Profiles.Put(c.Request.Context(), raw)
	if err != nil {
		code := errorStatus(err)
		if code == http.StatusInternalServerError {
			h.logAndJSONError(c, code, "failed to save profile", "profile_put_failed", err)
			return
		}
		if h.log != nil {
			h.log.Infow("profile_rejected", "err", err)
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}
