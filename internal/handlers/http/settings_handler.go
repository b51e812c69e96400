package http

import (
	"net/http"

	"harmony/internal/core/domain"
	"harmony/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// SettingsHandler exposes the locally persisted screen-share and
// picture-in-picture settings.
type SettingsHandler struct {
	settings ports.SettingsRepository
}

func NewSettingsHandler(settings ports.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/v1/settings")
	{
		api.GET("/screenshare", h.GetScreenShare)
		api.PUT("/screenshare", h.UpdateScreenShare)
		api.GET("/pip", h.GetPipLayout)
		api.PUT("/pip", h.UpdatePipLayout)
	}
}

func (h *SettingsHandler) GetScreenShare(c *gin.Context) {
	settings, err := h.settings.ScreenShare(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) UpdateScreenShare(c *gin.Context) {
	var req struct {
		Resolution  *string `json:"resolution"`
		FPS         *int    `json:"fps" binding:"omitempty,min=1,max=60"`
		EnableAudio *bool   `json:"enableAudio"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.settings.SetScreenShare(c.Request.Context(), domain.ScreenShareUpdate{
		Resolution:  req.Resolution,
		FPS:         req.FPS,
		EnableAudio: req.EnableAudio,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) GetPipLayout(c *gin.Context) {
	layout, err := h.settings.PipLayout(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"layout": layout})
}

func (h *SettingsHandler) UpdatePipLayout(c *gin.Context) {
	var req struct {
		Corner string  `json:"corner" binding:"required,oneof=top-left top-right bottom-left bottom-right"`
		Pinned bool    `json:"pinned"`
		Scale  float64 `json:"scale" binding:"required,min=0.25,max=2"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	layout := domain.PipLayoutSettings{
		Corner: req.Corner,
		Pinned: req.Pinned,
		Scale:  req.Scale,
	}
	if err := h.settings.SetPipLayout(c.Request.Context(), layout); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"layout": layout})
}
