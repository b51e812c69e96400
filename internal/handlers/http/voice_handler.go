package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"harmony/internal/core/domain"

	"github.com/gin-gonic/gin"
)

// VoiceController is the slice of the voice service the handler drives.
type VoiceController interface {
	JoinChannel(ctx context.Context, channel domain.ChannelInfo, user domain.UserInfo, conn domain.ConnectionInfo) error
	JoinDM(ctx context.Context, dm domain.DMInfo, user domain.UserInfo, conn domain.ConnectionInfo) error
	Leave(ctx context.Context) error
	ToggleMicrophone(ctx context.Context) error
	ToggleDeafen(ctx context.Context) error
	SwitchAudioInput(ctx context.Context, deviceID string) error
	SwitchAudioOutput(ctx context.Context, deviceID string) error
	SwitchVideoInput(ctx context.Context, deviceID string) error
	StartScreenShare(ctx context.Context) error
	StopScreenShare(ctx context.Context) error
	SetVideoTilesVisible(visible bool)
}

// DeviceLister enumerates host media devices.
type DeviceLister interface {
	List(ctx context.Context) ([]domain.MediaDevice, error)
	ListByKind(ctx context.Context, kind domain.DeviceKind) ([]domain.MediaDevice, error)
}

// StateSource exposes the current voice state snapshot.
type StateSource interface {
	Snapshot() domain.VoiceState
}

type VoiceHandler struct {
	voice   VoiceController
	devices DeviceLister
	state   StateSource
	user    domain.UserInfo
	conn    domain.ConnectionInfo
}

func NewVoiceHandler(
	voice VoiceController,
	devices DeviceLister,
	state StateSource,
	user domain.UserInfo,
	conn domain.ConnectionInfo,
) *VoiceHandler {
	return &VoiceHandler{
		voice:   voice,
		devices: devices,
		state:   state,
		user:    user,
		conn:    conn,
	}
}

func (h *VoiceHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/v1/voice")
	{
		api.POST("/channel/:id/join", h.JoinChannel)
		api.POST("/dm/:id/join", h.JoinDM)
		api.POST("/leave", h.Leave)
		api.POST("/mic/toggle", h.ToggleMicrophone)
		api.POST("/deafen/toggle", h.ToggleDeafen)
		api.GET("/devices", h.ListDevices)
		api.PUT("/devices/audio-input", h.SwitchAudioInput)
		api.PUT("/devices/audio-output", h.SwitchAudioOutput)
		api.PUT("/devices/video-input", h.SwitchVideoInput)
		api.POST("/screenshare", h.StartScreenShare)
		api.DELETE("/screenshare", h.StopScreenShare)
		api.PUT("/tiles", h.SetVideoTiles)
		api.GET("/state", h.GetState)
	}
}

func (h *VoiceHandler) JoinChannel(c *gin.Context) {
	var req struct {
		Name        string    `json:"name" binding:"required"`
		CommunityID string    `json:"communityId" binding:"required"`
		IsPrivate   bool      `json:"isPrivate"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel := domain.ChannelInfo{
		ID:          domain.ChannelID(c.Param("id")),
		Name:        req.Name,
		CommunityID: domain.CommunityID(req.CommunityID),
		IsPrivate:   req.IsPrivate,
		CreatedAt:   req.CreatedAt,
	}

	if err := h.voice.JoinChannel(c.Request.Context(), channel, h.user, h.conn); err != nil {
		c.JSON(joinStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stateResponse(h.state.Snapshot()))
}

func (h *VoiceHandler) JoinDM(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dm := domain.DMInfo{
		GroupID: domain.DMGroupID(c.Param("id")),
		Name:    req.Name,
	}

	if err := h.voice.JoinDM(c.Request.Context(), dm, h.user, h.conn); err != nil {
		c.JSON(joinStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stateResponse(h.state.Snapshot()))
}

func (h *VoiceHandler) Leave(c *gin.Context) {
	if err := h.voice.Leave(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (h *VoiceHandler) ToggleMicrophone(c *gin.Context) {
	if err := h.voice.ToggleMicrophone(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "toggled"})
}

func (h *VoiceHandler) ToggleDeafen(c *gin.Context) {
	if err := h.voice.ToggleDeafen(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deafened": h.state.Snapshot().IsDeafened})
}

func (h *VoiceHandler) ListDevices(c *gin.Context) {
	var (
		devices []domain.MediaDevice
		err     error
	)
	if kind := c.Query("kind"); kind != "" {
		devices, err = h.devices.ListByKind(c.Request.Context(), domain.DeviceKind(kind))
	} else {
		devices, err = h.devices.List(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

func (h *VoiceHandler) SwitchAudioInput(c *gin.Context) {
	h.switchDevice(c, h.voice.SwitchAudioInput)
}

func (h *VoiceHandler) SwitchAudioOutput(c *gin.Context) {
	h.switchDevice(c, h.voice.SwitchAudioOutput)
}

func (h *VoiceHandler) SwitchVideoInput(c *gin.Context) {
	h.switchDevice(c, h.voice.SwitchVideoInput)
}

func (h *VoiceHandler) switchDevice(c *gin.Context, switchFn func(context.Context, string) error) {
	var req struct {
		DeviceID string `json:"deviceId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := switchFn(c.Request.Context(), req.DeviceID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "switched"})
}

func (h *VoiceHandler) StartScreenShare(c *gin.Context) {
	if err := h.voice.StartScreenShare(c.Request.Context()); err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sharing"})
}

func (h *VoiceHandler) StopScreenShare(c *gin.Context) {
	if err := h.voice.StopScreenShare(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (h *VoiceHandler) SetVideoTiles(c *gin.Context) {
	var req struct {
		Visible *bool `json:"visible" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.voice.SetVideoTilesVisible(*req.Visible)
	c.JSON(http.StatusOK, gin.H{"visible": *req.Visible})
}

func (h *VoiceHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, stateResponse(h.state.Snapshot()))
}

func joinStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrJoinInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTokenRequest), errors.Is(err, domain.ErrSessionConnect):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func stateResponse(s domain.VoiceState) gin.H {
	resp := gin.H{
		"isConnected":     s.IsConnected,
		"isConnecting":    s.IsConnecting,
		"contextType":     s.ContextType,
		"isDeafened":      s.IsDeafened,
		"showVideoTiles":  s.ShowVideoTiles,
		"connectionError": s.ConnectionError,
		"selectedDevices": gin.H{
			"audioInput":  s.SelectedAudioInputID,
			"audioOutput": s.SelectedAudioOutputID,
			"videoInput":  s.SelectedVideoInputID,
		},
	}
	switch s.ContextType {
	case domain.ContextChannel:
		resp["channel"] = gin.H{
			"id":          s.CurrentChannelID,
			"name":        s.ChannelName,
			"communityId": s.CommunityID,
			"isPrivate":   s.IsPrivate,
			"createdAt":   s.CreatedAt,
		}
	case domain.ContextDM:
		resp["dm"] = gin.H{
			"id":   s.CurrentDMGroupID,
			"name": s.DMGroupName,
		}
	}
	return resp
}
