package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"harmony/internal/core/domain"
	"harmony/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockVoiceController struct {
	mock.Mock
}

func (m *MockVoiceController) JoinChannel(ctx context.Context, channel domain.ChannelInfo, user domain.UserInfo, conn domain.ConnectionInfo) error {
	args := m.Called(ctx, channel, user, conn)
	return args.Error(0)
}

func (m *MockVoiceController) JoinDM(ctx context.Context, dm domain.DMInfo, user domain.UserInfo, conn domain.ConnectionInfo) error {
	args := m.Called(ctx, dm, user, conn)
	return args.Error(0)
}

func (m *MockVoiceController) Leave(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVoiceController) ToggleMicrophone(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVoiceController) ToggleDeafen(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVoiceController) SwitchAudioInput(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockVoiceController) SwitchAudioOutput(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockVoiceController) SwitchVideoInput(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockVoiceController) StartScreenShare(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVoiceController) StopScreenShare(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVoiceController) SetVideoTilesVisible(visible bool) {
	m.Called(visible)
}

type MockDeviceLister struct {
	mock.Mock
}

func (m *MockDeviceLister) List(ctx context.Context) ([]domain.MediaDevice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MediaDevice), args.Error(1)
}

func (m *MockDeviceLister) ListByKind(ctx context.Context, kind domain.DeviceKind) ([]domain.MediaDevice, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MediaDevice), args.Error(1)
}

type stubState struct {
	state domain.VoiceState
}

func (s *stubState) Snapshot() domain.VoiceState { return s.state }

func setupRouter(voice *MockVoiceController, devices *MockDeviceLister, state *stubState) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewVoiceHandler(voice, devices, state,
		domain.UserInfo{ID: "user-7", DisplayName: "Dana"},
		domain.ConnectionInfo{ServerURL: "ws://media.local:7880"},
	)
	handler.SetupRoutes(router)
	return router
}

func TestVoiceHandler_JoinChannel(t *testing.T) {
	t.Run("passes channel info and identity through", func(t *testing.T) {
		voice := new(MockVoiceController)
		state := &stubState{state: domain.VoiceState{
			IsConnected:      true,
			ContextType:      domain.ContextChannel,
			CurrentChannelID: "chan-42",
		}}
		router := setupRouter(voice, new(MockDeviceLister), state)

		voice.On("JoinChannel", mock.Anything,
			mock.MatchedBy(func(ch domain.ChannelInfo) bool {
				return ch.ID == "chan-42" && ch.Name == "standup" && ch.CommunityID == "community-1"
			}),
			domain.UserInfo{ID: "user-7", DisplayName: "Dana"},
			domain.ConnectionInfo{ServerURL: "ws://media.local:7880"},
		).Return(nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/voice/channel/chan-42/join",
			strings.NewReader(`{"name":"standup","communityId":"community-1"}`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"isConnected":true`)
		voice.AssertExpectations(t)
	})

	t.Run("missing body fields are rejected", func(t *testing.T) {
		voice := new(MockVoiceController)
		router := setupRouter(voice, new(MockDeviceLister), &stubState{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/voice/channel/chan-42/join",
			strings.NewReader(`{}`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		voice.AssertNotCalled(t, "JoinChannel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body yields a single error response", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(middleware.ErrorHandler(zap.NewNop()))
		handler := NewVoiceHandler(new(MockVoiceController), new(MockDeviceLister), &stubState{},
			domain.UserInfo{ID: "user-7", DisplayName: "Dana"},
			domain.ConnectionInfo{ServerURL: "ws://media.local:7880"},
		)
		handler.SetupRoutes(router)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/voice/dm/dm-1/join",
			strings.NewReader(`{`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	})

	t.Run("join in progress maps to conflict", func(t *testing.T) {
		voice := new(MockVoiceController)
		router := setupRouter(voice, new(MockDeviceLister), &stubState{})

		voice.On("JoinChannel", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.ErrJoinInProgress)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/voice/channel/chan-42/join",
			strings.NewReader(`{"name":"standup","communityId":"community-1"}`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestVoiceHandler_ListDevices(t *testing.T) {
	voice := new(MockVoiceController)
	devices := new(MockDeviceLister)
	router := setupRouter(voice, devices, &stubState{})

	devices.On("ListByKind", mock.Anything, domain.DeviceAudioInput).Return([]domain.MediaDevice{
		{ID: "mic-1", Label: "Built-in Microphone", Kind: domain.DeviceAudioInput, IsDefault: true},
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/voice/devices?kind=audioinput", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Built-in Microphone")
	devices.AssertExpectations(t)
}

func TestVoiceHandler_SwitchDevice(t *testing.T) {
	voice := new(MockVoiceController)
	router := setupRouter(voice, new(MockDeviceLister), &stubState{})

	voice.On("SwitchAudioInput", mock.Anything, "mic-9").Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/voice/devices/audio-input",
		strings.NewReader(`{"deviceId":"mic-9"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	voice.AssertExpectations(t)
}

func TestVoiceHandler_ScreenShare(t *testing.T) {
	t.Run("start while disconnected maps to precondition failed", func(t *testing.T) {
		voice := new(MockVoiceController)
		router := setupRouter(voice, new(MockDeviceLister), &stubState{})

		voice.On("StartScreenShare", mock.Anything).Return(domain.ErrNotConnected)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/voice/screenshare", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	})

	t.Run("stop succeeds", func(t *testing.T) {
		voice := new(MockVoiceController)
		router := setupRouter(voice, new(MockDeviceLister), &stubState{})

		voice.On("StopScreenShare", mock.Anything).Return(nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/v1/voice/screenshare", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestVoiceHandler_GetState(t *testing.T) {
	state := &stubState{state: domain.VoiceState{
		IsConnected:      true,
		ContextType:      domain.ContextDM,
		CurrentDMGroupID: "dm-9",
		DMGroupName:      "late night",
		IsDeafened:       true,
	}}
	router := setupRouter(new(MockVoiceController), new(MockDeviceLister), state)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/voice/state", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isDeafened":true`)
	assert.Contains(t, w.Body.String(), "late night")
	assert.NotContains(t, w.Body.String(), `"channel"`)
}

func TestVoiceHandler_SetVideoTiles(t *testing.T) {
	voice := new(MockVoiceController)
	router := setupRouter(voice, new(MockDeviceLister), &stubState{})

	voice.On("SetVideoTilesVisible", true).Return()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/voice/tiles",
		strings.NewReader(`{"visible":true}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	voice.AssertCalled(t, "SetVideoTilesVisible", true)
}
