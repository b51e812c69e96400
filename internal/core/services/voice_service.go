package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"harmony/internal/core/domain"
	"harmony/internal/core/ports"
	"harmony/internal/core/state"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// sessionMetadata is what gets persisted into the participant's session
// metadata blob.
type sessionMetadata struct {
	Deafened bool `json:"deafened"`
}

// VoiceService is the voice action layer: async orchestration of join,
// leave, toggle and device-switch operations against the media session,
// the preference store and the state store. Presentation layers call these
// methods and render from the state store; only this service mutates the
// room handle.
type VoiceService struct {
	store    *state.Store
	rooms    *RoomRef
	sessions ports.SessionFactory
	tokens   ports.TokenService
	presence ports.PresenceService
	prefs    ports.PreferenceRepository
	settings ports.SettingsRepository
	metrics  ports.VoiceMetrics
	tracer   trace.Tracer
	logger   *zap.Logger

	// joining guards against overlapping join attempts. The UI disables
	// controls while connecting, but programmatic callers get a hard error
	// instead of a race.
	joining atomic.Bool

	userMu    sync.Mutex
	localUser domain.UserInfo
}

func NewVoiceService(
	store *state.Store,
	rooms *RoomRef,
	sessions ports.SessionFactory,
	tokens ports.TokenService,
	presence ports.PresenceService,
	prefs ports.PreferenceRepository,
	settings ports.SettingsRepository,
	metrics ports.VoiceMetrics,
	logger *zap.Logger,
) *VoiceService {
	return &VoiceService{
		store:    store,
		rooms:    rooms,
		sessions: sessions,
		tokens:   tokens,
		presence: presence,
		prefs:    prefs,
		settings: settings,
		metrics:  metrics,
		tracer:   otel.Tracer("harmony/voice"),
		logger:   logger,
	}
}

// JoinChannel connects to a community voice channel. Any active session is
// released first. Steps run strictly in sequence: token, connect, presence,
// device preference application. Token and connect failures are recorded in
// the state store, reset the room handle and are returned; they are never
// retried here.
func (s *VoiceService) JoinChannel(ctx context.Context, channel domain.ChannelInfo, user domain.UserInfo, conn domain.ConnectionInfo) error {
	return s.join(ctx, string(channel.ID), domain.ContextChannel, user, conn,
		func() { s.store.Dispatch(state.SetConnected{Channel: channel}) })
}

// JoinDM connects to a direct-message group call.
func (s *VoiceService) JoinDM(ctx context.Context, dm domain.DMInfo, user domain.UserInfo, conn domain.ConnectionInfo) error {
	return s.join(ctx, string(dm.GroupID), domain.ContextDM, user, conn,
		func() { s.store.Dispatch(state.SetDMConnected{DM: dm}) })
}

func (s *VoiceService) join(ctx context.Context, roomID string, contextType domain.ContextType, user domain.UserInfo, conn domain.ConnectionInfo, dispatchConnected func()) error {
	if !s.joining.CompareAndSwap(false, true) {
		return domain.ErrJoinInProgress
	}
	defer s.joining.Store(false)

	ctx, span := s.tracer.Start(ctx, "voice.join",
		trace.WithAttributes(
			attribute.String("room_id", roomID),
			attribute.String("context_type", string(contextType)),
		))
	defer span.End()

	if s.store.Snapshot().IsConnected {
		if err := s.leave(ctx); err != nil {
			return fmt.Errorf("leave before join: %w", err)
		}
	}

	started := time.Now()
	s.store.Dispatch(state.SetConnecting{Value: true})

	token, err := s.tokens.Request(ctx, roomID, user.ID, user.DisplayName)
	if err != nil {
		return s.failJoin(err)
	}

	sess := s.sessions.NewSession()
	if err := sess.Connect(ctx, conn.ServerURL, token); err != nil {
		return s.failJoin(err)
	}

	s.rooms.Set(sess)
	s.setLocalUser(user)
	sess.OnEvent(func(ports.RoomEvent) {
		s.metrics.SetParticipantCount(len(sess.Participants()))
	})
	dispatchConnected()
	s.metrics.RecordJoin(contextType)
	s.metrics.ObserveJoinDuration(time.Since(started))
	s.metrics.SetConnected(true)

	// Presence and stored device preferences are applied after the session
	// is up; neither may fail the join.
	if err := s.presence.Join(ctx, roomID, user.ID); err != nil {
		s.logger.Warn("presence join failed", zap.String("room_id", roomID), zap.Error(err))
	}
	s.applyDevicePreferences(ctx, sess)

	s.logger.Info("joined voice session",
		zap.String("room_id", roomID),
		zap.String("context_type", string(contextType)),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// failJoin records a failed join attempt. The room handle is guaranteed
// reset and the connection error is the final dispatch.
func (s *VoiceService) failJoin(err error) error {
	s.rooms.Set(nil)
	s.store.Dispatch(state.SetConnectionError{Message: err.Error()})
	s.metrics.RecordJoinFailure()
	s.logger.Error("voice join failed", zap.Error(err))
	return err
}

// Leave disconnects the active session, if any. Calling it without a session
// and without a target is a no-op, and a room that is already gone is
// tolerated: disconnect problems are logged, never returned.
func (s *VoiceService) Leave(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "voice.leave")
	defer span.End()
	return s.leave(ctx)
}

func (s *VoiceService) leave(ctx context.Context) error {
	snap := s.store.Snapshot()
	sess := s.rooms.Get()
	if sess == nil && !snap.HasTarget() {
		return nil
	}

	if sess != nil {
		if err := sess.Disconnect(ctx); err != nil {
			s.logger.Warn("session disconnect failed", zap.Error(err))
		}
	}
	s.rooms.Set(nil)

	if roomID := snap.RoomID(); roomID != "" {
		if err := s.presence.Leave(ctx, roomID, s.getLocalUser().ID); err != nil {
			s.logger.Warn("presence leave failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}

	s.store.Dispatch(state.SetDisconnected{})
	s.metrics.SetConnected(false)
	s.logger.Info("left voice session", zap.String("room_id", snap.RoomID()))
	return nil
}

// ToggleMicrophone flips the local microphone publication. The session is
// the source of truth for the current flag, not the state store. No-op
// without a session.
func (s *VoiceService) ToggleMicrophone(ctx context.Context) error {
	sess := s.rooms.Get()
	if sess == nil {
		return nil
	}
	enabled := sess.IsMicrophoneEnabled()
	if err := sess.SetMicrophoneEnabled(ctx, !enabled); err != nil {
		return fmt.Errorf("toggle microphone: %w", err)
	}
	return nil
}

// ToggleDeafen flips the deafen flag optimistically, mutes the microphone
// when deafening, and persists the flag to session metadata. If the
// metadata write fails the optimistic flag is rolled back and the error
// returned. Presence is told about the change only in channel context, and
// only best-effort.
func (s *VoiceService) ToggleDeafen(ctx context.Context) error {
	sess := s.rooms.Get()
	if sess == nil {
		return nil
	}

	snap := s.store.Snapshot()
	prev := snap.IsDeafened
	next := !prev

	s.store.Dispatch(state.SetDeafened{Deafened: next})

	if next && sess.IsMicrophoneEnabled() {
		if err := sess.SetMicrophoneEnabled(ctx, false); err != nil {
			s.logger.Warn("mute on deafen failed", zap.Error(err))
		}
	}

	payload, err := json.Marshal(sessionMetadata{Deafened: next})
	if err != nil {
		s.store.Dispatch(state.SetDeafened{Deafened: prev})
		return fmt.Errorf("encode session metadata: %w", err)
	}
	if err := sess.SetMetadata(ctx, string(payload)); err != nil {
		s.store.Dispatch(state.SetDeafened{Deafened: prev})
		return fmt.Errorf("persist deafen state: %w", err)
	}

	if snap.ContextType == domain.ContextChannel {
		if err := s.presence.UpdateDeafenState(ctx, string(snap.CurrentChannelID), s.getLocalUser().ID, next); err != nil {
			s.logger.Warn("presence deafen update failed", zap.Error(err))
		}
	}
	return nil
}

// SwitchAudioInput switches the active microphone and persists the choice.
// No-op without a session.
func (s *VoiceService) SwitchAudioInput(ctx context.Context, deviceID string) error {
	sess := s.rooms.Get()
	if sess == nil {
		return nil
	}
	if err := sess.SwitchActiveDevice(ctx, domain.DeviceAudioInput, deviceID); err != nil {
		return fmt.Errorf("switch audio input: %w", err)
	}
	s.store.Dispatch(state.SetAudioInputDevice{DeviceID: deviceID})
	if _, err := s.prefs.Set(ctx, domain.PreferenceUpdate{AudioInputDeviceID: &deviceID}); err != nil {
		return fmt.Errorf("persist audio input preference: %w", err)
	}
	return nil
}

// SwitchAudioOutput switches the active playback device. No-op without a
// session, and also without any channel or DM target.
func (s *VoiceService) SwitchAudioOutput(ctx context.Context, deviceID string) error {
	if !s.store.Snapshot().HasTarget() {
		return nil
	}
	sess := s.rooms.Get()
	if sess == nil {
		return nil
	}
	if err := sess.SwitchActiveDevice(ctx, domain.DeviceAudioOutput, deviceID); err != nil {
		return fmt.Errorf("switch audio output: %w", err)
	}
	s.store.Dispatch(state.SetAudioOutputDevice{DeviceID: deviceID})
	if _, err := s.prefs.Set(ctx, domain.PreferenceUpdate{AudioOutputDeviceID: &deviceID}); err != nil {
		return fmt.Errorf("persist audio output preference: %w", err)
	}
	return nil
}

// SwitchVideoInput switches the active camera and persists the choice.
// No-op without a session.
func (s *VoiceService) SwitchVideoInput(ctx context.Context, deviceID string) error {
	sess := s.rooms.Get()
	if sess == nil {
		return nil
	}
	if err := sess.SwitchActiveDevice(ctx, domain.DeviceVideoInput, deviceID); err != nil {
		return fmt.Errorf("switch video input: %w", err)
	}
	s.store.Dispatch(state.SetVideoInputDevice{DeviceID: deviceID})
	if _, err := s.prefs.Set(ctx, domain.PreferenceUpdate{VideoInputDeviceID: &deviceID}); err != nil {
		return fmt.Errorf("persist video input preference: %w", err)
	}
	return nil
}

// StartScreenShare publishes the screen with the persisted share settings.
func (s *VoiceService) StartScreenShare(ctx context.Context) error {
	sess := s.rooms.Get()
	if sess == nil {
		return domain.ErrNotConnected
	}
	settings, err := s.settings.ScreenShare(ctx)
	if err != nil {
		return fmt.Errorf("load screen share settings: %w", err)
	}
	if err := sess.SetScreenShareEnabled(ctx, true, settings); err != nil {
		return fmt.Errorf("start screen share: %w", err)
	}
	return nil
}

// StopScreenShare unpublishes the screen. No-op without a session.
func (s *VoiceService) StopScreenShare(ctx context.Context) error {
	sess := s.rooms.Get()
	if sess == nil {
		return nil
	}
	if err := sess.SetScreenShareEnabled(ctx, false, domain.ScreenShareSettings{}); err != nil {
		return fmt.Errorf("stop screen share: %w", err)
	}
	return nil
}

// SetVideoTilesVisible updates the UI visibility flag for video tiles.
func (s *VoiceService) SetVideoTilesVisible(visible bool) {
	s.store.Dispatch(state.SetShowVideoTiles{Visible: visible})
}

// applyDevicePreferences switches each device slot that has a concrete
// stored preference. The "default" sentinel leaves the session's automatic
// selection alone. Failures here never fail the join.
func (s *VoiceService) applyDevicePreferences(ctx context.Context, sess ports.RoomSession) {
	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		s.logger.Warn("device preferences unavailable", zap.Error(err))
		return
	}

	apply := func(kind domain.DeviceKind, deviceID string, dispatched state.Action) {
		if deviceID == domain.DefaultDevice || deviceID == "" {
			return
		}
		if err := sess.SwitchActiveDevice(ctx, kind, deviceID); err != nil {
			s.logger.Warn("stored device preference not applied",
				zap.String("kind", string(kind)),
				zap.String("device_id", deviceID),
				zap.Error(err))
			return
		}
		s.store.Dispatch(dispatched)
	}

	apply(domain.DeviceAudioInput, prefs.AudioInputDeviceID, state.SetAudioInputDevice{DeviceID: prefs.AudioInputDeviceID})
	apply(domain.DeviceAudioOutput, prefs.AudioOutputDeviceID, state.SetAudioOutputDevice{DeviceID: prefs.AudioOutputDeviceID})
	apply(domain.DeviceVideoInput, prefs.VideoInputDeviceID, state.SetVideoInputDevice{DeviceID: prefs.VideoInputDeviceID})
}

func (s *VoiceService) setLocalUser(user domain.UserInfo) {
	s.userMu.Lock()
	s.localUser = user
	s.userMu.Unlock()
}

func (s *VoiceService) getLocalUser() domain.UserInfo {
	s.userMu.Lock()
	defer s.userMu.Unlock()
	return s.localUser
}
