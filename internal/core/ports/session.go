package ports

import (
	"context"

	"harmony/internal/core/domain"
)

// RoomEventType enumerates session lifecycle events forwarded by the media
// server. Handlers fire on their own goroutine and are never awaited.
type RoomEventType string

const (
	EventParticipantConnected    RoomEventType = "participant_connected"
	EventParticipantDisconnected RoomEventType = "participant_disconnected"
	EventTrackPublished          RoomEventType = "track_published"
	EventTrackUnpublished        RoomEventType = "track_unpublished"
)

// RoomEvent is one participant or track lifecycle notification.
type RoomEvent struct {
	Type        RoomEventType
	Participant domain.UserID
	Track       domain.TrackInfo
}

// RoomSession is the externally managed real-time media session. The
// session, not VoiceState, is the source of truth for local publication
// flags such as microphone enablement.
type RoomSession interface {
	Connect(ctx context.Context, serverURL, token string) error
	Disconnect(ctx context.Context) error

	IsMicrophoneEnabled() bool
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	SetCameraEnabled(ctx context.Context, enabled bool) error
	SetScreenShareEnabled(ctx context.Context, enabled bool, settings domain.ScreenShareSettings) error

	SwitchActiveDevice(ctx context.Context, kind domain.DeviceKind, deviceID string) error
	SetMetadata(ctx context.Context, metadata string) error

	Participants() []domain.Participant
	OnEvent(handler func(RoomEvent))
}

// SessionFactory creates a fresh RoomSession for each join attempt.
type SessionFactory interface {
	NewSession() RoomSession
}
