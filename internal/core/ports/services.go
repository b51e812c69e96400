package ports

import (
	"context"
	"time"

	"harmony/internal/core/domain"
)

// TokenService requests a short-lived access token scoped to a room and the
// caller's identity. Called exactly once per join attempt.
type TokenService interface {
	Request(ctx context.Context, roomID string, identity domain.UserID, displayName string) (string, error)
}

// PresenceService is best-effort bookkeeping of who is in a voice session.
// Callers log failures instead of surfacing them.
type PresenceService interface {
	Join(ctx context.Context, roomID string, identity domain.UserID) error
	Leave(ctx context.Context, roomID string, identity domain.UserID) error
	UpdateDeafenState(ctx context.Context, roomID string, identity domain.UserID, deafened bool) error
}

// DeviceEnumerator lists the host's audio/video devices.
type DeviceEnumerator interface {
	List(ctx context.Context) ([]domain.MediaDevice, error)
}

// VoiceMetrics records voice session telemetry.
type VoiceMetrics interface {
	RecordJoin(contextType domain.ContextType)
	RecordJoinFailure()
	ObserveJoinDuration(d time.Duration)
	SetConnected(connected bool)
	SetParticipantCount(n int)
}
