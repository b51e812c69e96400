package ports

import (
	"context"

	"harmony/internal/core/domain"
)

// KV is synchronous key-value storage with JSON serialization.
type KV interface {
	// Get unmarshals the stored value into out and reports whether the key
	// existed.
	Get(key string, out interface{}) (bool, error)
	// Set marshals v and persists it in a single write.
	Set(key string, v interface{}) error
}

// PreferenceRepository persists the user's device selections.
type PreferenceRepository interface {
	Get(ctx context.Context) (domain.DevicePreferences, error)
	// Set merges the partial update into the stored preferences and persists
	// the result atomically.
	Set(ctx context.Context, update domain.PreferenceUpdate) (domain.DevicePreferences, error)
}

// SettingsRepository persists screen-share and picture-in-picture settings.
type SettingsRepository interface {
	ScreenShare(ctx context.Context) (domain.ScreenShareSettings, error)
	SetScreenShare(ctx context.Context, update domain.ScreenShareUpdate) (domain.ScreenShareSettings, error)
	PipLayout(ctx context.Context) (domain.PipLayoutSettings, error)
	SetPipLayout(ctx context.Context, layout domain.PipLayoutSettings) error
}
