package storage

import (
	"context"

	"harmony/internal/core/domain"
	"harmony/internal/core/ports"
)

const (
	screenShareKey = "screen_share_settings"
	pipLayoutKey   = "pip_layout"
)

// SettingsStore persists screen-share and picture-in-picture settings in
// the KV store. Unlike device preferences these are read rarely (at
// share-start and overlay placement), so there is no caching.
type SettingsStore struct {
	kv ports.KV
}

func NewSettingsStore(kv ports.KV) *SettingsStore {
	return &SettingsStore{kv: kv}
}

func (s *SettingsStore) ScreenShare(ctx context.Context) (domain.ScreenShareSettings, error) {
	settings := domain.DefaultScreenShareSettings()
	found, err := s.kv.Get(screenShareKey, &settings)
	if err != nil {
		return domain.ScreenShareSettings{}, err
	}
	if !found {
		return domain.DefaultScreenShareSettings(), nil
	}
	return settings, nil
}

func (s *SettingsStore) SetScreenShare(ctx context.Context, update domain.ScreenShareUpdate) (domain.ScreenShareSettings, error) {
	current, err := s.ScreenShare(ctx)
	if err != nil {
		return domain.ScreenShareSettings{}, err
	}
	merged := current.Merge(update)
	if err := s.kv.Set(screenShareKey, merged); err != nil {
		return domain.ScreenShareSettings{}, err
	}
	return merged, nil
}

func (s *SettingsStore) PipLayout(ctx context.Context) (domain.PipLayoutSettings, error) {
	layout := domain.DefaultPipLayoutSettings()
	found, err := s.kv.Get(pipLayoutKey, &layout)
	if err != nil {
		return domain.PipLayoutSettings{}, err
	}
	if !found {
		return domain.DefaultPipLayoutSettings(), nil
	}
	return layout, nil
}

func (s *SettingsStore) SetPipLayout(ctx context.Context, layout domain.PipLayoutSettings) error {
	return s.kv.Set(pipLayoutKey, layout)
}
