package services

import (
	"context"
	"fmt"
	"time"

	"harmony/internal/core/domain"
	"harmony/internal/core/ports"
	"harmony/pkg/cache"

	"go.uber.org/zap"
)

const deviceCacheKey = "media_devices"

// DeviceService lists host media devices for device-test dialogs. Host
// enumeration is slow, so results are cached briefly.
type DeviceService struct {
	enum   ports.DeviceEnumerator
	cache  *cache.Cache
	logger *zap.Logger
}

func NewDeviceService(enum ports.DeviceEnumerator, logger *zap.Logger) *DeviceService {
	return &DeviceService{
		enum:   enum,
		cache:  cache.New(5 * time.Second),
		logger: logger,
	}
}

// List returns all enumerable devices, possibly from cache.
func (s *DeviceService) List(ctx context.Context) ([]domain.MediaDevice, error) {
	if v, ok := s.cache.Get(deviceCacheKey); ok {
		return v.([]domain.MediaDevice), nil
	}

	devices, err := s.enum.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	s.cache.Set(deviceCacheKey, devices)
	s.logger.Debug("enumerated media devices", zap.Int("count", len(devices)))
	return devices, nil
}

// ListByKind filters the device list by kind.
func (s *DeviceService) ListByKind(ctx context.Context, kind domain.DeviceKind) ([]domain.MediaDevice, error) {
	devices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.MediaDevice, 0, len(devices))
	for _, d := range devices {
		if d.Kind == kind {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// Close releases the cache's background resources.
func (s *DeviceService) Close() {
	s.cache.Stop()
}
