package devices

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"harmony/internal/core/domain"

	malgo "github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Enumerator lists audio devices through the host audio backend. Video
// devices are reported by the media session itself, so only capture and
// playback devices come from here.
type Enumerator struct {
	logger *zap.Logger
}

func NewEnumerator(logger *zap.Logger) *Enumerator {
	return &Enumerator{logger: logger}
}

func (e *Enumerator) List(ctx context.Context) ([]domain.MediaDevice, error) {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		e.logger.Debug("malgo", zap.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mCtx.Uninit()
		mCtx.Free()
	}()

	var devices []domain.MediaDevice

	capture, err := mCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	for _, info := range capture {
		devices = append(devices, toMediaDevice(info, domain.DeviceAudioInput))
	}

	playback, err := mCtx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate playback devices: %w", err)
	}
	for _, info := range playback {
		devices = append(devices, toMediaDevice(info, domain.DeviceAudioOutput))
	}

	return devices, nil
}

func toMediaDevice(info malgo.DeviceInfo, kind domain.DeviceKind) domain.MediaDevice {
	return domain.MediaDevice{
		ID:        deviceID(info),
		Label:     info.Name(),
		Kind:      kind,
		IsDefault: info.IsDefault != 0,
	}
}

// deviceID renders the backend device identifier as a stable hex string.
func deviceID(info malgo.DeviceInfo) string {
	raw := bytes.TrimRight(info.ID[:], "\x00")
	if len(raw) == 0 {
		return domain.DefaultDevice
	}
	return hex.EncodeToString(raw)
}
