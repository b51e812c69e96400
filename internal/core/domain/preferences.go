package domain

// DefaultDevice is the sentinel meaning "let the runtime pick the default
// device" rather than a specific device identifier.
const DefaultDevice = "default"

type DeviceKind string

const (
	DeviceAudioInput  DeviceKind = "audioinput"
	DeviceAudioOutput DeviceKind = "audiooutput"
	DeviceVideoInput  DeviceKind = "videoinput"
)

// DevicePreferences holds the user's chosen device identifiers. Each slot is
// either a concrete device ID or the DefaultDevice sentinel.
type DevicePreferences struct {
	AudioInputDeviceID  string `json:"audioInputDeviceId"`
	AudioOutputDeviceID string `json:"audioOutputDeviceId"`
	VideoInputDeviceID  string `json:"videoInputDeviceId"`
}

// DefaultDevicePreferences is the value used when nothing has been saved.
func DefaultDevicePreferences() DevicePreferences {
	return DevicePreferences{
		AudioInputDeviceID:  DefaultDevice,
		AudioOutputDeviceID: DefaultDevice,
		VideoInputDeviceID:  DefaultDevice,
	}
}

// PreferenceUpdate is a partial update; nil fields are left unchanged.
type PreferenceUpdate struct {
	AudioInputDeviceID  *string
	AudioOutputDeviceID *string
	VideoInputDeviceID  *string
}

// Merge applies the update on top of p and returns the result.
func (p DevicePreferences) Merge(u PreferenceUpdate) DevicePreferences {
	if u.AudioInputDeviceID != nil {
		p.AudioInputDeviceID = *u.AudioInputDeviceID
	}
	if u.AudioOutputDeviceID != nil {
		p.AudioOutputDeviceID = *u.AudioOutputDeviceID
	}
	if u.VideoInputDeviceID != nil {
		p.VideoInputDeviceID = *u.VideoInputDeviceID
	}
	return p
}

// ScreenShareSettings configures how a screen share is published. Stored
// locally, independent of the voice session lifecycle.
type ScreenShareSettings struct {
	Resolution  string `json:"resolution"`
	FPS         int    `json:"fps"`
	EnableAudio bool   `json:"enableAudio"`
}

func DefaultScreenShareSettings() ScreenShareSettings {
	return ScreenShareSettings{
		Resolution:  "1080p",
		FPS:         30,
		EnableAudio: false,
	}
}

// ScreenShareUpdate is a partial update of ScreenShareSettings.
type ScreenShareUpdate struct {
	Resolution  *string
	FPS         *int
	EnableAudio *bool
}

func (s ScreenShareSettings) Merge(u ScreenShareUpdate) ScreenShareSettings {
	if u.Resolution != nil {
		s.Resolution = *u.Resolution
	}
	if u.FPS != nil {
		s.FPS = *u.FPS
	}
	if u.EnableAudio != nil {
		s.EnableAudio = *u.EnableAudio
	}
	return s
}

// PipLayoutSettings remembers where the picture-in-picture overlay was left.
type PipLayoutSettings struct {
	Corner string  `json:"corner"`
	Pinned bool    `json:"pinned"`
	Scale  float64 `json:"scale"`
}

func DefaultPipLayoutSettings() PipLayoutSettings {
	return PipLayoutSettings{Corner: "bottom-right", Pinned: false, Scale: 1.0}
}

// MediaDevice is one enumerable audio/video device on the host.
type MediaDevice struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Kind      DeviceKind `json:"kind"`
	IsDefault bool       `json:"isDefault"`
}
