package state

import (
	"time"

	"harmony/internal/core/domain"
)

// Action is a voice state transition. The set of actions is closed: only
// types in this package satisfy it.
type Action interface {
	actionName() string
}

// SetConnecting marks a join attempt as in flight and clears any previous
// connection error.
type SetConnecting struct {
	Value bool
}

// SetConnected records a successful channel join. Any DM fields are cleared.
type SetConnected struct {
	Channel domain.ChannelInfo
}

// SetDMConnected records a successful DM join. Any channel fields are cleared.
type SetDMConnected struct {
	DM domain.DMInfo
}

// SetDisconnected resets to the initial state, preserving only the
// video-tile visibility flag.
type SetDisconnected struct{}

// SetConnectionError records a failed join attempt. It does not clear
// IsConnected: the error belongs to join attempts, not active sessions.
type SetConnectionError struct {
	Message string
}

type SetDeafened struct {
	Deafened bool
}

type SetShowVideoTiles struct {
	Visible bool
}

type SetAudioInputDevice struct {
	DeviceID string
}

type SetAudioOutputDevice struct {
	DeviceID string
}

type SetVideoInputDevice struct {
	DeviceID string
}

func (SetConnecting) actionName() string        { return "set_connecting" }
func (SetConnected) actionName() string         { return "set_connected" }
func (SetDMConnected) actionName() string       { return "set_dm_connected" }
func (SetDisconnected) actionName() string      { return "set_disconnected" }
func (SetConnectionError) actionName() string   { return "set_connection_error" }
func (SetDeafened) actionName() string          { return "set_deafened" }
func (SetShowVideoTiles) actionName() string    { return "set_show_video_tiles" }
func (SetAudioInputDevice) actionName() string  { return "set_audio_input_device" }
func (SetAudioOutputDevice) actionName() string { return "set_audio_output_device" }
func (SetVideoInputDevice) actionName() string  { return "set_video_input_device" }

// Reduce applies a single action to a state and returns the next state.
// It is pure: the input state is never mutated.
func Reduce(s domain.VoiceState, a Action) domain.VoiceState {
	switch act := a.(type) {
	case SetConnecting:
		s.IsConnecting = act.Value
		if act.Value {
			s.ConnectionError = ""
		}

	case SetConnected:
		s.IsConnected = true
		s.IsConnecting = false
		s.ContextType = domain.ContextChannel
		s.CurrentChannelID = act.Channel.ID
		s.ChannelName = act.Channel.Name
		s.CommunityID = act.Channel.CommunityID
		s.IsPrivate = act.Channel.IsPrivate
		s.CreatedAt = act.Channel.CreatedAt
		s.CurrentDMGroupID = ""
		s.DMGroupName = ""

	case SetDMConnected:
		s.IsConnected = true
		s.IsConnecting = false
		s.ContextType = domain.ContextDM
		s.CurrentDMGroupID = act.DM.GroupID
		s.DMGroupName = act.DM.Name
		s.CurrentChannelID = ""
		s.ChannelName = ""
		s.CommunityID = ""
		s.IsPrivate = false
		s.CreatedAt = time.Time{}

	case SetDisconnected:
		next := domain.VoiceState{}
		next.ShowVideoTiles = s.ShowVideoTiles
		return next

	case SetConnectionError:
		s.IsConnecting = false
		s.ConnectionError = act.Message

	case SetDeafened:
		s.IsDeafened = act.Deafened

	case SetShowVideoTiles:
		s.ShowVideoTiles = act.Visible

	case SetAudioInputDevice:
		s.SelectedAudioInputID = act.DeviceID

	case SetAudioOutputDevice:
		s.SelectedAudioOutputID = act.DeviceID

	case SetVideoInputDevice:
		s.SelectedVideoInputID = act.DeviceID
	}

	return s
}
