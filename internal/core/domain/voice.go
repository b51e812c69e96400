package domain

import (
	"time"
)

type ChannelID string
type DMGroupID string
type CommunityID string
type UserID string

// ContextType identifies which kind of target the client is connected to.
type ContextType string

const (
	ContextNone    ContextType = ""
	ContextChannel ContextType = "channel"
	ContextDM      ContextType = "dm"
)

// ChannelInfo describes a community voice channel join target.
type ChannelInfo struct {
	ID          ChannelID
	Name        string
	CommunityID CommunityID
	IsPrivate   bool
	CreatedAt   time.Time
}

// DMInfo describes a direct-message group join target.
type DMInfo struct {
	GroupID DMGroupID
	Name    string
}

// UserInfo identifies the local participant for token and presence purposes.
type UserInfo struct {
	ID          UserID
	DisplayName string
}

// ConnectionInfo carries the media server coordinates for a join.
type ConnectionInfo struct {
	ServerURL string
}

// VoiceState is the single source of truth for voice UI rendering.
// It is only ever replaced as a whole through reducer dispatch.
type VoiceState struct {
	IsConnected     bool
	IsConnecting    bool
	ConnectionError string

	ContextType ContextType

	// Populated only when ContextType == ContextChannel.
	CurrentChannelID ChannelID
	ChannelName      string
	CommunityID      CommunityID
	IsPrivate        bool
	CreatedAt        time.Time

	// Populated only when ContextType == ContextDM.
	CurrentDMGroupID DMGroupID
	DMGroupName      string

	IsDeafened     bool
	ShowVideoTiles bool

	SelectedAudioInputID  string
	SelectedAudioOutputID string
	SelectedVideoInputID  string
}

// RoomID returns the identifier of the current join target, or "".
func (s VoiceState) RoomID() string {
	switch s.ContextType {
	case ContextChannel:
		return string(s.CurrentChannelID)
	case ContextDM:
		return string(s.CurrentDMGroupID)
	}
	return ""
}

// HasTarget reports whether either a channel or a DM group is set.
func (s VoiceState) HasTarget() bool {
	return s.CurrentChannelID != "" || s.CurrentDMGroupID != ""
}

// Participant is a remote member of the current session as reported by
// the media server.
type Participant struct {
	Identity UserID
	Name     string
	Tracks   []TrackInfo
}

// TrackInfo describes a published media track.
type TrackInfo struct {
	SID   string
	Kind  TrackKind
	Muted bool
}

type TrackKind string

const (
	TrackAudio  TrackKind = "audio"
	TrackVideo  TrackKind = "video"
	TrackScreen TrackKind = "screen"
)
