package state

import (
	"testing"
	"time"

	"harmony/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testChannel() domain.ChannelInfo {
	return domain.ChannelInfo{
		ID:          "chan-1",
		Name:        "general",
		CommunityID: "community-1",
		IsPrivate:   true,
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReduce_Connecting(t *testing.T) {
	s := Reduce(domain.VoiceState{ConnectionError: "boom"}, SetConnecting{Value: true})

	assert.True(t, s.IsConnecting)
	assert.Empty(t, s.ConnectionError, "starting a join clears the previous error")

	s = Reduce(s, SetConnecting{Value: false})
	assert.False(t, s.IsConnecting)
}

func TestReduce_ChannelAndDMAreExclusive(t *testing.T) {
	s := Reduce(domain.VoiceState{IsConnecting: true}, SetConnected{Channel: testChannel()})

	assert.True(t, s.IsConnected)
	assert.False(t, s.IsConnecting)
	assert.Equal(t, domain.ContextChannel, s.ContextType)
	assert.Equal(t, domain.ChannelID("chan-1"), s.CurrentChannelID)
	assert.Equal(t, "general", s.ChannelName)
	assert.Equal(t, domain.CommunityID("community-1"), s.CommunityID)
	assert.True(t, s.IsPrivate)
	assert.Empty(t, s.CurrentDMGroupID)
	assert.Empty(t, s.DMGroupName)

	// Switching to a DM clears every channel field.
	s = Reduce(s, SetDMConnected{DM: domain.DMInfo{GroupID: "dm-9", Name: "late night"}})

	assert.True(t, s.IsConnected)
	assert.Equal(t, domain.ContextDM, s.ContextType)
	assert.Equal(t, domain.DMGroupID("dm-9"), s.CurrentDMGroupID)
	assert.Equal(t, "late night", s.DMGroupName)
	assert.Empty(t, s.CurrentChannelID)
	assert.Empty(t, s.ChannelName)
	assert.Empty(t, s.CommunityID)
	assert.False(t, s.IsPrivate)
	assert.True(t, s.CreatedAt.IsZero())

	// And back again.
	s = Reduce(s, SetConnected{Channel: testChannel()})
	assert.Equal(t, domain.ContextChannel, s.ContextType)
	assert.Empty(t, s.CurrentDMGroupID)
	assert.Empty(t, s.DMGroupName)
}

func TestReduce_DisconnectedPreservesVideoTiles(t *testing.T) {
	s := Reduce(domain.VoiceState{}, SetConnected{Channel: testChannel()})
	s = Reduce(s, SetDeafened{Deafened: true})
	s = Reduce(s, SetShowVideoTiles{Visible: true})
	s = Reduce(s, SetAudioInputDevice{DeviceID: "mic-1"})

	s = Reduce(s, SetDisconnected{})

	assert.False(t, s.IsConnected)
	assert.False(t, s.IsDeafened)
	assert.Equal(t, domain.ContextNone, s.ContextType)
	assert.Empty(t, s.CurrentChannelID)
	assert.Empty(t, s.SelectedAudioInputID)
	assert.True(t, s.ShowVideoTiles, "tile visibility survives disconnect")
}

func TestReduce_ConnectionErrorKeepsConnectedFlag(t *testing.T) {
	s := Reduce(domain.VoiceState{}, SetConnected{Channel: testChannel()})
	s = Reduce(s, SetConnecting{Value: true})
	s = Reduce(s, SetConnectionError{Message: "token rejected"})

	assert.False(t, s.IsConnecting)
	assert.Equal(t, "token rejected", s.ConnectionError)
	assert.True(t, s.IsConnected, "error reporting must not tear down an active session")
}

func TestReduce_DeviceSelections(t *testing.T) {
	s := Reduce(domain.VoiceState{}, SetAudioInputDevice{DeviceID: "mic-2"})
	s = Reduce(s, SetAudioOutputDevice{DeviceID: "speakers-1"})
	s = Reduce(s, SetVideoInputDevice{DeviceID: "cam-3"})

	assert.Equal(t, "mic-2", s.SelectedAudioInputID)
	assert.Equal(t, "speakers-1", s.SelectedAudioOutputID)
	assert.Equal(t, "cam-3", s.SelectedVideoInputID)
}

func TestReduce_IsPure(t *testing.T) {
	before := domain.VoiceState{ChannelName: "original"}
	_ = Reduce(before, SetConnected{Channel: testChannel()})

	assert.Equal(t, "original", before.ChannelName)
}

func TestStore_DispatchNotifiesSubscribers(t *testing.T) {
	store := NewStore(zap.NewNop())

	var seen []domain.VoiceState
	unsubscribe := store.Subscribe(func(s domain.VoiceState) {
		seen = append(seen, s)
	})

	store.Dispatch(SetConnecting{Value: true})
	store.Dispatch(SetConnected{Channel: testChannel()})

	assert.Len(t, seen, 2)
	assert.True(t, seen[0].IsConnecting)
	assert.True(t, seen[1].IsConnected)
	assert.Equal(t, store.Snapshot(), seen[1])

	unsubscribe()
	store.Dispatch(SetDisconnected{})
	assert.Len(t, seen, 2, "no notifications after unsubscribe")
}

func TestStore_SnapshotIsInitiallyZero(t *testing.T) {
	store := NewStore(zap.NewNop())

	s := store.Snapshot()
	assert.False(t, s.IsConnected)
	assert.False(t, s.IsConnecting)
	assert.Equal(t, domain.ContextNone, s.ContextType)
	assert.False(t, s.HasTarget())
	assert.Empty(t, s.RoomID())
}
