package services

import (
	"sync"

	"harmony/internal/core/ports"
)

// RoomRef is a shared mutable cell holding the current RoomSession, or nil
// when no session is live. Callbacks registered before a reconnect must read
// through Get so they always observe the latest handle instead of a stale
// capture. Exactly one handle is live at a time; the join precondition in
// VoiceService prevents a second.
type RoomRef struct {
	mu   sync.RWMutex
	room ports.RoomSession
}

func NewRoomRef() *RoomRef {
	return &RoomRef{}
}

// Get returns the current session handle, or nil.
func (r *RoomRef) Get() ports.RoomSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room
}

// Set replaces the handle. Pass nil on leave or join failure.
func (r *RoomRef) Set(room ports.RoomSession) {
	r.mu.Lock()
	r.room = room
	r.mu.Unlock()
}
