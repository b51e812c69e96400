package state

import (
	"sync"

	"harmony/internal/core/domain"

	"go.uber.org/zap"
)

// Store holds the VoiceState and serializes all mutations through Dispatch.
// Consumers either poll Snapshot or register a Subscribe callback; both see
// value copies, never shared references.
type Store struct {
	mu      sync.RWMutex
	state   domain.VoiceState
	subs    map[int]func(domain.VoiceState)
	nextSub int
	logger  *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		state:  domain.VoiceState{},
		subs:   make(map[int]func(domain.VoiceState)),
		logger: logger,
	}
}

// Dispatch runs the reducer and notifies subscribers with the new snapshot.
// Subscribers are invoked synchronously, outside the store lock.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	snapshot := s.state
	subs := make([]func(domain.VoiceState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("voice state transition",
		zap.String("action", a.actionName()),
		zap.Bool("connected", snapshot.IsConnected),
		zap.Bool("connecting", snapshot.IsConnecting),
		zap.String("context", string(snapshot.ContextType)),
	)

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to run after every dispatch. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(domain.VoiceState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
