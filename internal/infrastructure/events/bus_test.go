package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"harmony/internal/core/domain"
	"harmony/internal/core/state"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureHook records PUBLISH commands without touching a real redis server.
type captureHook struct {
	mu   sync.Mutex
	cmds []redis.Cmder
}

func (h *captureHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *captureHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		h.cmds = append(h.cmds, cmd)
		h.mu.Unlock()
		return nil
	}
}

func (h *captureHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *captureHook) events(t *testing.T) []Event {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.cmds))
	for _, cmd := range h.cmds {
		args := cmd.Args()
		require.Len(t, args, 3)
		payload, ok := args[2].([]byte)
		require.True(t, ok)

		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		out = append(out, ev)
	}
	return out
}

func newTestBus() (*Bus, *captureHook) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	hook := &captureHook{}
	client.AddHook(hook)
	return NewBus(client, "instance-a", zap.NewNop()), hook
}

func TestBus_PublishStateChange(t *testing.T) {
	t.Run("connecting then connected then disconnected", func(t *testing.T) {
		bus, hook := newTestBus()
		ctx := context.Background()

		idle := domain.VoiceState{}
		connecting := domain.VoiceState{IsConnecting: true}
		connected := domain.VoiceState{
			IsConnected:      true,
			ContextType:      domain.ContextChannel,
			CurrentChannelID: "chan-42",
		}

		bus.PublishStateChange(ctx, idle, connecting)
		bus.PublishStateChange(ctx, connecting, connected)
		bus.PublishStateChange(ctx, connected, idle)

		got := hook.events(t)
		require.Len(t, got, 3)
		assert.Equal(t, EventVoiceConnecting, got[0].Type)
		assert.Equal(t, EventVoiceConnected, got[1].Type)
		assert.Equal(t, "chan-42", got[1].RoomID)
		assert.Equal(t, EventVoiceDisconnected, got[2].Type)
		assert.Equal(t, "chan-42", got[2].RoomID)
	})

	t.Run("deafen flips publish alongside lifecycle", func(t *testing.T) {
		bus, hook := newTestBus()

		connected := domain.VoiceState{IsConnected: true, ContextType: domain.ContextDM, CurrentDMGroupID: "dm-1"}
		deafened := connected
		deafened.IsDeafened = true

		bus.PublishStateChange(context.Background(), connected, deafened)

		got := hook.events(t)
		require.Len(t, got, 1)
		assert.Equal(t, EventDeafenChanged, got[0].Type)
		assert.True(t, got[0].Deafened)
	})

	t.Run("connection errors publish once per distinct message", func(t *testing.T) {
		bus, hook := newTestBus()

		failed := domain.VoiceState{ConnectionError: "dial timeout"}
		bus.PublishStateChange(context.Background(), domain.VoiceState{}, failed)
		bus.PublishStateChange(context.Background(), failed, failed)

		got := hook.events(t)
		require.Len(t, got, 1)
		assert.Equal(t, EventVoiceError, got[0].Type)
		assert.Equal(t, "dial timeout", got[0].Error)
	})
}

func TestBus_StateSubscriber(t *testing.T) {
	t.Run("tracks consecutive snapshots", func(t *testing.T) {
		bus, hook := newTestBus()
		store := state.NewStore(zap.NewNop())
		store.Subscribe(bus.StateSubscriber(store.Snapshot()))

		store.Dispatch(state.SetConnecting{Value: true})
		store.Dispatch(state.SetConnectionError{Message: "token rejected"})

		got := hook.events(t)
		require.Len(t, got, 2)
		assert.Equal(t, EventVoiceConnecting, got[0].Type)
		assert.Equal(t, EventVoiceError, got[1].Type)
	})

	t.Run("concurrent dispatches publish one event each", func(t *testing.T) {
		bus, hook := newTestBus()
		store := state.NewStore(zap.NewNop())
		store.Subscribe(bus.StateSubscriber(store.Snapshot()))

		const workers = 4
		const perWorker = 25

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					store.Dispatch(state.SetConnectionError{
						Message: fmt.Sprintf("failure %d-%d", w, i),
					})
				}
			}(w)
		}
		wg.Wait()

		// Every dispatch carries a distinct error message, so a correctly
		// serialized subscriber sees a change on every notification.
		got := hook.events(t)
		require.Len(t, got, workers*perWorker)
		for _, ev := range got {
			assert.Equal(t, EventVoiceError, ev.Type)
		}
	})
}
