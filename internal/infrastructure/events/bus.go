package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"harmony/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType identifies a voice lifecycle event on the bus.
type EventType string

const (
	EventVoiceConnected    EventType = "voice.connected"
	EventVoiceDisconnected EventType = "voice.disconnected"
	EventVoiceConnecting   EventType = "voice.connecting"
	EventVoiceError        EventType = "voice.error"
	EventDeafenChanged     EventType = "voice.deafen_changed"
)

const channel = "harmony:events"

// Event is one voice lifecycle notification. Companion processes (the
// desktop overlay, notification daemons) subscribe to react to session
// changes without polling the HTTP API.
type Event struct {
	Type       EventType          `json:"type"`
	InstanceID string             `json:"instance_id"`
	Timestamp  time.Time          `json:"timestamp"`
	RoomID     string             `json:"room_id,omitempty"`
	Context    domain.ContextType `json:"context,omitempty"`
	Deafened   bool               `json:"deafened,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Bus publishes voice lifecycle events over redis pub/sub.
type Bus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.Logger
	pubsub     *redis.PubSub
}

func NewBus(client *redis.Client, instanceID string, logger *zap.Logger) *Bus {
	return &Bus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Publish sends the event to all subscribers. Delivery is best-effort.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	event.InstanceID = b.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	b.logger.Debug("published voice event",
		zap.String("type", string(event.Type)),
		zap.String("room_id", event.RoomID),
	)
	return nil
}

// PublishStateChange derives bus events from consecutive state snapshots
// and publishes them. Intended as a state store subscriber.
func (b *Bus) PublishStateChange(ctx context.Context, prev, next domain.VoiceState) {
	var events []Event

	switch {
	case !prev.IsConnected && next.IsConnected:
		events = append(events, Event{
			Type:    EventVoiceConnected,
			RoomID:  next.RoomID(),
			Context: next.ContextType,
		})
	case prev.IsConnected && !next.IsConnected:
		events = append(events, Event{
			Type:    EventVoiceDisconnected,
			RoomID:  prev.RoomID(),
			Context: prev.ContextType,
		})
	case !prev.IsConnecting && next.IsConnecting:
		events = append(events, Event{Type: EventVoiceConnecting})
	}

	if prev.IsDeafened != next.IsDeafened {
		events = append(events, Event{
			Type:     EventDeafenChanged,
			RoomID:   next.RoomID(),
			Context:  next.ContextType,
			Deafened: next.IsDeafened,
		})
	}
	if next.ConnectionError != "" && prev.ConnectionError != next.ConnectionError {
		events = append(events, Event{Type: EventVoiceError, Error: next.ConnectionError})
	}

	for _, ev := range events {
		if err := b.Publish(ctx, ev); err != nil {
			b.logger.Warn("voice event not published", zap.Error(err))
		}
	}
}

// StateSubscriber returns a state store subscriber that publishes the diff
// between consecutive snapshots. The store notifies subscribers outside its
// own lock, so the previous snapshot is tracked under one here to keep the
// prev/next pairs consistent when dispatches overlap.
func (b *Bus) StateSubscriber(initial domain.VoiceState) func(domain.VoiceState) {
	var mu sync.Mutex
	prev := initial
	return func(next domain.VoiceState) {
		mu.Lock()
		defer mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.PublishStateChange(ctx, prev, next)
		prev = next
	}
}

// Subscribe delivers bus events from other instances to handler until ctx
// is cancelled.
func (b *Bus) Subscribe(ctx context.Context, handler func(Event)) error {
	if b.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	b.pubsub = b.client.Subscribe(ctx, channel)
	defer b.pubsub.Close()

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("malformed bus event", zap.Error(err))
				continue
			}
			if event.InstanceID == b.instanceID {
				continue
			}
			handler(event)
		}
	}
}

// Close stops an active subscription.
func (b *Bus) Close() error {
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
