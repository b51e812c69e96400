package redis

import (
	"context"
	"fmt"
	"time"

	"harmony/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

// Tracker keeps voice presence in Redis for self-hosted deployments: a set
// of identities per room plus a per-member hash with the deafen flag. Keys
// expire so crashed clients age out of sidebars.
type Tracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{
		client: client,
		prefix: "harmony:presence:",
		ttl:    ttl,
	}
}

func (t *Tracker) roomKey(roomID string) string {
	return t.prefix + "room:" + roomID
}

func (t *Tracker) memberKey(roomID string, identity domain.UserID) string {
	return fmt.Sprintf("%smember:%s:%s", t.prefix, roomID, identity)
}

func (t *Tracker) Join(ctx context.Context, roomID string, identity domain.UserID) error {
	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, t.roomKey(roomID), string(identity))
	pipe.Expire(ctx, t.roomKey(roomID), t.ttl)
	pipe.HSet(ctx, t.memberKey(roomID, identity), "deafened", "0", "joined_at", time.Now().UnixMilli())
	pipe.Expire(ctx, t.memberKey(roomID, identity), t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence join: %w", err)
	}
	return nil
}

func (t *Tracker) Leave(ctx context.Context, roomID string, identity domain.UserID) error {
	pipe := t.client.TxPipeline()
	pipe.SRem(ctx, t.roomKey(roomID), string(identity))
	pipe.Del(ctx, t.memberKey(roomID, identity))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence leave: %w", err)
	}
	return nil
}

func (t *Tracker) UpdateDeafenState(ctx context.Context, roomID string, identity domain.UserID, deafened bool) error {
	value := "0"
	if deafened {
		value = "1"
	}
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, t.memberKey(roomID, identity), "deafened", value)
	pipe.Expire(ctx, t.memberKey(roomID, identity), t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence deafen update: %w", err)
	}
	return nil
}

// Members returns the identities currently present in a room.
func (t *Tracker) Members(ctx context.Context, roomID string) ([]domain.UserID, error) {
	raw, err := t.client.SMembers(ctx, t.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence members: %w", err)
	}
	members := make([]domain.UserID, 0, len(raw))
	for _, id := range raw {
		members = append(members, domain.UserID(id))
	}
	return members, nil
}

// Refresh extends the TTL of a member's presence; called from the heartbeat.
func (t *Tracker) Refresh(ctx context.Context, roomID string, identity domain.UserID) error {
	pipe := t.client.TxPipeline()
	pipe.Expire(ctx, t.roomKey(roomID), t.ttl)
	pipe.Expire(ctx, t.memberKey(roomID, identity), t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence refresh: %w", err)
	}
	return nil
}
