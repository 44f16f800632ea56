package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v9"
	"github.com/rs/zerolog"
)

// Publisher delivers a payload to a named channel. Delivery is at-most-effort:
// no ordering, no acknowledgement, duplicates and drops possible. Viewers
// reconcile through the pull-based state fetch.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, channel string, payload []byte) error

func (f PublisherFunc) Publish(ctx context.Context, channel string, payload []byte) error {
	return f(ctx, channel, payload)
}

// RedisPublisher publishes over redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Coordinator fans out state snapshots and event notifications to room and
// per-user channels. A failed publish is logged and swallowed: the state
// mutation that triggered it has already committed and must not be undone by
// a flaky broadcast.
type Coordinator struct {
	pub Publisher
	log zerolog.Logger
}

func NewCoordinator(pub Publisher, log zerolog.Logger) *Coordinator {
	return &Coordinator{pub: pub, log: log}
}

// RoomState publishes a viewer-safe snapshot to the room's shared channel.
// Callers are responsible for redacting the secret word before handing the
// snapshot over; the current drawer re-fetches a personalized state instead.
func (c *Coordinator) RoomState(ctx context.Context, scope, roomID string, state any) {
	c.send(ctx, RoomChannel(scope, roomID), Message{Type: TypeRoomState, Data: state})
}

// Event publishes a lightweight notification to the room's shared channel.
func (c *Coordinator) Event(ctx context.Context, scope, roomID, kind string, data any) {
	c.send(ctx, RoomChannel(scope, roomID), Message{Type: kind, Data: data})
}

// MatchFound notifies one user's personal channel that the scheduler placed
// them in a room, so a queued client can transition without polling.
func (c *Coordinator) MatchFound(ctx context.Context, scope, userID, roomID string) {
	c.send(ctx, UserChannel(scope, userID), Message{Type: TypeMatchFound, Data: MatchFoundData{RoomID: roomID}})
}

func (c *Coordinator) send(ctx context.Context, channel string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("channel", channel).Str("kind", msg.Type).Msg("encode broadcast")
		return
	}
	if err := c.pub.Publish(ctx, channel, payload); err != nil {
		c.log.Warn().Err(err).Str("channel", channel).Str("kind", msg.Type).Msg("publish failed")
	}
}
