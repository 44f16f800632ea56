package broadcast

import (
	"context"

	"github.com/go-redis/redis/v9"
)

// Subscriber is the receiving half of the pub/sub transport. A subscription
// delivers payloads best-effort: a slow consumer loses messages rather than
// blocking the pump.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

type Subscription interface {
	// Messages yields raw payloads until the subscription closes.
	Messages() <-chan []byte
	Close() error
}

// RedisSubscriber subscribes over redis pub/sub.
type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channels...)
	// Force the SUBSCRIBE round trip so a dead broker fails here, not on
	// the first read.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub:   pubsub,
		messages: make(chan []byte, 64),
	}
	go sub.pump(ctx)
	return sub, nil
}

type redisSubscription struct {
	pubsub   *redis.PubSub
	messages chan []byte
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.messages)
	in := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.messages <- []byte(msg.Payload):
			default:
				// Consumer fell behind; drop. Clients reconcile via the
				// state fetch.
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
