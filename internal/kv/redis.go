package kv

import (
	"context"

	"github.com/go-redis/redis/v9"
)

// Redis implements Store over a redis client. Transact maps onto
// WATCH + MULTI/EXEC: the watched key is read under WATCH and the mutation is
// queued into a transactional pipeline, so EXEC fails if any other client
// touched the key in between.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Transact(ctx context.Context, watch string, fn Txn) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, watch).Bytes()
		exists := true
		if err == redis.Nil {
			current, exists = nil, false
		} else if err != nil {
			return err
		}

		mutation, err := fn(current, exists)
		if err != nil {
			return err
		}
		if mutation.IsEmpty() {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, value := range mutation.Put {
				pipe.Set(ctx, key, value, 0)
			}
			if len(mutation.Delete) > 0 {
				pipe.Del(ctx, mutation.Delete...)
			}
			return nil
		})
		return err
	}, watch)

	if err == redis.TxFailedErr {
		return ErrConflict
	}
	return err
}
