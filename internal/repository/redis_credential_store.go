package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisCredentialStore struct {
	client    *redis.Client
	namespace string
	id        string
	logger    *zap.Logger
	listeners listenerSet
}

// NewRedisCredentialStore returns a Redis-backed store. Contexts sharing a
// namespace observe each other's writes through a pub/sub channel.
func NewRedisCredentialStore(client *redis.Client, namespace string, logger *zap.Logger) CredentialStore {
	return &redisCredentialStore{
		client:    client,
		namespace: namespace,
		id:        uuid.NewString(),
		logger:    logger,
	}
}

func (s *redisCredentialStore) key(k string) string {
	return s.namespace + ":" + k
}

func (s *redisCredentialStore) channel() string {
	return s.namespace + ":changes"
}

func (s *redisCredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisCredentialStore) Set(ctx context.Context, key, value string) error {
	payload, err := s.changePayload(Change{Key: key, Value: value, Present: true})
	if err != nil {
		return err
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(key), value, 0)
		pipe.Publish(ctx, s.channel(), payload)
		return nil
	})
	return err
}

func (s *redisCredentialStore) Delete(ctx context.Context, key string) error {
	payload, err := s.changePayload(Change{Key: key})
	if err != nil {
		return err
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(key))
		pipe.Publish(ctx, s.channel(), payload)
		return nil
	})
	return err
}

func (s *redisCredentialStore) Take(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	payload, err := s.changePayload(Change{Key: key})
	if err == nil {
		err = s.client.Publish(ctx, s.channel(), payload).Err()
	}
	if err != nil {
		s.logger.Warn("publish take notification", zap.String("key", key), zap.Error(err))
	}
	return val, true, nil
}

func (s *redisCredentialStore) OnExternalChange(fn ChangeListener) func() {
	return s.listeners.add(fn)
}

// Watch subscribes to the namespace channel and dispatches changes made by
// other contexts until ctx is done.
func (s *redisCredentialStore) Watch(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel())
	defer sub.Close() //nolint:errcheck

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			s.dispatch(ctx, msg.Payload)
		}
	}
}

func (s *redisCredentialStore) Origin() string {
	return s.id
}

func (s *redisCredentialStore) dispatch(ctx context.Context, payload string) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		s.logger.Warn("discarding malformed change notification", zap.Error(err))
		return
	}
	if change.Origin == s.id {
		return
	}
	s.listeners.notify(ctx, change)
}

func (s *redisCredentialStore) changePayload(change Change) (string, error) {
	change.Origin = s.id
	raw, err := json.Marshal(change)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
