package sessredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mydiscovery/service"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "session"

// Store is a Redis-backed session store scoped to one user-agent
// session (key: session:{sessionID}:{key}, value: JSON). Values come
// back as generically decoded JSON, not as the rich Go types that were
// written; consumers tolerate the plain-record shape.
type Store struct {
	client    redis.UniversalClient
	sessionID string
	ttl       time.Duration
}

// New creates a session store for the given user-agent session ID.
// Every write refreshes the TTL, so the session expires ttl after its
// last activity.
func New(client redis.UniversalClient, sessionID string, ttl time.Duration) *Store {
	return &Store{
		client:    client,
		sessionID: sessionID,
		ttl:       ttl,
	}
}

func (s *Store) Get(ctx context.Context, key string) (any, error) {
	data, err := s.client.Get(ctx, s.generateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, service.NewEntityNotFoundError("session key not found", err)
		}
		return nil, service.NewInternalServerError("Redis read key error",
			fmt.Errorf("can't read session value (key='%s'), err: %w", key, err))
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, service.NewInternalServerError("Redis unmarshal value error",
			fmt.Errorf("can't unmarshal session value (key='%s'), err: %w", key, err))
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return service.NewInternalServerError("Redis marshal value error",
			fmt.Errorf("can't marshal session value of type %T, err: %w", value, err))
	}

	err = s.client.Set(ctx, s.generateKey(key), data, s.ttl).Err()
	if err != nil {
		return service.NewInternalServerError("Redis write key error",
			fmt.Errorf("can't write session value (key='%s'), err: %w", key, err))
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.generateKey(key)).Err()
	if err != nil {
		return service.NewInternalServerError("Redis delete key error",
			fmt.Errorf("can't delete session value (key='%s'), err: %w", key, err))
	}
	return nil
}

func (s *Store) generateKey(key string) string {
	return keyPrefix + ":" + s.sessionID + ":" + key
}
