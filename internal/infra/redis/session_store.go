package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis implementation of app.SessionRepository. Each
// session is one hash whose expiry is refreshed on every write:
//
//	HSET session:{sessionID} {key} {value}
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	value, err := s.client.HGet(ctx, s.key(sessionID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *SessionStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(sessionID), key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sessionID), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Delete(ctx context.Context, sessionID, key string) error {
	return s.client.HDel(ctx, s.key(sessionID), key).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "session:" + sessionID
}
