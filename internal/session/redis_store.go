// Package session provides session storage backends for refresh tokens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civicvoice/internal/store"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps refresh sessions as JSON under "refresh:<token hash>" with
// a TTL matching the session expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "refresh:",
	}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, session store.RefreshSession, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("refresh session already expired")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal refresh session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshSession reads and deletes the session in one GETDEL, so a
// token is handed out at most once. Unknown, expired or already consumed
// tokens return store.ErrNotFound.
func (s *RedisStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (store.RefreshSession, error) {
	payload, err := s.client.GetDel(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.RefreshSession{}, store.ErrNotFound
	}
	if err != nil {
		return store.RefreshSession{}, fmt.Errorf("consume refresh token: %w", err)
	}

	var session store.RefreshSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return store.RefreshSession{}, fmt.Errorf("unmarshal refresh session: %w", err)
	}
	if session.PrincipalID == "" {
		return store.RefreshSession{}, store.ErrNotFound
	}
	return session, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
