package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"civicvoice/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisStore.Close() })
	return redisStore, s
}

func TestNewRedisStore(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	assert.NoError(t, redisStore.Ping(context.Background()))
}

func TestNewRedisStoreFailsWhenUnreachable(t *testing.T) {
	_, err := NewRedisStore("redis://127.0.0.1:1/0")
	assert.Error(t, err)
}

func TestSaveAndConsumeRefreshSession(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	ctx := context.Background()

	err := redisStore.SaveRefreshSession(ctx, "hash-1", store.RefreshSession{
		PrincipalID: "guest_1",
		DisplayName: "Guest",
		Anonymous:   true,
	}, time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	session, err := redisStore.ConsumeRefreshSession(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "guest_1", session.PrincipalID)
	assert.Equal(t, "Guest", session.DisplayName)
	assert.True(t, session.Anonymous)
	assert.False(t, session.CreatedAt.IsZero(), "CreatedAt is stamped on save")

	_, err = redisStore.ConsumeRefreshSession(ctx, "hash-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "a session is consumed once")
}

func TestConsumeIsSingleUseUnderConcurrency(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, redisStore.SaveRefreshSession(ctx, "shared", store.RefreshSession{PrincipalID: "usr_1"}, time.Now().Add(time.Hour)))

	const callers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		start = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := redisStore.ConsumeRefreshSession(ctx, "shared"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestConsumeExpiredSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, redisStore.SaveRefreshSession(ctx, "expiring", store.RefreshSession{PrincipalID: "usr_1"}, time.Now().Add(time.Minute)))
	s.FastForward(2 * time.Minute)

	_, err := redisStore.ConsumeRefreshSession(ctx, "expiring")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	err := redisStore.SaveRefreshSession(context.Background(), "old", store.RefreshSession{PrincipalID: "usr_1"}, time.Now().Add(-time.Second))
	assert.Error(t, err)
}

func TestConsumeNonExistentSession(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	_, err := redisStore.ConsumeRefreshSession(context.Background(), "non-existent-token")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeRefreshSession(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, redisStore.SaveRefreshSession(ctx, "token-to-revoke", store.RefreshSession{PrincipalID: "usr_7"}, time.Now().Add(time.Hour)))
	require.NoError(t, redisStore.RevokeRefreshSession(ctx, "token-to-revoke"))

	_, err := redisStore.ConsumeRefreshSession(ctx, "token-to-revoke")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, redisStore.RevokeRefreshSession(ctx, "never-existed"), "revoking an unknown token succeeds")
}

func TestSessionIsolation(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	for _, pair := range [][2]string{{"token-1", "usr_1"}, {"token-2", "usr_2"}} {
		require.NoError(t, redisStore.SaveRefreshSession(ctx, pair[0], store.RefreshSession{PrincipalID: pair[1]}, expiresAt))
	}
	require.NoError(t, redisStore.RevokeRefreshSession(ctx, "token-1"))

	_, err := redisStore.ConsumeRefreshSession(ctx, "token-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	session, err := redisStore.ConsumeRefreshSession(ctx, "token-2")
	require.NoError(t, err)
	assert.Equal(t, "usr_2", session.PrincipalID)
}
