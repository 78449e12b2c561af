package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenRevoker(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTokenRevoker()

	require.NoError(t, r.Revoke(ctx, "a", time.Minute))
	require.NoError(t, r.Revoke(ctx, "b", 0))
	require.NoError(t, r.Revoke(ctx, "c", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	revoked, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "b")
	require.NoError(t, err)
	assert.False(t, revoked, "non-positive ttl is a no-op")

	revoked, err = r.IsRevoked(ctx, "c")
	require.NoError(t, err)
	assert.False(t, revoked, "entry must lapse after its ttl")
}

func TestMemoryTokenRevoker_RevokeDropsLapsedIDs(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTokenRevoker()

	for i := range 50 {
		require.NoError(t, r.Revoke(ctx, fmt.Sprintf("old-%d", i), time.Millisecond))
	}
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.Revoke(ctx, "fresh", time.Minute))

	r.mu.Lock()
	held := len(r.tokens)
	r.mu.Unlock()
	assert.Equal(t, 1, held)

	revoked, err := r.IsRevoked(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRedisTokenRevoker(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	r := NewRedisTokenRevoker(srv.Addr(), "")
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Ping(ctx))
	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, srv.Exists("lms:revoked:jti-1"))

	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	srv.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisTokenRevoker_Unavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	r := NewRedisTokenRevoker(srv.Addr(), "")
	t.Cleanup(func() { _ = r.Close() })
	srv.Close()

	_, err := r.IsRevoked(context.Background(), "jti-1")
	assert.Error(t, err)
}

func TestManager_WithRedisRevoker(t *testing.T) {
	srv := miniredis.RunT(t)
	r := NewRedisTokenRevoker(srv.Addr(), "")
	t.Cleanup(func() { _ = r.Close() })
	m := NewManager("test-secret", time.Hour, r)

	token, err := m.Issue("user-9", "user")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(context.Background(), token))

	_, err = m.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
