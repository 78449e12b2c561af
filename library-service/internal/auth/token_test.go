package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", time.Hour, NewMemoryTokenRevoker())

	token, err := m.Issue("user-1", "admin")
	require.NoError(t, err)

	claims, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestManager_RejectsBadTokens(t *testing.T) {
	m := NewManager("test-secret", time.Hour, nil)
	other := NewManager("other-secret", time.Hour, nil)

	foreign, err := other.Issue("user-1", "user")
	require.NoError(t, err)

	expiredIssuer := NewManager("test-secret", time.Hour, nil)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredIssuer.Issue("user-1", "user")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "x"},
		UserID:           "user-1",
		Role:             "admin",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "x"},
		Role:             "admin",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"alg none":     unsigned,
		"missing _id":  noSubject,
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestManager_Revoke(t *testing.T) {
	m := NewManager("test-secret", time.Hour, NewMemoryTokenRevoker())

	token, err := m.Issue("user-1", "user")
	require.NoError(t, err)
	other, err := m.Issue("user-1", "user")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), token))

	_, err = m.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = m.Verify(context.Background(), other)
	assert.NoError(t, err)
}

func TestManager_RevokeInvalidToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour, NewMemoryTokenRevoker())
	assert.ErrorIs(t, m.Revoke(context.Background(), "nope"), ErrInvalidToken)
}
