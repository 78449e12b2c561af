package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
	Role   string `json:"role"`
}

// Manager issues and verifies HS256 access tokens. Every token carries an
// id and an expiry so it can be revoked before it runs out.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker
	now     func() time.Time
}

func NewManager(secret string, ttl time.Duration, revoker TokenRevoker) *Manager {
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}
}

func (m *Manager) Issue(uid, role string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID: uid,
		Role:   role,
	})
	tokenStr, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenStr, nil
}

// Verify checks signature, expiry and revocation. Revoker failures are not
// ErrInvalidToken so callers can tell them from a bad token.
func (m *Manager) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke blocks the token until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return err
	}
	if m.revoker == nil || claims.ExpiresAt == nil {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(m.now()))
}

func (m *Manager) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
