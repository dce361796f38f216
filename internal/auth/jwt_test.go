package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningready/morningready/internal/auth"
	"github.com/morningready/morningready/internal/config"
)

func newService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", "morningready", "morningready-api")

	token, expiresAt, err := svc.GenerateAccessToken("usr_test123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_test123", claims.UserID)
	assert.Equal(t, "usr_test123", claims.Subject)
	assert.Equal(t, "morningready", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	userID, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_test123", userID)
}

func TestJWTService_EmptyUserID(t *testing.T) {
	svc := newService("k", "i", "a")

	_, _, err := svc.GenerateAccessToken("")
	assert.ErrorIs(t, err, auth.ErrEmptyUserID)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", "morningready", "morningready-api")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	issued := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	current := issued

	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "morningready",
		Audience:   "morningready-api",
		TTL:        15 * time.Minute,
		Now:        func() time.Time { return current },
	})

	token, expiresAt, err := svc.GenerateAccessToken("usr_1")
	require.NoError(t, err)
	assert.Equal(t, issued.Add(15*time.Minute), expiresAt)

	current = issued.Add(10 * time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.NoError(t, err)

	current = issued.Add(20 * time.Minute)
	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_Mismatches(t *testing.T) {
	token, _, err := newService("key-one", "morningready", "morningready-api").GenerateAccessToken("usr_test123")
	require.NoError(t, err)

	tests := []struct {
		name string
		svc  *auth.JWTService
	}{
		{"wrong signing key", newService("key-two", "morningready", "morningready-api")},
		{"wrong issuer", newService("key-one", "someone-else", "morningready-api")},
		{"wrong audience", newService("key-one", "morningready", "another-api")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateAccessToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := auth.FromConfig(config.JWT{
		SigningKey: "secret",
		Issuer:     "iss",
		Audience:   "aud",
		TTL:        2 * time.Hour,
	})

	assert.Equal(t, "secret", cfg.SigningKey)
	assert.Equal(t, "iss", cfg.Issuer)
	assert.Equal(t, "aud", cfg.Audience)
	assert.Equal(t, 2*time.Hour, cfg.TTL)
}
