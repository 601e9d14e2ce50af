package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestLocalVerifier(t *testing.T) *LocalVerifier {
	t.Helper()
	v, err := NewLocalVerifier(testSecret)
	require.NoError(t, err)
	return v
}

func strPtr(s string) *string { return &s }

func TestNewLocalVerifier_ShortSecret(t *testing.T) {
	_, err := NewLocalVerifier("short")
	assert.Error(t, err)
}

func TestLocalVerifier_RoundTrip(t *testing.T) {
	v := newTestLocalVerifier(t)

	token, err := v.Issue(VerifiedClaims{
		Subject:  "user-123",
		Email:    strPtr("a@example.com"),
		Name:     strPtr("Alice"),
		Provider: strPtr("google.com"),
	}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "JWTs are header.payload.signature")

	got, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", got.Subject)
	assert.Equal(t, "a@example.com", *got.Email)
	assert.Equal(t, "Alice", *got.Name)
	assert.Equal(t, "google.com", *got.Provider)
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt, 5*time.Second)
}

func TestLocalVerifier_OptionalClaimsStayNil(t *testing.T) {
	v := newTestLocalVerifier(t)

	token, err := v.Issue(VerifiedClaims{Subject: "user-123"}, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, got.Email)
	assert.Nil(t, got.Name)
	assert.Nil(t, got.Provider)
}

func TestLocalVerifier_Expired(t *testing.T) {
	v := newTestLocalVerifier(t)
	v.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := v.Issue(VerifiedClaims{Subject: "user-123"}, time.Hour)
	require.NoError(t, err)

	v.now = time.Now
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrVerification)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestLocalVerifier_WrongSecret(t *testing.T) {
	issuer := newTestLocalVerifier(t)
	other, err := NewLocalVerifier("a-completely-different-secret")
	require.NoError(t, err)

	token, err := issuer.Issue(VerifiedClaims{Subject: "user-123"}, time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrVerification)
}

func TestLocalVerifier_RejectsForeignIssuerAndAlgorithms(t *testing.T) {
	v := newTestLocalVerifier(t)
	now := time.Now()

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
					Subject: "u", Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				}).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return s
			},
		},
		{
			name: "alg none",
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
					Subject: "u", Issuer: localIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				require.NoError(t, err)
				return s
			},
		},
		{
			name: "no expiry",
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
					Subject: "u", Issuer: localIssuer,
				}).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return s
			},
		},
		{
			name: "empty subject",
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
					Issuer: localIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				}).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return s
			},
		},
		{
			name:  "garbage",
			token: func(*testing.T) string { return "not-a-jwt" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token(t))
			assert.ErrorIs(t, err, ErrVerification)
		})
	}
}

func TestLocalVerifier_IssueRejectsBadSubject(t *testing.T) {
	v := newTestLocalVerifier(t)

	_, err := v.Issue(VerifiedClaims{Subject: ""}, time.Hour)
	assert.ErrorIs(t, err, ErrVerification)

	_, err = v.Issue(VerifiedClaims{Subject: strings.Repeat("x", maxSubjectLength+1)}, time.Hour)
	assert.ErrorIs(t, err, ErrVerification)
}
