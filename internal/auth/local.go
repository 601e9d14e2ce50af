package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const localIssuer = "stardylog-local"

// LocalVerifier issues and checks HS256 tokens signed with a shared secret.
//
// It stands in for the identity provider during local development and
// end-to-end tests, where there is no Firebase project to talk to. Its tokens
// carry the same claim shape as Firebase ID tokens, so everything downstream
// of the Verifier behaves identically.
//
// HS256 is symmetric: whoever knows JWT_SECRET can mint tokens for any user.
// That is fine for a developer laptop and never fine in production, which is
// why the server only falls back to it when no Firebase project is set.
type LocalVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewLocalVerifier rejects secrets shorter than 16 characters.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewLocalVerifier(secret string) (*LocalVerifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &LocalVerifier{secret: []byte(secret), now: time.Now}, nil
}

type localClaims struct {
	jwt.RegisteredClaims
	Email    *string        `json:"email,omitempty"`
	Name     *string        `json:"name,omitempty"`
	Firebase *firebaseClaim `json:"firebase,omitempty"`
}

// Issue signs a token for c.Subject that expires after ttl.
func (v *LocalVerifier) Issue(c VerifiedClaims, ttl time.Duration) (string, error) {
	if err := checkSubject(c.Subject); err != nil {
		return "", err
	}
	now := v.now()

	lc := localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    localIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: c.Email,
		Name:  c.Name,
	}
	if c.Provider != nil {
		lc.Firebase = &firebaseClaim{SignInProvider: c.Provider}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, lc).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry.
//
// ALGORITHM CONFUSION:
// jwt.WithValidMethods pins HS256. Without it a token declaring "none", or an
// RS256 token whose "public key" is our secret, could slip through.
func (v *LocalVerifier) Verify(_ context.Context, rawToken string) (*VerifiedClaims, error) {
	var lc localClaims
	token, err := jwt.ParseWithClaims(rawToken, &lc,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrVerification)
	}
	if err := checkSubject(lc.Subject); err != nil {
		return nil, err
	}

	out := &VerifiedClaims{
		Subject:   lc.Subject,
		Email:     lc.Email,
		Name:      lc.Name,
		ExpiresAt: lc.ExpiresAt.Time,
	}
	if lc.Firebase != nil {
		out.Provider = lc.Firebase.SignInProvider
	}
	return out, nil
}
