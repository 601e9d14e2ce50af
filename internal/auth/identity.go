package auth

import (
	"context"
	"errors"

	"github.com/stardylog/backend/internal/apperror"
)

// ErrIdentityAlreadySet is returned when something tries to attach a second
// identity to a request. An identity is decided once per request.
var ErrIdentityAlreadySet = errors.New("auth: identity already set for this request")

// Identity is who the current request acts as.
// The zero value is the anonymous identity.
type Identity struct {
	SubjectID     string
	Authenticated bool
}

// Authenticated returns the identity of a verified, provisioned user.
func Authenticated(subjectID string) Identity {
	return Identity{SubjectID: subjectID, Authenticated: true}
}

// contextKey is unexported so no other package can read or overwrite the
// identity by guessing its key.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a child context carrying id.
// Identity is a value type, so later changes to the caller's copy are not
// visible through the context.
func WithIdentity(ctx context.Context, id Identity) (context.Context, error) {
	if _, ok := ctx.Value(identityKey).(Identity); ok {
		return ctx, ErrIdentityAlreadySet
	}
	return context.WithValue(ctx, identityKey, id), nil
}

// IdentityFromContext returns the request identity, or the anonymous
// identity if none was stored.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// SubjectIDFromContext returns the authenticated subject of the request.
//
// Usage in handlers:
//
//	uid, err := auth.SubjectIDFromContext(r.Context())
//	if err != nil {
//	    writeError(w, err) // 401
//	    return
//	}
func SubjectIDFromContext(ctx context.Context) (string, error) {
	id := IdentityFromContext(ctx)
	if !id.Authenticated || id.SubjectID == "" {
		return "", apperror.Unauthenticated()
	}
	return id.SubjectID, nil
}
