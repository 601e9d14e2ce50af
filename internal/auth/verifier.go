// Package auth turns an Authorization header into a request identity.
//
// ADMISSION PIPELINE OVERVIEW:
//  1. Admission.Middleware reads "Authorization: Bearer <token>"
//  2. A Verifier checks the token with the identity provider and returns
//     VerifiedClaims (subject, email, name, sign-in provider)
//  3. A Reconciler (service.IdentityService) makes sure a user row exists
//     for the subject and refreshes its login metadata
//  4. The resulting Identity is stored in the request context
//  5. Handlers read it back with SubjectIDFromContext
//
// Requests without a bearer token continue as anonymous; RequireAuth is the
// gate that turns "anonymous" into 401 on protected routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrVerification is wrapped by every token rejection. The wrapped detail is
// for logs only; clients always see the same 401 body.
var ErrVerification = errors.New("auth: token verification failed")

// maxSubjectLength mirrors the identity provider's limit on UIDs.
const maxSubjectLength = 128

// VerifiedClaims is what a Verifier vouches for after a successful check.
// Optional claims stay nil when the token does not carry them.
type VerifiedClaims struct {
	Subject   string
	Email     *string
	Name      *string
	Provider  *string // sign-in method, e.g. "google.com" or "password"
	ExpiresAt time.Time
}

// Verifier validates a raw bearer credential.
//
// Implementations must return an error wrapping ErrVerification for anything
// that is not a valid, unexpired token for this application, and must honour
// ctx cancellation for any network call they make.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*VerifiedClaims, error)
}

// firebaseClaim is the provider-specific "firebase" object inside an ID token.
type firebaseClaim struct {
	SignInProvider *string `json:"sign_in_provider,omitempty"`
}

func checkSubject(sub string) error {
	if sub == "" {
		return fmt.Errorf("%w: empty subject", ErrVerification)
	}
	if len(sub) > maxSubjectLength {
		return fmt.Errorf("%w: subject longer than %d bytes", ErrVerification, maxSubjectLength)
	}
	return nil
}
