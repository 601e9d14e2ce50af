package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNoCredential means the request carries no bearer token at all.
	// It is not a failure: the request continues as anonymous.
	ErrNoCredential = errors.New("auth: no bearer credential")

	// ErrMalformedCredential means a Bearer header is present but unusable.
	ErrMalformedCredential = errors.New("auth: malformed bearer credential")

	errProvisioning = errors.New("auth: provisioning user failed")
)

// Admission outcomes, used as metric labels.
const (
	OutcomeAnonymous     = "anonymous"
	OutcomeAuthenticated = "authenticated"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

// DefaultVerifyTimeout bounds a single token verification.
const DefaultVerifyTimeout = 5 * time.Second

// Reconciler makes sure a user row exists for verified claims and returns the
// subject identifier to admit the request as. Any error it returns is treated
// as a storage failure, not as a credential problem.
type Reconciler interface {
	Reconcile(ctx context.Context, claims *VerifiedClaims) (string, error)
}

// Recorder receives admission telemetry. metrics.Collector implements it.
type Recorder interface {
	ObserveVerification(elapsed time.Duration, err error)
	ObserveAdmission(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVerification(time.Duration, error) {}
func (nopRecorder) ObserveAdmission(string)                  {}

// Admission is the middleware that decides who a request is.
//
// STATE MACHINE:
//
//	no header / other scheme  → anonymous, continue
//	Bearer <token>            → verify → reconcile → authenticated, continue
//	malformed / rejected      → 401
//	reconcile failed          → 500
//
// Admission never blocks anonymous requests; mount RequireAuth after it on
// routes that need a user.
type Admission struct {
	verifier   Verifier
	reconciler Reconciler
	timeout    time.Duration
	logger     *slog.Logger
	recorder   Recorder
}

type AdmissionOption func(*Admission)

// WithVerifyTimeout overrides DefaultVerifyTimeout. Non-positive values are ignored.
func WithVerifyTimeout(d time.Duration) AdmissionOption {
	return func(a *Admission) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) AdmissionOption {
	return func(a *Admission) { a.logger = l }
}

func WithRecorder(r Recorder) AdmissionOption {
	return func(a *Admission) { a.recorder = r }
}

func NewAdmission(v Verifier, r Reconciler, opts ...AdmissionOption) *Admission {
	a := &Admission{
		verifier:   v,
		reconciler: r,
		timeout:    DefaultVerifyTimeout,
		logger:     slog.Default(),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Middleware implements the admission state machine for every request.
func (a *Admission) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{}
		outcome := OutcomeAnonymous

		raw, err := ExtractBearerToken(r.Header.Get("Authorization"))
		switch {
		case errors.Is(err, ErrNoCredential):
			// anonymous
		case err != nil:
			a.logger.Debug("auth: rejected credential", slog.String("reason", err.Error()))
			a.reject(w)
			return
		default:
			subjectID, err := a.authenticate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, ErrVerification) {
					a.logger.Debug("auth: rejected credential", slog.String("reason", err.Error()))
					a.reject(w)
					return
				}
				a.logger.Error("auth: admission failed", slog.String("error", err.Error()))
				a.fail(w)
				return
			}
			id = Authenticated(subjectID)
			outcome = OutcomeAuthenticated
		}

		ctx, err := WithIdentity(r.Context(), id)
		if err != nil {
			// Admission mounted twice on the same route.
			a.logger.Error("auth: admission failed", slog.String("error", err.Error()))
			a.fail(w)
			return
		}

		a.recorder.ObserveAdmission(outcome)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate verifies raw and provisions the user. A panic anywhere in
// either step is reported as a verification failure.
func (a *Admission) authenticate(ctx context.Context, raw string) (subjectID string, err error) {
	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("auth: panic during admission", slog.Any("panic", p))
			subjectID, err = "", fmt.Errorf("%w: panic: %v", ErrVerification, p)
		}
	}()

	claims, err := a.verify(ctx, raw)
	if err != nil {
		return "", err
	}

	subjectID, err = a.reconciler.Reconcile(ctx, claims)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errProvisioning, err)
	}
	if subjectID == "" {
		return "", fmt.Errorf("%w: empty subject returned", errProvisioning)
	}
	return subjectID, nil
}

type verifyResult struct {
	claims *VerifiedClaims
	err    error
}

// verify runs the Verifier under the configured timeout.
//
// The call runs on its own goroutine so that a verifier which ignores ctx
// still cannot hold the request past the deadline. The channel is buffered,
// so a late result is dropped instead of leaking the goroutine.
func (a *Admission) verify(ctx context.Context, raw string) (*VerifiedClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan verifyResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- verifyResult{err: fmt.Errorf("%w: verifier panic: %v", ErrVerification, p)}
			}
		}()
		c, err := a.verifier.Verify(ctx, raw)
		done <- verifyResult{claims: c, err: err}
	}()

	var res verifyResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	a.recorder.ObserveVerification(time.Since(start), res.err)

	switch {
	case res.err != nil && !errors.Is(res.err, ErrVerification):
		return nil, fmt.Errorf("%w: %w", ErrVerification, res.err)
	case res.err != nil:
		return nil, res.err
	case res.claims == nil:
		return nil, fmt.Errorf("%w: verifier returned no claims", ErrVerification)
	}
	return res.claims, nil
}

func (a *Admission) reject(w http.ResponseWriter) {
	a.recorder.ObserveAdmission(OutcomeRejected)
	w.Header().Set("WWW-Authenticate", `Bearer`)
	writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "valid authentication required")
}

func (a *Admission) fail(w http.ResponseWriter) {
	a.recorder.ObserveAdmission(OutcomeError)
	writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
}

// RequireAuth rejects requests that Admission left anonymous.
// It must run after Admission.Middleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFromContext(r.Context()).Authenticated {
			w.Header().Set("WWW-Authenticate", `Bearer`)
			writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "valid authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractBearerToken pulls the credential out of an Authorization header.
//
//	""                 → ErrNoCredential
//	"Basic dXNlcg=="   → ErrNoCredential (not ours to judge)
//	"Bearer"           → ErrMalformedCredential
//	"Bearer   "        → ErrMalformedCredential
//	"Bearer a b"       → ErrMalformedCredential
//	"bearer abc"       → "abc" (scheme is case-insensitive)
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoCredential
	}

	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoCredential
	}

	token := strings.TrimSpace(rest)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrMalformedCredential)
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return "", fmt.Errorf("%w: whitespace inside token", ErrMalformedCredential)
	}
	return token, nil
}

// errorBody matches handler.ErrorResponse so clients see one error shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: message})
}
