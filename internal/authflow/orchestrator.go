// Package authflow drives the two login flows: the OAuth redirect
// round-trip and the credential/MFA exchange for the scraping session.
// It owns login attempts and decides where a user lands afterwards.
package authflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gridfront/grid-front/internal/admission"
	"github.com/gridfront/grid-front/internal/log"
	"github.com/gridfront/grid-front/internal/remote"
	"github.com/gridfront/grid-front/internal/session"
	"github.com/gridfront/grid-front/internal/tokenstore"
)

// DefaultResumeDelay is how long the UI shows the success state before
// the resumed navigation fires
const DefaultResumeDelay = 1500 * time.Millisecond

// RemoteAPI is the slice of the remote client the orchestrator drives
type RemoteAPI interface {
	AuthorizeURL(ctx context.Context) (string, error)
	Authenticate(ctx context.Context, email, password, mfaCode string) (remote.ScrapingAuthResult, error)
	AuthRefresh(ctx context.Context) error
	AuthLogout(ctx context.Context) error
	ClearScrapingCookies(ctx context.Context) error
}

// AuthorizeURLSource builds an authorization URL locally, used when the
// remote API cannot provide one
type AuthorizeURLSource interface {
	AuthorizeURL(state string) string
}

// ErrUnknownAttempt is returned for expired or never-issued attempt IDs
var ErrUnknownAttempt = errors.New("unknown login attempt")

// SubmitStatus classifies the outcome of a credential submission
type SubmitStatus int

const (
	// SubmitInvalid means local validation failed; nothing was sent
	SubmitInvalid SubmitStatus = iota
	// SubmitUnavailable means the remote API could not be reached
	SubmitUnavailable
	// SubmitMFARequired means a verification code is now demanded
	SubmitMFARequired
	// SubmitRejected means the remote API refused the credentials or code
	SubmitRejected
	// SubmitAuthenticated means the scraping session is established
	SubmitAuthenticated
)

// SubmitResult is what the login surface renders after a submission
type SubmitResult struct {
	Status      SubmitStatus
	Message     string
	FieldErrors map[string]string
	ResumeRoute string
	ResumeDelay time.Duration
}

// Orchestrator coordinates both authentication flows against the remote
// API, the descriptor cache, and the token persistence shim.
type Orchestrator struct {
	remote       RemoteAPI
	store        *session.Store
	refresher    *session.Refresher
	shim         *tokenstore.Shim
	authorizeSrc AuthorizeURLSource
	landingRoute string
	resumeDelay  time.Duration
	attempts     *attemptRegistry
}

// Options tunes optional orchestrator behavior
type Options struct {
	// AuthorizeURLSource is consulted when the remote API has no
	// authorize URL to offer. Nil disables the fallback.
	AuthorizeURLSource AuthorizeURLSource
	// ResumeDelay overrides DefaultResumeDelay when positive
	ResumeDelay time.Duration
}

// NewOrchestrator wires the orchestrator
func NewOrchestrator(api RemoteAPI, store *session.Store, refresher *session.Refresher, shim *tokenstore.Shim, landingRoute string, opts Options) *Orchestrator {
	resumeDelay := opts.ResumeDelay
	if resumeDelay <= 0 {
		resumeDelay = DefaultResumeDelay
	}
	return &Orchestrator{
		remote:       api,
		store:        store,
		refresher:    refresher,
		shim:         shim,
		authorizeSrc: opts.AuthorizeURLSource,
		landingRoute: landingRoute,
		resumeDelay:  resumeDelay,
		attempts:     newAttemptRegistry(),
	}
}

// BeginAttempt opens a login attempt, carrying the denied navigation's
// intent when there is one
func (o *Orchestrator) BeginAttempt(intent *admission.Intent) Attempt {
	attempt := o.attempts.create(intent)
	return *attempt
}

// Attempt looks up a live attempt by ID
func (o *Orchestrator) Attempt(id string) (Attempt, bool) {
	return o.attempts.get(id)
}

// AbandonAttempt discards an attempt; unknown IDs are ignored
func (o *Orchestrator) AbandonAttempt(id string) {
	o.attempts.remove(id)
}

// BeginOAuth returns the URL the browser should be sent to for the OAuth
// flow. The remote API is asked first; the configured provider fallback
// builds one locally if the remote cannot.
func (o *Orchestrator) BeginOAuth(ctx context.Context, state string) (string, error) {
	authURL, err := o.remote.AuthorizeURL(ctx)
	if err == nil {
		return authURL, nil
	}
	if o.authorizeSrc != nil {
		log.LogDebugWithFields("authflow", "Remote authorize URL unavailable, building locally", map[string]any{
			"error": err.Error(),
		})
		return o.authorizeSrc.AuthorizeURL(state), nil
	}
	return "", err
}

// CompleteOAuthCallback applies an interpreted OAuth callback. On
// success the OAuth descriptor is refreshed immediately so admission
// sees the new session without waiting for the next poll. The returned
// string is a user-facing error message, empty on success.
func (o *Orchestrator) CompleteOAuthCallback(ctx context.Context, result CallbackResult) string {
	if !result.Present {
		return ""
	}

	if !result.Success {
		log.LogInfoWithFields("authflow", "OAuth callback reported failure", map[string]any{
			"code":        result.ErrorCode,
			"description": result.Description,
		})
		if result.Description != "" {
			return result.Description
		}
		return "Sign-in failed: " + result.ErrorCode
	}

	oauth, err := o.refresher.FetchOAuth(ctx)
	if err != nil {
		log.LogWarnWithFields("authflow", "OAuth status refresh after callback failed", map[string]any{
			"error": err.Error(),
		})
		return ""
	}
	o.store.SetOAuthStatus(oauth)
	return ""
}

// SubmitCredentials runs one credential submission for an attempt.
// Validation happens locally first; the remote API only sees complete
// submissions. The attempt keeps the entered email across rejections and
// MFA rounds, and is consumed on success.
func (o *Orchestrator) SubmitCredentials(ctx context.Context, attemptID, email, password, mfaCode string) (SubmitResult, error) {
	attempt, ok := o.attempts.get(attemptID)
	if !ok {
		return SubmitResult{}, ErrUnknownAttempt
	}

	if fieldErrors := validateSubmission(email, password, mfaCode, attempt.MFA.Pending); len(fieldErrors) > 0 {
		return SubmitResult{Status: SubmitInvalid, FieldErrors: fieldErrors}, nil
	}

	result, err := o.remote.Authenticate(ctx, email, password, mfaCode)
	if err != nil {
		// Transport failure: the attempt keeps its MFA state so the
		// user can retry the same step.
		log.LogWarnWithFields("authflow", "Credential submission failed to reach remote API", map[string]any{
			"error": err.Error(),
		})
		o.attempts.update(attemptID, func(a *Attempt) {
			a.Email = email
		})
		return SubmitResult{
			Status:  SubmitUnavailable,
			Message: "Authentication service is unavailable, try again shortly",
		}, nil
	}

	switch result.Outcome {
	case remote.OutcomeMFARequired:
		o.attempts.update(attemptID, func(a *Attempt) {
			a.Email = email
			a.MFA = MFAChallenge{Pending: true, Message: result.Message}
		})
		return SubmitResult{Status: SubmitMFARequired, Message: result.Message}, nil

	case remote.OutcomeRejected:
		o.attempts.update(attemptID, func(a *Attempt) {
			a.Email = email
			a.MFA = MFAChallenge{}
		})
		return SubmitResult{Status: SubmitRejected, Message: result.Message}, nil

	case remote.OutcomeAuthenticated:
		if result.SessionToken != "" {
			o.shim.Save(ctx, result.SessionToken)
		}
		now := time.Now()
		o.store.SetScrapingStatus(session.ScrapingStatus{
			HasCookies:    true,
			Valid:         true,
			LastValidated: &now,
		})
		o.attempts.remove(attemptID)

		log.LogInfoWithFields("authflow", "Scraping session established", nil)
		return SubmitResult{
			Status:      SubmitAuthenticated,
			Message:     result.Message,
			ResumeRoute: o.resumeRoute(attempt.Intent),
			ResumeDelay: o.resumeDelay,
		}, nil

	default:
		return SubmitResult{}, errors.New("unhandled authentication outcome")
	}
}

// resumeRoute picks where a successful credential login lands: the
// denied navigation if it wanted scraping, the landing route otherwise.
func (o *Orchestrator) resumeRoute(intent *admission.Intent) string {
	if intent != nil && intent.RequiresScraping && intent.TargetRoute != "" {
		return intent.TargetRoute
	}
	return o.landingRoute
}

func validateSubmission(email, password, mfaCode string, mfaPending bool) map[string]string {
	fieldErrors := make(map[string]string)
	if strings.TrimSpace(email) == "" {
		fieldErrors["email"] = "Email is required"
	}
	if password == "" {
		fieldErrors["password"] = "Password is required"
	}
	if mfaPending && strings.TrimSpace(mfaCode) == "" {
		fieldErrors["mfaCode"] = "Verification code is required"
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

// Logout terminates the OAuth session and clears the cached descriptor.
// The local descriptor is cleared even when the remote call fails, so
// admission stops trusting a session we meant to end. The scraping
// session is untouched.
func (o *Orchestrator) Logout(ctx context.Context) error {
	err := o.remote.AuthLogout(ctx)
	o.store.SetOAuthStatus(session.OAuthStatus{})

	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		// A 4xx means there was no session to terminate
		return nil
	}
	return err
}

// ClearScrapingSession destroys the scraping session everywhere: remote
// cookies, persisted token, cached descriptor. Idempotent; clearing an
// absent session succeeds. Returns the resulting descriptor.
func (o *Orchestrator) ClearScrapingSession(ctx context.Context) session.ScrapingStatus {
	if err := o.remote.ClearScrapingCookies(ctx); err != nil {
		var apiErr *remote.APIError
		if !errors.As(err, &apiErr) {
			log.LogWarnWithFields("authflow", "Remote cookie clear failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	o.shim.Clear(ctx)
	cleared := session.ScrapingStatus{}
	o.store.SetScrapingStatus(cleared)
	return cleared
}

// RefreshOAuthToken asks the remote API to refresh the OAuth token and
// re-fetches the descriptor so the cache reflects the new expiry
func (o *Orchestrator) RefreshOAuthToken(ctx context.Context) (session.OAuthStatus, error) {
	if err := o.remote.AuthRefresh(ctx); err != nil {
		return session.OAuthStatus{}, err
	}
	oauth, err := o.refresher.FetchOAuth(ctx)
	if err != nil {
		return session.OAuthStatus{}, err
	}
	o.store.SetOAuthStatus(oauth)
	return oauth, nil
}

// RestoreScrapingSession loads a persisted session token at startup and
// seeds it as an unvalidated candidate: visible but untrusted until the
// remote API confirms it.
func (o *Orchestrator) RestoreScrapingSession(ctx context.Context) {
	_, err := o.shim.Load(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			log.LogWarnWithFields("authflow", "Failed to load persisted session token", map[string]any{
				"error": err.Error(),
			})
		}
		return
	}

	o.store.SeedScrapingStatus(session.ScrapingStatus{
		HasCookies: true,
		Valid:      false,
	})
	log.LogInfoWithFields("authflow", "Restored persisted session token, pending validation", nil)
}
