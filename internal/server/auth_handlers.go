package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gridfront/grid-front/internal/authflow"
	"github.com/gridfront/grid-front/internal/cookie"
	"github.com/gridfront/grid-front/internal/json"
	"github.com/gridfront/grid-front/internal/log"
)

// flashCookie carries a one-shot message across the OAuth callback redirect
const flashCookie = "gf_flash"

type attemptClaim struct {
	AttemptID string `json:"attemptId"`
}

func (s *Server) setAttemptCookie(w http.ResponseWriter, attemptID string) {
	signed, err := s.attemptSigner.Sign(attemptClaim{AttemptID: attemptID})
	if err != nil {
		log.LogErrorWithFields("server", "Failed to sign attempt cookie", map[string]any{
			"error": err.Error(),
		})
		return
	}
	cookie.SetAttempt(w, signed, 30*time.Minute)
}

// currentAttempt resolves the signed attempt cookie to a live attempt.
// A missing, tampered, or expired cookie yields no attempt.
func (s *Server) currentAttempt(r *http.Request) (authflow.Attempt, bool) {
	value, err := cookie.GetAttempt(r)
	if err != nil {
		return authflow.Attempt{}, false
	}
	var claim attemptClaim
	if err := s.attemptSigner.Verify(value, &claim); err != nil {
		return authflow.Attempt{}, false
	}
	return s.orchestrator.Attempt(claim.AttemptID)
}

// ensureAttempt returns the live attempt for the request, opening a
// fresh one (without intent) when the browser arrived with none
func (s *Server) ensureAttempt(w http.ResponseWriter, r *http.Request) authflow.Attempt {
	if attempt, ok := s.currentAttempt(r); ok {
		return attempt
	}
	attempt := s.orchestrator.BeginAttempt(nil)
	s.setAttemptCookie(w, attempt.ID)
	return attempt
}

func (s *Server) validCSRF(r *http.Request) bool {
	return s.csrf.Validate(r.FormValue("csrf_token"))
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    message,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60,
	})
}

func takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	cookie.Clear(w, flashCookie)
	return c.Value
}

// handleLoginPage renders the authentication page for the current attempt
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	attempt := s.ensureAttempt(w, r)

	csrfToken, err := s.csrf.Generate()
	if err != nil {
		log.LogErrorWithFields("server", "Failed to generate CSRF token", map[string]any{
			"error": err.Error(),
		})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	cookie.SetCSRF(w, csrfToken)

	data := LoginPageData{
		GatewayName: s.cfg.Name,
		CSRFToken:   csrfToken,
		Email:       attempt.Email,
		MFAPending:  attempt.MFA.Pending,
		MFAMessage:  attempt.MFA.Message,
	}
	if attempt.Intent != nil {
		data.TargetRoute = attempt.Intent.TargetRoute
	}
	if flash := takeFlash(w, r); flash != "" {
		data.Message = flash
		data.MessageType = "error"
	}

	s.renderLogin(w, data)
}

func (s *Server) renderLogin(w http.ResponseWriter, data LoginPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPageTemplate.Execute(w, data); err != nil {
		log.LogErrorWithFields("server", "Failed to render login page", map[string]any{
			"error": err.Error(),
		})
	}
}

// handleLogin runs one credential submission and re-renders the page
// with the outcome
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.validCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	attempt := s.ensureAttempt(w, r)
	email := r.FormValue("email")
	password := r.FormValue("password")
	mfaCode := r.FormValue("mfaCode")

	result, err := s.orchestrator.SubmitCredentials(r.Context(), attempt.ID, email, password, mfaCode)
	if errors.Is(err, authflow.ErrUnknownAttempt) {
		// The attempt expired between page load and submit; start over
		http.Redirect(w, r, "/authentication", http.StatusFound)
		return
	}
	if err != nil {
		log.LogErrorWithFields("server", "Credential submission failed", map[string]any{
			"error": err.Error(),
		})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	csrfToken, err := s.csrf.Generate()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := LoginPageData{
		GatewayName: s.cfg.Name,
		CSRFToken:   csrfToken,
		Email:       email,
		Message:     result.Message,
		FieldErrors: result.FieldErrors,
	}
	if attempt.Intent != nil {
		data.TargetRoute = attempt.Intent.TargetRoute
	}

	switch result.Status {
	case authflow.SubmitAuthenticated:
		cookie.ClearAttempt(w)
		data.MessageType = "success"
		if data.Message == "" {
			data.Message = "Signed in"
		}
		data.ResumeRoute = result.ResumeRoute
		data.ResumeDelaySeconds = formatSeconds(result.ResumeDelay)
	case authflow.SubmitMFARequired:
		data.MFAPending = true
		data.MFAMessage = result.Message
		data.Message = ""
	case authflow.SubmitUnavailable, authflow.SubmitRejected:
		data.MessageType = "error"
		// A rejected code restarts from credentials; a fresh attempt
		// lookup reflects the cleared challenge state
		if current, ok := s.orchestrator.Attempt(attempt.ID); ok {
			data.MFAPending = current.MFA.Pending
			data.MFAMessage = current.MFA.Message
		}
	case authflow.SubmitInvalid:
		// Preserve the MFA step the user was on
		if current, ok := s.orchestrator.Attempt(attempt.ID); ok {
			data.MFAPending = current.MFA.Pending
			data.MFAMessage = current.MFA.Message
		}
	}

	s.renderLogin(w, data)
}

// handleBeginOAuth sends the browser to the OAuth provider
func (s *Server) handleBeginOAuth(w http.ResponseWriter, r *http.Request) {
	if !s.validCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	state, err := s.csrf.Generate()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	authURL, err := s.orchestrator.BeginOAuth(r.Context(), state)
	if err != nil {
		log.LogWarnWithFields("server", "Could not obtain authorize URL", map[string]any{
			"error": err.Error(),
		})
		setFlash(w, "Sign-in service is unavailable, try again shortly")
		http.Redirect(w, r, "/authentication", http.StatusFound)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleOAuthCallback interprets the provider's redirect, applies the
// outcome once, then strips the callback parameters from the URL. The
// stripped URL carries no callback state, so a reload changes nothing.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	result := authflow.ParseCallback(r.URL.Query())
	if !result.Present {
		// Already stripped (or never a callback): just move on
		http.Redirect(w, r, s.landingOrIntent(r), http.StatusFound)
		return
	}

	message := s.orchestrator.CompleteOAuthCallback(r.Context(), result)

	if result.Success {
		cleaned := *r.URL
		cleaned.RawQuery = authflow.StripCallback(r.URL.Query()).Encode()
		http.Redirect(w, r, cleaned.String(), http.StatusFound)
		return
	}

	if message != "" {
		setFlash(w, message)
	}
	http.Redirect(w, r, "/authentication", http.StatusFound)
}

// landingOrIntent picks where a signed-in user goes after the callback:
// their denied navigation if one is pending, the landing route otherwise
func (s *Server) landingOrIntent(r *http.Request) string {
	if attempt, ok := s.currentAttempt(r); ok && attempt.Intent != nil {
		if !attempt.Intent.RequiresScraping && attempt.Intent.TargetRoute != "" {
			return attempt.Intent.TargetRoute
		}
		// A scraping-gated intent still needs the credential step
		return "/authentication"
	}
	return s.cfg.LandingRoute
}

// handleLogout terminates the OAuth session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.validCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if err := s.orchestrator.Logout(r.Context()); err != nil {
		log.LogWarnWithFields("server", "Logout did not reach remote API", map[string]any{
			"error": err.Error(),
		})
	}
	cookie.ClearAttempt(w)
	http.Redirect(w, r, "/authentication", http.StatusFound)
}

// handleClearScraping destroys the scraping session and reports the
// resulting descriptor
func (s *Server) handleClearScraping(w http.ResponseWriter, r *http.Request) {
	if !s.validCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	status := s.orchestrator.ClearScrapingSession(r.Context())
	json.WriteResponse(w, http.StatusOK, status)
}

// handleTokenRefresh asks the remote API to refresh the OAuth token and
// returns the refreshed descriptor
func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	status, err := s.orchestrator.RefreshOAuthToken(r.Context())
	if err != nil {
		log.LogWarnWithFields("server", "OAuth token refresh failed", map[string]any{
			"error": err.Error(),
		})
		json.WriteServiceUnavailable(w, "token refresh failed")
		return
	}
	json.WriteResponse(w, http.StatusOK, status)
}

func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
