package cookie

import (
	"net/http"
	"time"

	"github.com/gridfront/grid-front/internal/envutil"
	"github.com/gridfront/grid-front/internal/log"
)

// Common cookie names used in grid-front
const (
	// AttemptCookie carries the signed ID of an in-progress login attempt
	AttemptCookie = "gf_attempt"
	CSRFCookie    = "csrf_token"
)

// SetAttempt sets the login attempt cookie with appropriate security settings
func SetAttempt(w http.ResponseWriter, value string, maxAge time.Duration) {
	secure := !envutil.IsDev()
	http.SetCookie(w, &http.Cookie{
		Name:     AttemptCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogTraceWithFields("cookie", "Attempt cookie set", map[string]any{
		"maxAge": maxAge.String(),
		"secure": secure,
	})
}

// SetCSRF sets a CSRF token cookie
func SetCSRF(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: false, // CSRF tokens need to be readable by the login page
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
}

// Clear removes a cookie by setting MaxAge to -1
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// ClearAttempt removes the login attempt cookie
func ClearAttempt(w http.ResponseWriter) {
	Clear(w, AttemptCookie)
	log.LogTraceWithFields("cookie", "Attempt cookie cleared", nil)
}

// ClearCSRF removes the CSRF cookie
func ClearCSRF(w http.ResponseWriter) {
	Clear(w, CSRFCookie)
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetAttempt retrieves the login attempt cookie value
func GetAttempt(r *http.Request) (string, error) {
	return Get(r, AttemptCookie)
}

// GetCSRF retrieves the CSRF cookie value
func GetCSRF(r *http.Request) (string, error) {
	return Get(r, CSRFCookie)
}
