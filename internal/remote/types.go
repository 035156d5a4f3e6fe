package remote

import (
	"time"

	"github.com/gridfront/grid-front/internal/session"
)

// AuthStatusResponse is the wire shape of GET /api/auth/status
type AuthStatusResponse struct {
	Authenticated bool       `json:"authenticated"`
	Expired       bool       `json:"expired"`
	HasToken      bool       `json:"hasToken"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Descriptor converts the response into a session descriptor
func (r AuthStatusResponse) Descriptor() session.OAuthStatus {
	return session.OAuthStatus{
		Authenticated: r.Authenticated,
		Expired:       r.Expired,
		HasToken:      r.HasToken,
		ExpiresAt:     r.ExpiresAt,
	}
}

// CookieStatusResponse is the wire shape of GET /api/scraping/cookie-status
type CookieStatusResponse struct {
	HasCookies    bool       `json:"hasCookies"`
	Valid         bool       `json:"valid"`
	LastValidated *time.Time `json:"lastValidated,omitempty"`
}

// Descriptor converts the response into a session descriptor
func (r CookieStatusResponse) Descriptor() session.ScrapingStatus {
	return session.ScrapingStatus{
		HasCookies:    r.HasCookies,
		Valid:         r.Valid,
		LastValidated: r.LastValidated,
	}
}

// AuthorizeURLResponse is the wire shape of GET /api/auth/authorize-url
type AuthorizeURLResponse struct {
	AuthURL string `json:"authUrl"`
}

// ScrapingAuthResponse is the wire shape of POST /api/scraping/authenticate.
// The remote API reports an MFA requirement either in a success body or
// inside an error payload; both carry these fields.
type ScrapingAuthResponse struct {
	MFARequired  bool   `json:"mfaRequired,omitempty"`
	Message      string `json:"message,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

// ScrapingOutcome is the exhaustive result of a credential submission
type ScrapingOutcome int

const (
	// OutcomeAuthenticated means the scraping session was established
	OutcomeAuthenticated ScrapingOutcome = iota
	// OutcomeMFARequired means the remote API wants a verification code
	OutcomeMFARequired
	// OutcomeRejected means the credentials or code were refused
	OutcomeRejected
)

// ScrapingAuthResult is the interpreted outcome of a credential submission
type ScrapingAuthResult struct {
	Outcome      ScrapingOutcome
	Message      string
	SessionToken string
}
