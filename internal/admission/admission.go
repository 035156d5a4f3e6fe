// Package admission decides whether a navigation may proceed to its
// target route, based on the cached session descriptors and the route's
// configured policy. Unknown or unverifiable state denies; admission
// never guesses in the user's favor.
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/gridfront/grid-front/internal/log"
	"github.com/gridfront/grid-front/internal/session"
)

// Policy names the authentication a route demands
type Policy int

const (
	// PolicyNone admits everyone
	PolicyNone Policy = iota
	// PolicyOAuth requires a live OAuth session
	PolicyOAuth
	// PolicyOAuthAndScraping requires a live OAuth session and a valid
	// scraping session
	PolicyOAuthAndScraping
)

// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names
var ErrUnknownPolicy = errors.New("unknown route policy")

// ParsePolicy maps a config policy string to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "none":
		return PolicyNone, nil
	case "oauth":
		return PolicyOAuth, nil
	case "oauth+scraping":
		return PolicyOAuthAndScraping, nil
	default:
		return PolicyNone, ErrUnknownPolicy
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyOAuth:
		return "oauth"
	case PolicyOAuthAndScraping:
		return "oauth+scraping"
	default:
		return "none"
	}
}

// AuthenticationRoute is where denied navigations are redirected
const AuthenticationRoute = "/authentication"

// Intent records a navigation that was denied, so the authentication
// flow can resume it after the missing session is established.
type Intent struct {
	TargetRoute      string `json:"targetRoute"`
	RequiresScraping bool   `json:"requiresScraping"`
}

// Decision is the outcome of an admission check. A denied decision
// carries the redirect target and the intent to resume later.
type Decision struct {
	Allowed        bool
	RedirectTarget string
	Intent         *Intent
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(route string, requiresScraping bool) Decision {
	return Decision{
		RedirectTarget: AuthenticationRoute,
		Intent: &Intent{
			TargetRoute:      route,
			RequiresScraping: requiresScraping,
		},
	}
}

// Controller runs admission checks against the descriptor cache,
// refreshing descriptors that are older than maxAge before deciding.
type Controller struct {
	store     *session.Store
	refresher *session.Refresher
	maxAge    time.Duration
}

// NewController creates an admission controller. maxAge bounds how old a
// cached descriptor may be and still be trusted for a decision.
func NewController(store *session.Store, refresher *session.Refresher, maxAge time.Duration) *Controller {
	return &Controller{
		store:     store,
		refresher: refresher,
		maxAge:    maxAge,
	}
}

// CanAccess decides whether a navigation to route may proceed under the
// given policy. The OAuth requirement is checked strictly before the
// scraping requirement: an expired OAuth session denies even when the
// scraping session is valid. A refresh failure denies (fail closed).
func (c *Controller) CanAccess(ctx context.Context, route string, policy Policy) Decision {
	if policy == PolicyNone {
		return allow()
	}

	needsScraping := policy == PolicyOAuthAndScraping

	oauth, ok := c.oauthStatus(ctx, route)
	if !ok {
		return deny(route, needsScraping)
	}
	if !oauth.Authenticated || oauth.Expired {
		log.LogDebugWithFields("admission", "Navigation denied: OAuth session not live", map[string]any{
			"route":         route,
			"authenticated": oauth.Authenticated,
			"expired":       oauth.Expired,
		})
		return deny(route, needsScraping)
	}

	if !needsScraping {
		return allow()
	}

	scraping, ok := c.scrapingStatus(ctx, route)
	if !ok {
		return deny(route, true)
	}
	if !scraping.HasCookies || !scraping.Valid {
		log.LogDebugWithFields("admission", "Navigation denied: scraping session not valid", map[string]any{
			"route":      route,
			"hasCookies": scraping.HasCookies,
			"valid":      scraping.Valid,
		})
		return deny(route, true)
	}

	return allow()
}

// oauthStatus returns a trustworthy OAuth descriptor, refreshing a stale
// cache entry first. The second return is false when no decision-grade
// descriptor could be obtained.
func (c *Controller) oauthStatus(ctx context.Context, route string) (session.OAuthStatus, bool) {
	cached, observed := c.store.OAuthStatus()
	if c.fresh(observed) {
		return cached, true
	}

	fetched, err := c.refresher.FetchOAuth(ctx)
	if err != nil {
		log.LogWarnWithFields("admission", "OAuth status unavailable, denying navigation", map[string]any{
			"route": route,
			"error": err.Error(),
		})
		return session.OAuthStatus{}, false
	}
	c.store.SetOAuthStatus(fetched)
	return fetched, true
}

func (c *Controller) scrapingStatus(ctx context.Context, route string) (session.ScrapingStatus, bool) {
	cached, observed := c.store.ScrapingStatus()
	if c.fresh(observed) {
		return cached, true
	}

	fetched, err := c.refresher.FetchScraping(ctx)
	if err != nil {
		log.LogWarnWithFields("admission", "Scraping status unavailable, denying navigation", map[string]any{
			"route": route,
			"error": err.Error(),
		})
		return session.ScrapingStatus{}, false
	}
	c.store.SetScrapingStatus(fetched)
	return fetched, true
}

func (c *Controller) fresh(observed time.Time) bool {
	if observed.IsZero() {
		return false
	}
	return time.Since(observed) <= c.maxAge
}
