package admission

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridfront/grid-front/internal/session"
)

type fakeSource struct {
	oauth       session.OAuthStatus
	oauthErr    error
	scraping    session.ScrapingStatus
	scrapingErr error
	authCalls   atomic.Int32
	cookieCalls atomic.Int32
}

func (f *fakeSource) AuthStatus(ctx context.Context) (session.OAuthStatus, error) {
	f.authCalls.Add(1)
	return f.oauth, f.oauthErr
}

func (f *fakeSource) CookieStatus(ctx context.Context) (session.ScrapingStatus, error) {
	f.cookieCalls.Add(1)
	return f.scraping, f.scrapingErr
}

func newController(source *fakeSource, maxAge time.Duration) (*Controller, *session.Store) {
	store := session.NewStore()
	return NewController(store, session.NewRefresher(source), maxAge), store
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input     string
		expected  Policy
		expectErr bool
	}{
		{"", PolicyNone, false},
		{"none", PolicyNone, false},
		{"oauth", PolicyOAuth, false},
		{"oauth+scraping", PolicyOAuthAndScraping, false},
		{"scraping", PolicyNone, true},
		{"OAUTH", PolicyNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			policy, err := ParsePolicy(tt.input)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrUnknownPolicy)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, policy)
			}
		})
	}
}

func TestPolicyNoneAlwaysAdmits(t *testing.T) {
	source := &fakeSource{oauthErr: errors.New("should not be called")}
	controller, _ := newController(source, time.Minute)

	decision := controller.CanAccess(context.Background(), "/public", PolicyNone)
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Intent)
	assert.Equal(t, int32(0), source.authCalls.Load(), "an open route must not touch the network")
}

func TestOAuthRouteAdmitsLiveSession(t *testing.T) {
	source := &fakeSource{oauth: session.OAuthStatus{Authenticated: true, HasToken: true}}
	controller, _ := newController(source, time.Minute)

	decision := controller.CanAccess(context.Background(), "/data-fetch", PolicyOAuth)
	assert.True(t, decision.Allowed)
}

func TestOAuthRouteDeniesWithoutSession(t *testing.T) {
	source := &fakeSource{}
	controller, _ := newController(source, time.Minute)

	decision := controller.CanAccess(context.Background(), "/data-fetch", PolicyOAuth)
	assert.False(t, decision.Allowed)
	assert.Equal(t, AuthenticationRoute, decision.RedirectTarget)
	require.NotNil(t, decision.Intent)
	assert.Equal(t, "/data-fetch", decision.Intent.TargetRoute)
	assert.False(t, decision.Intent.RequiresScraping)
}

func TestOAuthRouteDeniesExpiredSession(t *testing.T) {
	source := &fakeSource{oauth: session.OAuthStatus{Authenticated: true, Expired: true, HasToken: true}}
	controller, _ := newController(source, time.Minute)

	decision := controller.CanAccess(context.Background(), "/data-fetch", PolicyOAuth)
	assert.False(t, decision.Allowed)
}

func TestScrapingRouteRequiresBothSessions(t *testing.T) {
	tests := []struct {
		name     string
		oauth    session.OAuthStatus
		scraping session.ScrapingStatus
		allowed  bool
	}{
		{
			name:     "both live",
			oauth:    session.OAuthStatus{Authenticated: true, HasToken: true},
			scraping: session.ScrapingStatus{HasCookies: true, Valid: true},
			allowed:  true,
		},
		{
			name:     "oauth live, scraping invalid",
			oauth:    session.OAuthStatus{Authenticated: true, HasToken: true},
			scraping: session.ScrapingStatus{HasCookies: true, Valid: false},
			allowed:  false,
		},
		{
			name:     "oauth live, no cookies",
			oauth:    session.OAuthStatus{Authenticated: true, HasToken: true},
			scraping: session.ScrapingStatus{},
			allowed:  false,
		},
		{
			name:     "oauth expired, scraping valid",
			oauth:    session.OAuthStatus{Authenticated: true, Expired: true, HasToken: true},
			scraping: session.ScrapingStatus{HasCookies: true, Valid: true},
			allowed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{oauth: tt.oauth, scraping: tt.scraping}
			controller, _ := newController(source, time.Minute)

			decision := controller.CanAccess(context.Background(), "/grid", PolicyOAuthAndScraping)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				require.NotNil(t, decision.Intent)
				assert.True(t, decision.Intent.RequiresScraping)
			}
		})
	}
}

func TestOAuthIsCheckedBeforeScraping(t *testing.T) {
	// With a dead OAuth session, the scraping descriptor must not even
	// be consulted
	source := &fakeSource{
		oauth:       session.OAuthStatus{},
		scrapingErr: errors.New("should not be called"),
	}
	controller, _ := newController(source, time.Minute)

	decision := controller.CanAccess(context.Background(), "/grid", PolicyOAuthAndScraping)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int32(1), source.authCalls.Load())
	assert.Equal(t, int32(0), source.cookieCalls.Load())
}

func TestFreshCacheSkipsNetwork(t *testing.T) {
	source := &fakeSource{}
	controller, store := newController(source, time.Minute)

	store.SetOAuthStatus(session.OAuthStatus{Authenticated: true, HasToken: true})
	store.SetScrapingStatus(session.ScrapingStatus{HasCookies: true, Valid: true})

	decision := controller.CanAccess(context.Background(), "/grid", PolicyOAuthAndScraping)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int32(0), source.authCalls.Load())
	assert.Equal(t, int32(0), source.cookieCalls.Load())
}

func TestStaleCacheRefreshesAndApplies(t *testing.T) {
	source := &fakeSource{oauth: session.OAuthStatus{Authenticated: true, HasToken: true}}
	controller, store := newController(source, time.Minute)

	// Cache says authenticated but was never observed, so it is stale
	store.SeedScrapingStatus(session.ScrapingStatus{HasCookies: true, Valid: true})

	decision := controller.CanAccess(context.Background(), "/data-fetch", PolicyOAuth)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int32(1), source.authCalls.Load())

	// The fetched descriptor is now cached with a fresh observation
	oauth, observed := store.OAuthStatus()
	assert.True(t, oauth.Authenticated)
	assert.False(t, observed.IsZero())
}

func TestRefreshFailureDeniesClosed(t *testing.T) {
	source := &fakeSource{oauthErr: errors.New("remote down")}
	controller, _ := newController(source, time.Minute)

	decision := controller.CanAccess(context.Background(), "/data-fetch", PolicyOAuth)
	assert.False(t, decision.Allowed)
	assert.Equal(t, AuthenticationRoute, decision.RedirectTarget)
}

func TestSeededScrapingCandidateIsValidatedBeforeAdmission(t *testing.T) {
	// A restored token seeds HasCookies without Valid; admission must
	// ask the remote API rather than trust the seed
	source := &fakeSource{
		oauth:    session.OAuthStatus{Authenticated: true, HasToken: true},
		scraping: session.ScrapingStatus{HasCookies: true, Valid: true},
	}
	controller, store := newController(source, time.Minute)
	store.SeedScrapingStatus(session.ScrapingStatus{HasCookies: true, Valid: false})

	decision := controller.CanAccess(context.Background(), "/grid", PolicyOAuthAndScraping)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int32(1), source.cookieCalls.Load())
}
