package session

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single status fetch against the remote API
const DefaultFetchTimeout = 10 * time.Second

// StatusSource fetches authoritative session descriptors from the remote API
type StatusSource interface {
	AuthStatus(ctx context.Context) (OAuthStatus, error)
	CookieStatus(ctx context.Context) (ScrapingStatus, error)
}

// Refresher deduplicates concurrent descriptor fetches so that the poller
// and the admission controller never have more than one in-flight request
// per descriptor. It returns fetched values without applying them; callers
// decide whether a result is still wanted (a stopped poller drops its
// results instead of writing them back).
type Refresher struct {
	source  StatusSource
	timeout time.Duration
	group   singleflight.Group
}

// NewRefresher creates a refresher over the given source
func NewRefresher(source StatusSource) *Refresher {
	return &Refresher{
		source:  source,
		timeout: DefaultFetchTimeout,
	}
}

// FetchOAuth fetches the OAuth descriptor, joining any in-flight fetch.
// The network call runs detached from the caller's context so that one
// caller going away does not fail the others sharing the flight.
func (r *Refresher) FetchOAuth(ctx context.Context) (OAuthStatus, error) {
	v, err, _ := r.group.Do("oauth", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.source.AuthStatus(fctx)
	})
	if err != nil {
		return OAuthStatus{}, err
	}
	return v.(OAuthStatus), nil
}

// FetchScraping fetches the scraping descriptor, joining any in-flight fetch
func (r *Refresher) FetchScraping(ctx context.Context) (ScrapingStatus, error) {
	v, err, _ := r.group.Do("scraping", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.source.CookieStatus(fctx)
	})
	if err != nil {
		return ScrapingStatus{}, err
	}
	return v.(ScrapingStatus), nil
}
