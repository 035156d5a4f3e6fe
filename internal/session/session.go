// Package session holds the last-observed state of the two authentication
// tracks: the OAuth token session and the credential/cookie scraping session.
// It is a cache, not a source of truth; the remote API owns both sessions.
package session

import (
	"sync"
	"time"
)

// OAuthStatus describes the server-side state of the OAuth session track.
// Invariant: Authenticated implies HasToken; Expired is only meaningful
// when HasToken is set.
type OAuthStatus struct {
	Authenticated bool       `json:"authenticated"`
	Expired       bool       `json:"expired"`
	HasToken      bool       `json:"hasToken"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// ScrapingStatus describes the server-side validity of the opaque scraping
// session token. Invariant: Valid implies HasCookies.
type ScrapingStatus struct {
	HasCookies    bool       `json:"hasCookies"`
	Valid         bool       `json:"valid"`
	LastValidated *time.Time `json:"lastValidated,omitempty"`
}

// Store caches the most recently observed descriptor for each track.
// Writes are last-write-wins; callers are responsible for supplying
// descriptors that satisfy the invariants above. The store never touches
// the network.
type Store struct {
	mu               sync.RWMutex
	oauth            OAuthStatus
	oauthObserved    time.Time
	scraping         ScrapingStatus
	scrapingObserved time.Time
}

// NewStore creates a store with both descriptors in their zero
// (unauthenticated, no cookies) state and no observation time.
func NewStore() *Store {
	return &Store{}
}

// OAuthStatus returns the last known OAuth descriptor and when it was
// observed. A zero observation time means the descriptor has never been
// fetched from the remote API.
func (s *Store) OAuthStatus() (OAuthStatus, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oauth, s.oauthObserved
}

// SetOAuthStatus replaces the OAuth descriptor and marks it observed now
func (s *Store) SetOAuthStatus(d OAuthStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauth = d
	s.oauthObserved = time.Now()
}

// ScrapingStatus returns the last known scraping descriptor and when it
// was observed
func (s *Store) ScrapingStatus() (ScrapingStatus, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scraping, s.scrapingObserved
}

// SetScrapingStatus replaces the scraping descriptor and marks it observed now
func (s *Store) SetScrapingStatus(d ScrapingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scraping = d
	s.scrapingObserved = time.Now()
}

// SeedScrapingStatus stores a descriptor without an observation time.
// Used at startup to surface a persisted token as an unvalidated candidate:
// the descriptor is visible but always considered stale, so the next
// admission check validates it against the remote API.
func (s *Store) SeedScrapingStatus(d ScrapingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scraping = d
	s.scrapingObserved = time.Time{}
}
