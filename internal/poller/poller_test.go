package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gridfront/grid-front/internal/session"
)

type scriptedSource struct {
	authCalls   atomic.Int32
	cookieCalls atomic.Int32
	gate        chan struct{}
}

func (s *scriptedSource) AuthStatus(ctx context.Context) (session.OAuthStatus, error) {
	s.authCalls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return session.OAuthStatus{Authenticated: true, HasToken: true}, nil
}

func (s *scriptedSource) CookieStatus(ctx context.Context) (session.ScrapingStatus, error) {
	s.cookieCalls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return session.ScrapingStatus{HasCookies: true, Valid: true}, nil
}

func TestStartRefreshesImmediately(t *testing.T) {
	source := &scriptedSource{}
	store := session.NewStore()
	p := NewPoller(store, session.NewRefresher(source), time.Hour)

	handle := p.Start(context.Background())
	defer handle.Stop()

	assert.Eventually(t, func() bool {
		oauth, observed := store.OAuthStatus()
		return oauth.Authenticated && !observed.IsZero()
	}, time.Second, 5*time.Millisecond, "first refresh should not wait for the first tick")

	scraping, _ := store.ScrapingStatus()
	assert.True(t, scraping.Valid)
}

func TestTicksKeepRefreshing(t *testing.T) {
	source := &scriptedSource{}
	store := session.NewStore()
	p := NewPoller(store, session.NewRefresher(source), 20*time.Millisecond)

	handle := p.Start(context.Background())
	defer handle.Stop()

	assert.Eventually(t, func() bool {
		return source.authCalls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	source := &scriptedSource{}
	p := NewPoller(session.NewStore(), session.NewRefresher(source), time.Hour)

	handle := p.Start(context.Background())
	handle.Stop()
	handle.Stop()
	handle.Stop()

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not exit after Stop")
	}
}

func TestStopDropsInFlightResults(t *testing.T) {
	source := &scriptedSource{gate: make(chan struct{})}
	store := session.NewStore()
	p := NewPoller(store, session.NewRefresher(source), time.Hour)

	handle := p.Start(context.Background())

	// Wait for the immediate refresh to be in flight, then stop and
	// release it
	assert.Eventually(t, func() bool {
		return source.authCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	handle.Stop()
	close(source.gate)

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not exit after Stop")
	}

	oauth, observed := store.OAuthStatus()
	assert.False(t, oauth.Authenticated, "in-flight result must be dropped after Stop")
	assert.True(t, observed.IsZero())
}

func TestContextCancellationStopsPolling(t *testing.T) {
	source := &scriptedSource{}
	p := NewPoller(session.NewStore(), session.NewRefresher(source), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	handle := p.Start(ctx)
	cancel()

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not exit after context cancellation")
	}
}

func TestNonPositiveIntervalUsesDefault(t *testing.T) {
	p := NewPoller(session.NewStore(), session.NewRefresher(&scriptedSource{}), 0)
	assert.Equal(t, DefaultInterval, p.interval)
}
