// Package poller keeps the cached session descriptors warm by refreshing
// them from the remote API on a fixed interval.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridfront/grid-front/internal/log"
	"github.com/gridfront/grid-front/internal/session"
)

// DefaultInterval is the refresh cadence when none is configured
const DefaultInterval = 30 * time.Second

// Poller periodically refreshes both session descriptors into the store.
// Each Start call produces its own Handle; stopping one handle never
// affects another.
type Poller struct {
	store     *session.Store
	refresher *session.Refresher
	interval  time.Duration
}

// NewPoller creates a poller. A non-positive interval falls back to
// DefaultInterval.
func NewPoller(store *session.Store, refresher *session.Refresher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		store:     store,
		refresher: refresher,
		interval:  interval,
	}
}

// Handle controls one polling loop. Stop is idempotent and returns
// without waiting; Done reports when the loop has fully exited.
type Handle struct {
	stopOnce sync.Once
	stopped  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// Stop halts the loop. Results from a refresh already in flight are
// discarded rather than written back to the store.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		close(h.stopChan)
	})
}

// Done is closed once the polling goroutine has exited
func (h *Handle) Done() <-chan struct{} {
	return h.doneChan
}

// Start launches the polling loop and returns its handle. The first
// refresh happens immediately, before the first tick. Ticks run
// serialized on the loop goroutine; a refresh that outlasts the interval
// simply delays the next one.
func (p *Poller) Start(ctx context.Context) *Handle {
	h := &Handle{
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	go func() {
		defer close(h.doneChan)

		log.LogInfoWithFields("poller", "Session status polling started", map[string]any{
			"interval": p.interval.String(),
		})

		p.refresh(ctx, h)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopChan:
				log.LogDebugWithFields("poller", "Session status polling stopped", nil)
				return
			case <-ctx.Done():
				h.Stop()
				return
			case <-ticker.C:
				p.refresh(ctx, h)
			}
		}
	}()

	return h
}

// refresh fetches both descriptors and applies them unless the handle
// was stopped while the fetch was in flight. Fetch errors are logged and
// the previous cached descriptors stay in place.
func (p *Poller) refresh(ctx context.Context, h *Handle) {
	oauth, err := p.refresher.FetchOAuth(ctx)
	if err != nil {
		log.LogWarnWithFields("poller", "OAuth status refresh failed", map[string]any{
			"error": err.Error(),
		})
	} else if !h.stopped.Load() {
		p.store.SetOAuthStatus(oauth)
	}

	scraping, err := p.refresher.FetchScraping(ctx)
	if err != nil {
		log.LogWarnWithFields("poller", "Scraping status refresh failed", map[string]any{
			"error": err.Error(),
		})
	} else if !h.stopped.Load() {
		p.store.SetScrapingStatus(scraping)
	}
}
