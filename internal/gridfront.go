// Package internal wires the grid-front application: the session cache,
// the remote API client, the background poller, the admission gate, and
// the HTTP server, with a managed lifecycle around them.
package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridfront/grid-front/internal/admission"
	"github.com/gridfront/grid-front/internal/authflow"
	"github.com/gridfront/grid-front/internal/config"
	"github.com/gridfront/grid-front/internal/log"
	"github.com/gridfront/grid-front/internal/poller"
	"github.com/gridfront/grid-front/internal/provider"
	"github.com/gridfront/grid-front/internal/remote"
	"github.com/gridfront/grid-front/internal/server"
	"github.com/gridfront/grid-front/internal/session"
	"github.com/gridfront/grid-front/internal/tokenstore"
)

// GridFront is the assembled application
type GridFront struct {
	config       config.Config
	httpServer   *server.Server
	statusPoller *poller.Poller
	orchestrator *authflow.Orchestrator
}

// NewGridFront builds the application from a validated config
func NewGridFront(ctx context.Context, cfg config.Config) (*GridFront, error) {
	gateway := cfg.Gateway

	backend, err := tokenstore.New(ctx, gateway.TokenStore)
	if err != nil {
		return nil, fmt.Errorf("setting up token store: %w", err)
	}
	shim := tokenstore.NewShim(backend)

	remoteClient := remote.NewClient(gateway.Remote, shim.Current)
	store := session.NewStore()
	refresher := session.NewRefresher(remoteClient)

	opts := authflow.Options{}
	if gateway.Auth.Provider != nil {
		opts.AuthorizeURLSource = provider.New(*gateway.Auth.Provider)
	}
	orchestrator := authflow.NewOrchestrator(remoteClient, store, refresher, shim, gateway.LandingRoute, opts)

	// Surface a persisted session token before anything consults the cache
	orchestrator.RestoreScrapingSession(ctx)

	controller := admission.NewController(store, refresher, gateway.Poll.MaxAge)

	httpServer, err := server.New(gateway, orchestrator, controller, store, refresher)
	if err != nil {
		return nil, fmt.Errorf("setting up HTTP server: %w", err)
	}

	return &GridFront{
		config:       cfg,
		httpServer:   httpServer,
		statusPoller: poller.NewPoller(store, refresher, gateway.Poll.Interval),
		orchestrator: orchestrator,
	}, nil
}

// Run starts the application and blocks until shutdown
func (g *GridFront) Run() error {
	log.LogInfoWithFields("gridfront", "Starting application", map[string]any{
		"addr": g.config.Gateway.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollHandle := g.statusPoller.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := g.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("gridfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("gridfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("gridfront", "Starting graceful shutdown", map[string]any{
		"reason": shutdownReason,
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := g.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("gridfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	pollHandle.Stop()
	select {
	case <-pollHandle.Done():
	case <-shutdownCtx.Done():
	}

	log.LogInfoWithFields("gridfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}
