// Package server is the HTTP surface of grid-front: the authentication
// pages, the OAuth callback, the status endpoint, and the admission
// gate in front of the proxied application.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gridfront/grid-front/internal/admission"
	"github.com/gridfront/grid-front/internal/authflow"
	"github.com/gridfront/grid-front/internal/config"
	"github.com/gridfront/grid-front/internal/crypto"
	"github.com/gridfront/grid-front/internal/log"
	"github.com/gridfront/grid-front/internal/session"
)

const csrfTTL = 4 * time.Hour

// routeRule is one configured route prefix with its parsed policy
type routeRule struct {
	prefix string
	policy admission.Policy
}

// Server wires the handlers and the admission gate over the upstream proxy
type Server struct {
	cfg          config.GatewayConfig
	orchestrator *authflow.Orchestrator
	controller   *admission.Controller
	store        *session.Store
	refresher    *session.Refresher

	rules         []routeRule
	proxy         *httputil.ReverseProxy
	csrf          crypto.CSRFProtection
	attemptSigner crypto.TokenSigner

	httpServer *http.Server
}

// New builds the server. The config must already be validated.
func New(cfg config.GatewayConfig, orchestrator *authflow.Orchestrator, controller *admission.Controller, store *session.Store, refresher *session.Refresher) (*Server, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream URL: %w", err)
	}

	rules, err := parseRules(cfg.Routes)
	if err != nil {
		return nil, err
	}

	signingKey := []byte(cfg.Auth.SigningKey)
	s := &Server{
		cfg:           cfg,
		orchestrator:  orchestrator,
		controller:    controller,
		store:         store,
		refresher:     refresher,
		rules:         rules,
		proxy:         httputil.NewSingleHostReverseProxy(upstream),
		csrf:          crypto.NewCSRFProtection(signingKey, csrfTTL),
		attemptSigner: crypto.NewTokenSigner(signingKey, 30*time.Minute),
	}

	s.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.LogErrorWithFields("server", "Upstream proxy error", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET "+admission.AuthenticationRoute, s.handleLoginPage)
	mux.HandleFunc("POST /authentication/login", s.handleLogin)
	mux.HandleFunc("POST /authentication/oauth", s.handleBeginOAuth)
	mux.HandleFunc("POST /authentication/logout", s.handleLogout)
	mux.HandleFunc("POST /authentication/scraping/clear", s.handleClearScraping)
	mux.HandleFunc("POST /authentication/refresh", s.handleTokenRefresh)
	mux.HandleFunc("GET /oauth/callback", s.handleOAuthCallback)
	if cfg.Status != nil {
		mux.HandleFunc("GET /status", s.handleStatus)
		mux.HandleFunc("POST /status/refresh", s.handleStatusRefresh)
	}
	mux.HandleFunc("/", s.handleApp)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s, nil
}

// parseRules sorts configured routes longest-prefix-first so the most
// specific rule wins
func parseRules(routes map[string]string) ([]routeRule, error) {
	rules := make([]routeRule, 0, len(routes))
	for prefix, policyName := range routes {
		policy, err := admission.ParsePolicy(policyName)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", prefix, err)
		}
		rules = append(rules, routeRule{prefix: prefix, policy: policy})
	}
	sort.Slice(rules, func(i, j int) bool {
		return len(rules[i].prefix) > len(rules[j].prefix)
	})
	return rules, nil
}

// policyFor returns the policy of the longest configured prefix matching
// the path. Unconfigured paths are admitted freely.
func (s *Server) policyFor(path string) admission.Policy {
	for _, rule := range s.rules {
		if path == rule.prefix || strings.HasPrefix(path, rule.prefix+"/") {
			return rule.policy
		}
	}
	return admission.PolicyNone
}

// handleApp gates every navigation through admission, then proxies it
func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	policy := s.policyFor(r.URL.Path)
	decision := s.controller.CanAccess(r.Context(), r.URL.Path, policy)
	if !decision.Allowed {
		attempt := s.orchestrator.BeginAttempt(decision.Intent)
		s.setAttemptCookie(w, attempt.ID)
		http.Redirect(w, r, decision.RedirectTarget, http.StatusFound)
		return
	}
	s.proxy.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server, blocking until shutdown
func (s *Server) Start() error {
	log.LogInfoWithFields("server", "HTTP server starting", map[string]any{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.LogInfoWithFields("server", "HTTP server stopping", map[string]any{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the routing mux, for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
