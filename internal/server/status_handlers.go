package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gridfront/grid-front/internal/crypto"
	"github.com/gridfront/grid-front/internal/json"
	"github.com/gridfront/grid-front/internal/log"
	"github.com/gridfront/grid-front/internal/session"
)

// StatusResponse is the operator-facing session snapshot
type StatusResponse struct {
	Gateway          string                 `json:"gateway"`
	OAuth            session.OAuthStatus    `json:"oauth"`
	OAuthObserved    *time.Time             `json:"oauthObservedAt,omitempty"`
	Scraping         session.ScrapingStatus `json:"scraping"`
	ScrapingObserved *time.Time             `json:"scrapingObservedAt,omitempty"`
}

// checkStatusAuth enforces basic auth against the configured credentials
func (s *Server) checkStatusAuth(w http.ResponseWriter, r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="grid-front status"`)
		json.WriteUnauthorized(w, "authentication required")
		return false
	}

	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Status.Username)) == 1
	passwordMatch := crypto.VerifyPassword(password, s.cfg.Status.HashedPassword)
	if !usernameMatch || !passwordMatch {
		log.LogWarnWithFields("server", "Status endpoint auth failure", map[string]any{
			"username": username,
		})
		w.Header().Set("WWW-Authenticate", `Basic realm="grid-front status"`)
		json.WriteUnauthorized(w, "invalid credentials")
		return false
	}
	return true
}

// handleStatus reports the cached descriptors without touching the network
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.checkStatusAuth(w, r) {
		return
	}

	oauth, oauthObserved := s.store.OAuthStatus()
	scraping, scrapingObserved := s.store.ScrapingStatus()

	resp := StatusResponse{
		Gateway:  s.cfg.Name,
		OAuth:    oauth,
		Scraping: scraping,
	}
	if !oauthObserved.IsZero() {
		resp.OAuthObserved = &oauthObserved
	}
	if !scrapingObserved.IsZero() {
		resp.ScrapingObserved = &scrapingObserved
	}

	json.Write(w, resp)
}

// handleStatusRefresh forces a fetch of both descriptors and reports the result
func (s *Server) handleStatusRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.checkStatusAuth(w, r) {
		return
	}

	oauth, err := s.refresher.FetchOAuth(r.Context())
	if err != nil {
		json.WriteServiceUnavailable(w, "oauth status fetch failed")
		return
	}
	s.store.SetOAuthStatus(oauth)

	scraping, err := s.refresher.FetchScraping(r.Context())
	if err != nil {
		json.WriteServiceUnavailable(w, "scraping status fetch failed")
		return
	}
	s.store.SetScrapingStatus(scraping)

	now := time.Now()
	json.Write(w, StatusResponse{
		Gateway:          s.cfg.Name,
		OAuth:            oauth,
		OAuthObserved:    &now,
		Scraping:         scraping,
		ScrapingObserved: &now,
	})
}
