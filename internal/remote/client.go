// Package remote is the typed client for the grid app backend. The backend
// owns both authentication tracks; grid-front only interprets its answers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gridfront/grid-front/internal/config"
	"github.com/gridfront/grid-front/internal/log"
	"github.com/gridfront/grid-front/internal/session"
)

// ErrUnavailable wraps transport failures and 5xx answers: no usable
// response was obtained. Admission fails closed on it; the poller fails
// open and keeps the previous descriptor.
var ErrUnavailable = errors.New("remote API unavailable")

// APIError is a definite negative answer from the remote API (4xx)
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote API error (%d)", e.StatusCode)
}

// ScrapingTokenFunc supplies the current opaque scraping session token,
// or "" when none is held
type ScrapingTokenFunc func() string

// Client talks to the remote API. It never stores credentials; the opaque
// scraping token is supplied per request by the token source.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	serviceToken  config.Secret
	scrapingToken ScrapingTokenFunc
}

// NewClient creates a remote API client
func NewClient(cfg config.RemoteConfig, scrapingToken ScrapingTokenFunc) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		serviceToken:  cfg.ServiceToken,
		scrapingToken: scrapingToken,
	}
}

// ScrapingSessionHeader carries the opaque scraping token on requests
const ScrapingSessionHeader = "X-Scraping-Session"

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+string(c.serviceToken))
	}
	if c.scrapingToken != nil {
		if token := c.scrapingToken(); token != "" {
			req.Header.Set(ScrapingSessionHeader, token)
		}
	}
	return req, nil
}

// do executes the request and decodes a 2xx JSON body into out (if non-nil).
// Transport failures and 5xx map to ErrUnavailable; 4xx map to APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// AuthStatus fetches the authoritative OAuth session descriptor
func (c *Client) AuthStatus(ctx context.Context) (session.OAuthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/auth/status", nil)
	if err != nil {
		return session.OAuthStatus{}, err
	}
	var resp AuthStatusResponse
	if err := c.do(req, &resp); err != nil {
		return session.OAuthStatus{}, err
	}
	return resp.Descriptor(), nil
}

// CookieStatus fetches the authoritative scraping session descriptor.
// The remote validates whatever opaque token rides on the request.
func (c *Client) CookieStatus(ctx context.Context) (session.ScrapingStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/scraping/cookie-status", nil)
	if err != nil {
		return session.ScrapingStatus{}, err
	}
	var resp CookieStatusResponse
	if err := c.do(req, &resp); err != nil {
		return session.ScrapingStatus{}, err
	}
	return resp.Descriptor(), nil
}

// AuthorizeURL asks the remote API where to send the browser for OAuth
func (c *Client) AuthorizeURL(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/auth/authorize-url", nil)
	if err != nil {
		return "", err
	}
	var resp AuthorizeURLResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.AuthURL == "" {
		return "", fmt.Errorf("%w: empty authorize URL", ErrUnavailable)
	}
	return resp.AuthURL, nil
}

// AuthRefresh asks the server to rotate/extend the OAuth token
func (c *Client) AuthRefresh(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/refresh", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// AuthLogout terminates the OAuth session server-side
func (c *Client) AuthLogout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

type scrapingAuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode,omitempty"`
}

// Authenticate submits credentials (and an optional MFA code) for the
// scraping session. An MFA requirement is honored whether the remote
// reports it in a success body or in an error payload; the two channels
// mean the same thing.
func (c *Client) Authenticate(ctx context.Context, email, password, mfaCode string) (ScrapingAuthResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/scraping/authenticate", scrapingAuthRequest{
		Email:    email,
		Password: password,
		MFACode:  mfaCode,
	})
	if err != nil {
		return ScrapingAuthResult{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ScrapingAuthResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ScrapingAuthResult{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload ScrapingAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode < 400 {
			return ScrapingAuthResult{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
		}
		payload = ScrapingAuthResponse{}
	}

	switch {
	case payload.MFARequired:
		return ScrapingAuthResult{Outcome: OutcomeMFARequired, Message: payload.Message}, nil
	case resp.StatusCode >= 400:
		return ScrapingAuthResult{Outcome: OutcomeRejected, Message: payload.Message}, nil
	default:
		if payload.SessionToken == "" {
			log.LogWarnWithFields("remote", "Authentication succeeded without a session token", nil)
		}
		return ScrapingAuthResult{
			Outcome:      OutcomeAuthenticated,
			Message:      payload.Message,
			SessionToken: payload.SessionToken,
		}, nil
	}
}

// ClearScrapingCookies destroys the scraping session server-side
func (c *Client) ClearScrapingCookies(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/scraping/cookies", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
