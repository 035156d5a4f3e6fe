package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied when the config leaves optional knobs unset
const (
	DefaultPollInterval  = 30 * time.Second
	DefaultRemoteTimeout = 10 * time.Second
	DefaultLandingRoute  = "/data-fetch"
)

// ValidationIssue describes a single validation finding
type ValidationIssue struct {
	Path    string
	Message string
}

// ValidationResult aggregates validation findings for the -validate CLI mode
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

func (r *ValidationResult) addError(path, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(path, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile loads a config file and reports all problems found,
// rather than stopping at the first one
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	config, err := Load(path)
	if err != nil {
		result.addError("", "%v", err)
		return result, nil
	}

	validateGateway(&config.Gateway, result)
	return result, nil
}

// ValidateConfig validates a parsed config, returning the first error
func ValidateConfig(c *Config) error {
	result := &ValidationResult{}
	validateGateway(&c.Gateway, result)
	if len(result.Errors) > 0 {
		issue := result.Errors[0]
		if issue.Path != "" {
			return fmt.Errorf("%s: %s", issue.Path, issue.Message)
		}
		return fmt.Errorf("%s", issue.Message)
	}
	applyDefaults(&c.Gateway)
	return nil
}

func validateGateway(g *GatewayConfig, result *ValidationResult) {
	if g.Addr == "" {
		result.addError("gateway.addr", "addr is required")
	}
	if g.BaseURL == "" {
		result.addError("gateway.baseURL", "baseURL is required")
	} else if _, err := url.Parse(g.BaseURL); err != nil {
		result.addError("gateway.baseURL", "invalid URL: %v", err)
	}

	if g.Upstream == "" {
		result.addError("gateway.upstream", "upstream is required")
	} else if u, err := url.Parse(g.Upstream); err != nil || u.Scheme == "" || u.Host == "" {
		result.addError("gateway.upstream", "upstream must be an absolute URL")
	}

	if g.Remote.BaseURL == "" {
		result.addError("gateway.remote.baseURL", "remote API baseURL is required")
	} else if u, err := url.Parse(g.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.addError("gateway.remote.baseURL", "remote API baseURL must be an absolute URL")
	}

	if len(g.Auth.SigningKey) == 0 {
		result.addError("gateway.auth.signingKey", "signingKey is required")
	} else if len(g.Auth.SigningKey) < 32 {
		result.addWarning("gateway.auth.signingKey", "signingKey shorter than 32 bytes")
	}

	if p := g.Auth.Provider; p != nil {
		if p.ClientID == "" {
			result.addError("gateway.auth.provider.clientId", "clientId is required in provider mode")
		}
		if p.AuthURL == "" {
			result.addError("gateway.auth.provider.authUrl", "authUrl is required in provider mode")
		}
		if p.RedirectURI == "" {
			result.addError("gateway.auth.provider.redirectUri", "redirectUri is required in provider mode")
		}
	}

	for route, policy := range g.Routes {
		if !strings.HasPrefix(route, "/") {
			result.addError("gateway.routes", "route %q must start with /", route)
		}
		switch policy {
		case RoutePolicyNone, RoutePolicyOAuth, RoutePolicyOAuthAndScraping:
		default:
			result.addError("gateway.routes", "route %q has unknown policy %q", route, policy)
		}
	}
	if len(g.Routes) == 0 {
		result.addWarning("gateway.routes", "no routes configured; every navigation will be admitted")
	}

	validateTokenStore(&g.TokenStore, result)

	if g.Status != nil {
		if g.Status.Username == "" {
			result.addError("gateway.status.username", "username is required when status is enabled")
		}
		if len(g.Status.HashedPassword) == 0 {
			result.addError("gateway.status.password", "password is required when status is enabled")
		}
	}
}

func validateTokenStore(t *TokenStoreConfig, result *ValidationResult) {
	switch t.Kind {
	case "", TokenStoreMemory:
		if t.Kind == "" {
			result.addWarning("gateway.tokenStore", "no token store configured; scraping session will not survive restarts")
		}
	case TokenStoreFile:
		if t.Path == "" {
			result.addError("gateway.tokenStore.path", "path is required for the file token store")
		}
	case TokenStoreRedis:
		if t.RedisAddr == "" {
			result.addError("gateway.tokenStore.redisAddr", "redisAddr is required for the redis token store")
		}
	case TokenStoreFirestore:
		if t.GCPProject == "" {
			result.addError("gateway.tokenStore.gcpProject", "gcpProject is required for the firestore token store")
		}
	default:
		result.addError("gateway.tokenStore.kind", "unknown token store kind %q", t.Kind)
	}
}

func applyDefaults(g *GatewayConfig) {
	if g.Name == "" {
		g.Name = "grid-front"
	}
	if g.LandingRoute == "" {
		g.LandingRoute = DefaultLandingRoute
	}
	if g.Poll.Interval <= 0 {
		g.Poll.Interval = DefaultPollInterval
	}
	if g.Poll.MaxAge <= 0 {
		g.Poll.MaxAge = g.Poll.Interval
	}
	if g.Remote.Timeout <= 0 {
		g.Remote.Timeout = DefaultRemoteTimeout
	}
	if g.TokenStore.Kind == "" {
		g.TokenStore.Kind = TokenStoreMemory
	}
	if g.TokenStore.FirestoreCollection == "" {
		g.TokenStore.FirestoreCollection = "grid_front_session"
	}
}
