package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// TokenStoreKind selects the backend for the persisted scraping session token
type TokenStoreKind string

const (
	TokenStoreMemory    TokenStoreKind = "memory"
	TokenStoreFile      TokenStoreKind = "file"
	TokenStoreRedis     TokenStoreKind = "redis"
	TokenStoreFirestore TokenStoreKind = "firestore"
)

// Route policies understood by the admission controller
const (
	RoutePolicyNone             = "none"
	RoutePolicyOAuth            = "oauth"
	RoutePolicyOAuthAndScraping = "oauth+scraping"
)

// RemoteConfig describes the grid app backend that owns both sessions
type RemoteConfig struct {
	BaseURL      string        `json:"baseURL"`
	ServiceToken Secret        `json:"serviceToken,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`
}

// ProviderConfig enables direct provider mode: grid-front builds the OAuth
// authorize URL itself instead of asking the remote API for one
type ProviderConfig struct {
	ClientID     string   `json:"clientId"`
	ClientSecret Secret   `json:"clientSecret"`
	AuthURL      string   `json:"authUrl"`
	TokenURL     string   `json:"tokenUrl"`
	RedirectURI  string   `json:"redirectUri"`
	Scopes       []string `json:"scopes,omitempty"`
}

// AuthConfig carries gateway-owned authentication material
type AuthConfig struct {
	// SigningKey signs attempt cookies, CSRF tokens, and OAuth state
	SigningKey Secret          `json:"signingKey"`
	Provider   *ProviderConfig `json:"provider,omitempty"`
}

// PollConfig controls the background status poller
type PollConfig struct {
	// Interval between refreshes of both descriptors
	Interval time.Duration `json:"interval,omitempty"`
	// MaxAge is how long a cached descriptor satisfies an admission check
	MaxAge time.Duration `json:"maxAge,omitempty"`
}

// TokenStoreConfig selects and configures the durable token backend
type TokenStoreConfig struct {
	Kind TokenStoreKind `json:"kind"`

	// For file
	Path string `json:"path,omitempty"`

	// For redis
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword Secret `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDb,omitempty"`

	// For firestore
	GCPProject           string `json:"gcpProject,omitempty"`
	FirestoreDatabase    string `json:"firestoreDatabase,omitempty"`
	FirestoreCollection  string `json:"firestoreCollection,omitempty"`
	FirestoreCredentials string `json:"firestoreCredentials,omitempty"`
}

// StatusConfig protects the /status surface with basic auth
type StatusConfig struct {
	Username string `json:"username"`

	// Computed at load time; the plaintext password is not retained
	HashedPassword []byte `json:"-"`
}

// GatewayConfig is the resolved gateway configuration
type GatewayConfig struct {
	BaseURL      string            `json:"baseURL"`
	Addr         string            `json:"addr"`
	Name         string            `json:"name"`
	Upstream     string            `json:"upstream"`
	LandingRoute string            `json:"landingRoute,omitempty"`
	Routes       map[string]string `json:"routes"`
	Remote       RemoteConfig      `json:"remote"`
	Auth         AuthConfig        `json:"auth"`
	Poll         PollConfig        `json:"poll,omitempty"`
	TokenStore   TokenStoreConfig  `json:"tokenStore,omitempty"`
	Status       *StatusConfig     `json:"status,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Version string        `json:"version"`
	Gateway GatewayConfig `json:"gateway"`
}

// RawConfigValue represents a value that could be a plain string or an env ref.
// This is only used during parsing, not in the final config.
type RawConfigValue struct {
	value string
}

// ParseConfigValue parses a JSON value that could be a string or reference object
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	// Check for $env reference
	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s not set", envVar)
		}
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return &RawConfigValue{value: value}, nil
	}

	return nil, fmt.Errorf("unknown reference type in config value")
}
