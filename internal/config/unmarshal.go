package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridfront/grid-front/internal/crypto"
)

// UnmarshalJSON implements custom unmarshaling for RemoteConfig,
// resolving env references and parsing durations
func (r *RemoteConfig) UnmarshalJSON(data []byte) error {
	type rawRemote struct {
		BaseURL      json.RawMessage `json:"baseURL"`
		ServiceToken json.RawMessage `json:"serviceToken,omitempty"`
		Timeout      string          `json:"timeout,omitempty"`
	}

	var raw rawRemote
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.BaseURL != nil {
		parsed, err := ParseConfigValue(raw.BaseURL)
		if err != nil {
			return fmt.Errorf("parsing baseURL: %w", err)
		}
		r.BaseURL = parsed.value
	}

	if raw.ServiceToken != nil {
		parsed, err := ParseConfigValue(raw.ServiceToken)
		if err != nil {
			return fmt.Errorf("parsing serviceToken: %w", err)
		}
		r.ServiceToken = Secret(parsed.value)
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		r.Timeout = timeout
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for AuthConfig
func (a *AuthConfig) UnmarshalJSON(data []byte) error {
	type rawAuth struct {
		SigningKey json.RawMessage `json:"signingKey"`
		Provider   *ProviderConfig `json:"provider,omitempty"`
	}

	var raw rawAuth
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.SigningKey == nil {
		return fmt.Errorf("signingKey is required")
	}
	parsed, err := ParseConfigValue(raw.SigningKey)
	if err != nil {
		return fmt.Errorf("parsing signingKey: %w", err)
	}
	a.SigningKey = Secret(parsed.value)
	a.Provider = raw.Provider

	return nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		AuthURL      string          `json:"authUrl"`
		TokenURL     string          `json:"tokenUrl"`
		RedirectURI  string          `json:"redirectUri"`
		Scopes       []string        `json:"scopes,omitempty"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.AuthURL = raw.AuthURL
	p.TokenURL = raw.TokenURL
	p.RedirectURI = raw.RedirectURI
	p.Scopes = raw.Scopes

	if raw.ClientID != nil {
		parsed, err := ParseConfigValue(raw.ClientID)
		if err != nil {
			return fmt.Errorf("parsing clientId: %w", err)
		}
		p.ClientID = parsed.value
	}

	if raw.ClientSecret != nil {
		parsed, err := ParseConfigValue(raw.ClientSecret)
		if err != nil {
			return fmt.Errorf("parsing clientSecret: %w", err)
		}
		p.ClientSecret = Secret(parsed.value)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for PollConfig durations
func (p *PollConfig) UnmarshalJSON(data []byte) error {
	type rawPoll struct {
		Interval string `json:"interval,omitempty"`
		MaxAge   string `json:"maxAge,omitempty"`
	}

	var raw rawPoll
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Interval != "" {
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("parsing interval: %w", err)
		}
		p.Interval = interval
	}

	if raw.MaxAge != "" {
		maxAge, err := time.ParseDuration(raw.MaxAge)
		if err != nil {
			return fmt.Errorf("parsing maxAge: %w", err)
		}
		p.MaxAge = maxAge
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for TokenStoreConfig
func (t *TokenStoreConfig) UnmarshalJSON(data []byte) error {
	type rawStore struct {
		Kind                TokenStoreKind  `json:"kind"`
		Path                string          `json:"path,omitempty"`
		RedisAddr           string          `json:"redisAddr,omitempty"`
		RedisPassword       json.RawMessage `json:"redisPassword,omitempty"`
		RedisDB             int             `json:"redisDb,omitempty"`
		GCPProject           string          `json:"gcpProject,omitempty"`
		FirestoreDatabase    string          `json:"firestoreDatabase,omitempty"`
		FirestoreCollection  string          `json:"firestoreCollection,omitempty"`
		FirestoreCredentials string          `json:"firestoreCredentials,omitempty"`
	}

	var raw rawStore
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Kind = raw.Kind
	t.Path = raw.Path
	t.RedisAddr = raw.RedisAddr
	t.RedisDB = raw.RedisDB
	t.GCPProject = raw.GCPProject
	t.FirestoreDatabase = raw.FirestoreDatabase
	t.FirestoreCollection = raw.FirestoreCollection
	t.FirestoreCredentials = raw.FirestoreCredentials

	if raw.RedisPassword != nil {
		parsed, err := ParseConfigValue(raw.RedisPassword)
		if err != nil {
			return fmt.Errorf("parsing redisPassword: %w", err)
		}
		t.RedisPassword = Secret(parsed.value)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for StatusConfig.
// The password is resolved and bcrypt-hashed immediately; the plaintext
// is not retained.
func (s *StatusConfig) UnmarshalJSON(data []byte) error {
	type rawStatus struct {
		Username string          `json:"username"`
		Password json.RawMessage `json:"password"`
	}

	var raw rawStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Username = raw.Username

	if raw.Password != nil {
		parsed, err := ParseConfigValue(raw.Password)
		if err != nil {
			return fmt.Errorf("parsing password: %w", err)
		}
		hashed, err := crypto.HashPassword(parsed.value)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		s.HashedPassword = hashed
	}

	return nil
}
