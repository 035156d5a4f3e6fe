// Package provider builds OAuth authorization URLs directly from a
// configured identity provider. It is the fallback when the remote API
// does not hand out authorize URLs itself.
package provider

import (
	"github.com/gridfront/grid-front/internal/config"
	"golang.org/x/oauth2"
)

// Provider wraps an oauth2 endpoint configuration
type Provider struct {
	oauthConfig oauth2.Config
}

// New creates a provider from config
func New(cfg config.ProviderConfig) *Provider {
	return &Provider{
		oauthConfig: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: string(cfg.ClientSecret),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
	}
}

// AuthorizeURL builds the authorization URL for the given state
func (p *Provider) AuthorizeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}
