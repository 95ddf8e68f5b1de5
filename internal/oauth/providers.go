package oauth

import (
	"net/url"

	"github.com/atlasops/identity/internal/config"
)

// Provider describes one OAuth2 identity provider: its endpoints, the
// scopes to request, and how aggressively its identities may link onto
// existing accounts.
type Provider struct {
	Name         string
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	Scopes       string

	// ExtraAuthParams are provider-specific authorize-URL parameters.
	ExtraAuthParams map[string]string

	// LinkExisting controls email-based linking: when true, an existing
	// account matched by email is always linked to this provider; when
	// false, linking only happens if the account has no provider yet.
	LinkExisting bool
}

var providers = map[string]*Provider{
	config.ProviderLinkedIn: {
		Name:         config.ProviderLinkedIn,
		AuthorizeURL: "https://www.linkedin.com/oauth/v2/authorization",
		TokenURL:     "https://www.linkedin.com/oauth/v2/accessToken",
		UserInfoURL:  "https://api.linkedin.com/v2/userinfo",
		Scopes:       "openid profile email",
		LinkExisting: false,
	},
	config.ProviderGoogle: {
		Name:         config.ProviderGoogle,
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		Scopes:       "openid email profile",
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "select_account",
		},
		LinkExisting: true,
	},
}

// LookupProvider returns the provider definition for a name.
func LookupProvider(name string) (*Provider, bool) {
	p, ok := providers[name]
	return p, ok
}

// BuildAuthorizeURL builds the provider's authorization URL embedding the
// given anti-CSRF state.
func (p *Provider) BuildAuthorizeURL(creds config.ProviderCredentials, state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", creds.ClientID)
	params.Set("redirect_uri", creds.RedirectURI)
	params.Set("state", state)
	params.Set("scope", p.Scopes)
	for k, v := range p.ExtraAuthParams {
		params.Set(k, v)
	}

	return p.AuthorizeURL + "?" + params.Encode()
}
