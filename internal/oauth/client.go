package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasops/identity/internal/config"
)

// Stable error codes surfaced to the frontend as login?error=<code>.
// Each failure mode keeps its own code so distinct messaging can be shown.
const (
	ErrTokenExchange   = "token_exchange_failed"
	ErrUserInfo        = "userinfo_failed"
	ErrMissingUserData = "missing_user_data"
	ErrNetwork         = "network_error"
)

// FlowError is a provider-protocol failure carrying one of the stable codes.
type FlowError struct {
	Code string
}

func (e *FlowError) Error() string {
	return e.Code
}

// UserInfo holds the verified identity claims from a provider's userinfo
// endpoint. Subject and Email are required; the rest is best-effort.
type UserInfo struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	Profile    string `json:"profile"`
}

// Client performs the two-leg authorization-code exchange against a
// provider's endpoints.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a provider client. Each HTTP leg runs under the client
// timeout so a hung provider cannot exhaust request-handling capacity.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// ExchangeCodeForUser exchanges an authorization code for the provider's
// access token, then fetches and validates the userinfo payload. No retries
// are performed; the user re-initiates the flow on failure.
func (c *Client) ExchangeCodeForUser(ctx context.Context, p *Provider, creds config.ProviderCredentials, code string) (*UserInfo, *FlowError) {
	accessToken, ferr := c.exchangeCode(ctx, p, creds, code)
	if ferr != nil {
		return nil, ferr
	}

	return c.fetchUserInfo(ctx, p, accessToken)
}

func (c *Client) exchangeCode(ctx context.Context, p *Provider, creds config.ProviderCredentials, code string) (string, *FlowError) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", creds.RedirectURI)
	data.Set("client_id", creds.ClientID)
	data.Set("client_secret", creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		c.log.Error().Err(err).Str("provider", p.Name).Msg("oauth: failed to build token request")
		return "", &FlowError{Code: ErrNetwork}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("provider", p.Name).Msg("oauth: token endpoint unreachable")
		return "", &FlowError{Code: ErrNetwork}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		c.log.Warn().Int("status", resp.StatusCode).Str("provider", p.Name).Msg("oauth: token exchange rejected")
		return "", &FlowError{Code: ErrTokenExchange}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.AccessToken == "" {
		c.log.Warn().Str("provider", p.Name).Msg("oauth: token response missing access_token")
		return "", &FlowError{Code: ErrTokenExchange}
	}

	return payload.AccessToken, nil
}

func (c *Client) fetchUserInfo(ctx context.Context, p *Provider, accessToken string) (*UserInfo, *FlowError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		c.log.Error().Err(err).Str("provider", p.Name).Msg("oauth: failed to build userinfo request")
		return nil, &FlowError{Code: ErrNetwork}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("provider", p.Name).Msg("oauth: userinfo endpoint unreachable")
		return nil, &FlowError{Code: ErrNetwork}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		c.log.Warn().Int("status", resp.StatusCode).Str("provider", p.Name).Msg("oauth: userinfo request rejected")
		return nil, &FlowError{Code: ErrUserInfo}
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		c.log.Warn().Err(err).Str("provider", p.Name).Msg("oauth: failed to decode userinfo response")
		return nil, &FlowError{Code: ErrUserInfo}
	}

	// Subject and email are the contract; aborting here keeps half-formed
	// identities out of account linking.
	if info.Subject == "" || info.Email == "" {
		c.log.Warn().Str("provider", p.Name).Msg("oauth: userinfo missing sub or email")
		return nil, &FlowError{Code: ErrMissingUserData}
	}

	return &info, nil
}
