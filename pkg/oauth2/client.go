package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xoauth2 "golang.org/x/oauth2"
)

const defaultTimeout = 15 * time.Second

// Config describes one registered client application at one provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Endpoint     xoauth2.Endpoint

	// UsePKCE sends a code challenge with the authorization request and
	// the matching verifier with the token request.
	UsePKCE bool

	// ClientIDParam overrides the parameter name carrying the client
	// identifier. TikTok calls it client_key.
	ClientIDParam string

	// AuthParams are sent verbatim with every authorization request
	// (access_type=offline, prompt=consent and similar).
	AuthParams url.Values

	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client drives the authorization code flow against a single provider.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.ClientIDParam == "" {
		cfg.ClientIDParam = "client_id"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

func (c *Client) RedirectURI() string {
	return c.cfg.RedirectURI
}

// AuthCodeURL builds the consent URL the user agent is sent to. The
// verifier is ignored unless the client is configured for PKCE.
func (c *Client) AuthCodeURL(state, verifier string, opts ...ParameterOption) string {
	query := url.Values{}
	query.Set(c.cfg.ClientIDParam, c.cfg.ClientID)
	query.Set("redirect_uri", c.cfg.RedirectURI)
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(c.cfg.Scopes, " "))
	query.Set("state", state)
	if c.cfg.UsePKCE {
		query.Set("code_challenge", S256ChallengeFromVerifier(verifier))
		query.Set("code_challenge_method", string(CodeChallengeMethodS256))
	}
	for key, values := range c.cfg.AuthParams {
		for _, v := range values {
			query.Set(key, v)
		}
	}
	for _, opt := range opts {
		opt(query)
	}

	return fmt.Sprintf("%s?%s", c.cfg.Endpoint.AuthURL, query.Encode())
}

// Exchange redeems an authorization code at the token endpoint. The
// verifier must be the one whose challenge was sent with the matching
// authorization request; it is ignored without PKCE.
func (c *Client) Exchange(ctx context.Context, code, verifier string, opts ...ParameterOption) (*TokenResponse, error) {
	params := url.Values{}
	params.Set(c.cfg.ClientIDParam, c.cfg.ClientID)
	params.Set("client_secret", c.cfg.ClientSecret)
	params.Set("code", code)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("grant_type", "authorization_code")
	if c.cfg.UsePKCE {
		params.Set("code_verifier", verifier)
	}
	for _, opt := range opts {
		opt(params)
	}

	return c.token(ctx, params)
}

// Refresh mints a new access token from a refresh token. The provider
// may or may not rotate the refresh token; the caller decides what to
// keep.
func (c *Client) Refresh(ctx context.Context, refreshToken string, opts ...ParameterOption) (*TokenResponse, error) {
	params := url.Values{}
	params.Set(c.cfg.ClientIDParam, c.cfg.ClientID)
	params.Set("client_secret", c.cfg.ClientSecret)
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshToken)
	for _, opt := range opts {
		opt(params)
	}

	return c.token(ctx, params)
}

func (c *Client) token(ctx context.Context, params url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("unable to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr Error
		if err := json.Unmarshal(body, &oauthErr); err != nil || oauthErr.Code == "" {
			return nil, &Error{
				Code:        "invalid_response",
				Description: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
			}
		}
		return nil, &oauthErr
	}

	var tokenResponse TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("unable to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}

	return &tokenResponse, nil
}
