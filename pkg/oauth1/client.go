// Package oauth1 implements the three-legged OAuth 1.0a flow used by
// Twitter: fetch a request token pair, send the user to the authorize
// page, then trade token, secret and verifier for an access token pair.
package oauth1

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mrjones/oauth"
)

const defaultTimeout = 15 * time.Second

// Error is a response where the provider answered and refused, as
// opposed to the request never completing.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// wrapTokenError converts the underlying client's non-2xx response
// error into *Error; transport failures pass through untyped.
func wrapTokenError(step string, err error) error {
	var execErr oauth.HTTPExecuteError
	if errors.As(err, &execErr) {
		return fmt.Errorf("unable to %s: %w", step, &Error{
			StatusCode: execErr.StatusCode,
			Body:       string(execErr.ResponseBodyBytes),
		})
	}
	return fmt.Errorf("unable to %s: %w", step, err)
}

type Config struct {
	ConsumerKey     string
	ConsumerSecret  string
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	Timeout         time.Duration
}

// Token is a finalized access token pair plus the identity fields
// Twitter reports alongside it.
type Token struct {
	Token      string
	Secret     string
	UserID     string
	ScreenName string
}

type Client struct {
	consumer *oauth.Consumer
}

func NewClient(cfg Config) *Client {
	consumer := oauth.NewConsumer(cfg.ConsumerKey, cfg.ConsumerSecret, oauth.ServiceProvider{
		RequestTokenUrl:   cfg.RequestTokenURL,
		AuthorizeTokenUrl: cfg.AuthorizeURL,
		AccessTokenUrl:    cfg.AccessTokenURL,
	})
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	consumer.HttpClient = &http.Client{Timeout: timeout}

	return &Client{consumer: consumer}
}

// RequestToken fetches a fresh request token pair and returns it
// together with the authorize URL for the user agent. The pair is
// single-use; the provider invalidates it after one exchange.
func (c *Client) RequestToken(callbackURL string) (token, secret, authorizeURL string, err error) {
	requestToken, loginURL, err := c.consumer.GetRequestTokenAndUrl(callbackURL)
	if err != nil {
		return "", "", "", wrapTokenError("obtain request token", err)
	}
	return requestToken.Token, requestToken.Secret, loginURL, nil
}

// AccessToken exchanges a request token pair and the verifier from the
// callback for a durable access token pair.
func (c *Client) AccessToken(token, secret, verifier string) (*Token, error) {
	accessToken, err := c.consumer.AuthorizeToken(&oauth.RequestToken{
		Token:  token,
		Secret: secret,
	}, verifier)
	if err != nil {
		return nil, wrapTokenError("exchange request token", err)
	}

	return &Token{
		Token:      accessToken.Token,
		Secret:     accessToken.Secret,
		UserID:     accessToken.AdditionalData["user_id"],
		ScreenName: accessToken.AdditionalData["screen_name"],
	}, nil
}

// HTTPClient returns a client signing every request with the given
// access token pair, for authenticated API calls.
func (c *Client) HTTPClient(token, secret string) (*http.Client, error) {
	httpClient, err := c.consumer.MakeHttpClient(&oauth.AccessToken{
		Token:  token,
		Secret: secret,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to build signing client: %w", err)
	}
	return httpClient, nil
}
