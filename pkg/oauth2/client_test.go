package oauth2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"
)

func testClient(tokenURL string, pkce bool) *Client {
	return NewClient(Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "http://localhost:8000/auth/test/callback",
		Scopes:       []string{"read", "write"},
		Endpoint: xoauth2.Endpoint{
			AuthURL:  "https://provider.example/authorize",
			TokenURL: tokenURL,
		},
		UsePKCE: pkce,
	})
}

func TestAuthCodeURL(t *testing.T) {
	c := testClient("https://provider.example/token", true)
	verifier := GenerateCodeVerifier()

	authURL := c.AuthCodeURL("state-1", verifier)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "state-1", query.Get("state"))
	assert.Equal(t, "client-1", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "read write", query.Get("scope"))
	assert.Equal(t, S256ChallengeFromVerifier(verifier), query.Get("code_challenge"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
}

func TestAuthCodeURLClientKeyParam(t *testing.T) {
	c := NewClient(Config{
		ClientID:      "key-1",
		ClientIDParam: "client_key",
		Endpoint:      xoauth2.Endpoint{AuthURL: "https://provider.example/authorize"},
	})

	authURL := c.AuthCodeURL("s", "")
	parsed, _ := url.Parse(authURL)
	assert.Equal(t, "key-1", parsed.Query().Get("client_key"))
	assert.Empty(t, parsed.Query().Get("client_id"))
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		assert.Equal(t, "verifier-1", r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","token_type":"bearer","expires_in":3600,"refresh_token":"rt-1"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, true)
	tr, err := c.Exchange(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tr.AccessToken)
	assert.Equal(t, "rt-1", tr.RefreshToken)
	assert.Equal(t, 3600, tr.ExpiresIn)
}

func TestExchangeProviderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, false)
	_, err := c.Exchange(context.Background(), "stale-code", "")
	var oauthErr *Error
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "invalid_grant", oauthErr.Code)
}

func TestExchangeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := testClient(srv.URL, false)
	_, err := c.Exchange(context.Background(), "code-1", "")
	require.Error(t, err)
	var oauthErr *Error
	assert.False(t, errors.As(err, &oauthErr), "transport failures are not provider errors")
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-2","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, false)
	tr, err := c.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tr.AccessToken)
	assert.Empty(t, tr.RefreshToken, "provider did not rotate the refresh token")
}
