package connect

import (
	"context"
	"errors"
	"time"

	"github.com/crosspost-labs/crosspost/pkg/oauth1"
	"github.com/crosspost-labs/crosspost/pkg/oauth2"
	"github.com/crosspost-labs/crosspost/pkg/session"
)

// ErrRefreshUnsupported is returned by drivers for providers that issue
// no refresh tokens (OAuth 1.0a, Facebook user tokens).
var ErrRefreshUnsupported = errors.New("connect: provider does not support refresh")

// Callback carries the parameters a provider sends back, both the
// OAuth2 shape (state/code) and the 1.0a shape (token/verifier).
type Callback struct {
	State            string
	Code             string
	OAuthToken       string
	OAuthVerifier    string
	Denied           bool
	ErrorCode        string
	ErrorDescription string
}

// Driver is the exchange step of a flow. The orchestrator's state
// machine is identical across OAuth variants; only Begin/Finish differ.
type Driver interface {
	// Begin generates fresh correlation material and the consent URL.
	Begin(ctx context.Context) (*session.PendingAuth, string, error)
	// Complete reports whether cb carries every field this variant's
	// exchange requires. A callback failing it is rejected before any
	// correlation state is consumed.
	Complete(cb Callback) bool
	// Finish trades the callback evidence plus the pending correlation
	// material for a durable credential.
	Finish(ctx context.Context, pending *session.PendingAuth, cb Callback) (*session.Credential, error)
	// Refresh mints a new credential from an existing refresh token, or
	// returns ErrRefreshUnsupported.
	Refresh(ctx context.Context, cred *session.Credential) (*session.Credential, error)
}

// IdentityFunc derives the resource owner's identity from a token
// response, for providers that report it there (LinkedIn id_token,
// TikTok open_id). Best effort: returning empty strings is fine.
type IdentityFunc func(ctx context.Context, tr *oauth2.TokenResponse) (userID, username string)

// codeDriver implements the OAuth2 authorization-code flow, with PKCE
// when the underlying client is configured for it.
type codeDriver struct {
	provider session.Provider
	client   *oauth2.Client
	pkce     bool
	identity IdentityFunc
	// refresh enables the refresh grant; providers without refresh
	// tokens leave it false even though the endpoint would accept it.
	refresh bool
}

func (d *codeDriver) Begin(ctx context.Context) (*session.PendingAuth, string, error) {
	pending := &session.PendingAuth{
		Provider: d.provider,
		State:    oauth2.GenerateState(),
	}
	if d.pkce {
		pending.Verifier = oauth2.GenerateCodeVerifier()
	}
	authURL := d.client.AuthCodeURL(pending.State, pending.Verifier)
	return pending, authURL, nil
}

func (d *codeDriver) Complete(cb Callback) bool {
	return cb.Code != ""
}

func (d *codeDriver) Finish(ctx context.Context, pending *session.PendingAuth, cb Callback) (*session.Credential, error) {
	tr, err := d.client.Exchange(ctx, cb.Code, pending.Verifier)
	if err != nil {
		return nil, err
	}
	cred := credentialFromToken(d.provider, tr)
	if d.identity != nil {
		cred.UserID, cred.Username = d.identity(ctx, tr)
	}
	return cred, nil
}

func (d *codeDriver) Refresh(ctx context.Context, cred *session.Credential) (*session.Credential, error) {
	if !d.refresh {
		return nil, ErrRefreshUnsupported
	}
	tr, err := d.client.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, err
	}
	next := credentialFromToken(d.provider, tr)
	next.UserID, next.Username = cred.UserID, cred.Username
	return next, nil
}

// oauth1Driver implements the 1.0a three-legged flow. The request token
// doubles as the correlation state; its secret rides along in the
// pending entry.
type oauth1Driver struct {
	provider    session.Provider
	client      *oauth1.Client
	callbackURL string
}

func (d *oauth1Driver) Begin(ctx context.Context) (*session.PendingAuth, string, error) {
	token, secret, authURL, err := d.client.RequestToken(d.callbackURL)
	if err != nil {
		return nil, "", err
	}
	pending := &session.PendingAuth{
		Provider:      d.provider,
		State:         token,
		RequestSecret: secret,
	}
	return pending, authURL, nil
}

func (d *oauth1Driver) Complete(cb Callback) bool {
	return cb.OAuthToken != "" && cb.OAuthVerifier != ""
}

func (d *oauth1Driver) Finish(ctx context.Context, pending *session.PendingAuth, cb Callback) (*session.Credential, error) {
	access, err := d.client.AccessToken(pending.State, pending.RequestSecret, cb.OAuthVerifier)
	if err != nil {
		return nil, err
	}
	return &session.Credential{
		Provider:     d.provider,
		AccessToken:  access.Token,
		AccessSecret: access.Secret,
		UserID:       access.UserID,
		Username:     access.ScreenName,
	}, nil
}

func (d *oauth1Driver) Refresh(ctx context.Context, cred *session.Credential) (*session.Credential, error) {
	return nil, ErrRefreshUnsupported
}

func credentialFromToken(provider session.Provider, tr *oauth2.TokenResponse) *session.Credential {
	cred := &session.Credential{
		Provider:     provider,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		cred.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.OpenID != "" {
		cred.UserID = tr.OpenID
	}
	return cred
}
