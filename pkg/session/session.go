// Package session holds the server-side state of the single user
// session: at most one in-flight authorization per provider and at most
// one finalized credential per provider.
package session

import (
	"time"

	"github.com/segmentio/ksuid"
)

type Provider string

const (
	ProviderTwitter   Provider = "twitter"
	ProviderLinkedIn  Provider = "linkedin"
	ProviderYouTube   Provider = "youtube"
	ProviderFacebook  Provider = "facebook"
	ProviderInstagram Provider = "instagram"
	ProviderTikTok    Provider = "tiktok"
)

func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(s); p {
	case ProviderTwitter, ProviderLinkedIn, ProviderYouTube,
		ProviderFacebook, ProviderInstagram, ProviderTikTok:
		return p, true
	}
	return "", false
}

// PendingAuth is the correlation material of one in-flight flow. State
// doubles as the lookup key: the OAuth2 state parameter, or the OAuth
// 1.0a request token.
type PendingAuth struct {
	Provider Provider `json:"provider"`
	State    string   `json:"state"`

	// Verifier is the PKCE code verifier (OAuth2+PKCE flows).
	Verifier string `json:"verifier,omitempty"`

	// RequestSecret is the request token secret (OAuth 1.0a flows).
	RequestSecret string `json:"request_secret,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p *PendingAuth) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Credential is a finalized provider credential owned by the session.
type Credential struct {
	Provider    Provider `json:"provider"`
	AccessToken string   `json:"access_token"`

	// AccessSecret is the OAuth 1.0a access token secret.
	AccessSecret string `json:"access_secret,omitempty"`

	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`

	// Expiry is zero when the provider did not report a lifetime.
	Expiry time.Time `json:"expiry,omitempty"`

	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

type Session struct {
	ID          string                    `json:"id"`
	CreatedAt   time.Time                 `json:"created_at"`
	Pending     map[Provider]*PendingAuth `json:"pending,omitempty"`
	Credentials map[Provider]*Credential  `json:"credentials,omitempty"`
}

func New() *Session {
	return &Session{
		ID:          ksuid.New().String(),
		CreatedAt:   time.Now(),
		Pending:     map[Provider]*PendingAuth{},
		Credentials: map[Provider]*Credential{},
	}
}

// clone returns a deep copy. Stores hand each caller its own copy, so
// two requests resuming the same session never share map storage.
func (s *Session) clone() *Session {
	next := &Session{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		Pending:     make(map[Provider]*PendingAuth, len(s.Pending)),
		Credentials: make(map[Provider]*Credential, len(s.Credentials)),
	}
	for provider, pending := range s.Pending {
		copied := *pending
		next.Pending[provider] = &copied
	}
	for provider, cred := range s.Credentials {
		copied := *cred
		next.Credentials[provider] = &copied
	}
	return next
}

// SetPending installs the in-flight state for a provider, replacing any
// previous one. An abandoned flow cannot complete afterwards.
func (s *Session) SetPending(p *PendingAuth) {
	if s.Pending == nil {
		s.Pending = map[Provider]*PendingAuth{}
	}
	s.Pending[p.Provider] = p
}

// TakePending consumes the pending state for provider if its state
// value matches and it has not expired. Consumption is terminal.
func (s *Session) TakePending(provider Provider, state string, now time.Time) *PendingAuth {
	pending, ok := s.Pending[provider]
	if !ok || pending.State != state {
		return nil
	}
	delete(s.Pending, provider)
	if pending.Expired(now) {
		return nil
	}
	return pending
}

func (s *Session) ClearPending(provider Provider) {
	delete(s.Pending, provider)
}

func (s *Session) SetCredential(c *Credential) {
	if s.Credentials == nil {
		s.Credentials = map[Provider]*Credential{}
	}
	s.Credentials[c.Provider] = c
}

func (s *Session) Credential(provider Provider) *Credential {
	return s.Credentials[provider]
}

func (s *Session) ClearCredential(provider Provider) {
	delete(s.Credentials, provider)
}
