package connect

import (
	"log/slog"
	"net/url"

	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/crosspost-labs/crosspost/pkg/config"
	"github.com/crosspost-labs/crosspost/pkg/oauth1"
	"github.com/crosspost-labs/crosspost/pkg/oauth2"
	"github.com/crosspost-labs/crosspost/pkg/platform"
	"github.com/crosspost-labs/crosspost/pkg/session"
)

// TikTok is missing from x/oauth2/endpoints.
var tiktokEndpoint = xoauth2.Endpoint{
	AuthURL:  "https://www.tiktok.com/v2/auth/authorize",
	TokenURL: "https://open.tiktokapis.com/v2/oauth/token",
}

const (
	twitterRequestTokenURL = "https://api.twitter.com/oauth/request_token"
	twitterAuthorizeURL    = "https://api.twitter.com/oauth/authorize"
	twitterAccessTokenURL  = "https://api.twitter.com/oauth/access_token"

	linkedinIssuer  = "https://www.linkedin.com"
	linkedinJWKSURI = "https://www.linkedin.com/oauth/openid/jwks"
)

// Registry holds one orchestrator per configured provider.
type Registry struct {
	orchestrators map[session.Provider]*Orchestrator
}

// NewRegistry builds orchestrators for every provider with credentials
// in cfg. Unconfigured providers are skipped with a log line, not an
// error: a deployment connecting only two platforms is fine.
func NewRegistry(cfg *config.Config, cache session.PendingCache) *Registry {
	r := &Registry{orchestrators: map[session.Provider]*Orchestrator{}}

	add := func(provider session.Provider, driver Driver, client platform.Client) {
		r.orchestrators[provider] = NewOrchestrator(provider, driver, cache,
			WithPendingTTL(cfg.PendingTTL),
			WithPlatform(client),
		)
		slog.Info("provider registered", "provider", provider)
	}
	skip := func(provider session.Provider) {
		slog.Warn("provider not configured, skipping", "provider", provider)
	}

	if cfg.Twitter.Configured() {
		signer := oauth1.NewClient(oauth1.Config{
			ConsumerKey:     cfg.Twitter.APIKey,
			ConsumerSecret:  cfg.Twitter.APISecret,
			RequestTokenURL: twitterRequestTokenURL,
			AuthorizeURL:    twitterAuthorizeURL,
			AccessTokenURL:  twitterAccessTokenURL,
			Timeout:         cfg.ExchangeTimeout,
		})
		add(session.ProviderTwitter, &oauth1Driver{
			provider:    session.ProviderTwitter,
			client:      signer,
			callbackURL: cfg.CallbackURL("twitter"),
		}, platform.NewTwitter(signer))
	} else {
		skip(session.ProviderTwitter)
	}

	if cfg.LinkedIn.Configured() {
		client := oauth2.NewClient(oauth2.Config{
			ClientID:     cfg.LinkedIn.ClientID,
			ClientSecret: cfg.LinkedIn.ClientSecret,
			RedirectURI:  cfg.CallbackURL("linkedin"),
			Scopes:       cfg.ProviderScopes("linkedin", []string{"openid", "profile", "email", "w_member_social"}),
			Endpoint:     endpoints.LinkedIn,
			Timeout:      cfg.ExchangeTimeout,
		})
		identity := newOIDCIdentity(linkedinIssuer, linkedinJWKSURI, cfg.LinkedIn.ClientID)
		add(session.ProviderLinkedIn, &codeDriver{
			provider: session.ProviderLinkedIn,
			client:   client,
			identity: identity.resolve,
			refresh:  true,
		}, platform.NewLinkedIn())
	} else {
		skip(session.ProviderLinkedIn)
	}

	if cfg.YouTube.Configured() {
		client := oauth2.NewClient(oauth2.Config{
			ClientID:     cfg.YouTube.ClientID,
			ClientSecret: cfg.YouTube.ClientSecret,
			RedirectURI:  cfg.CallbackURL("youtube"),
			Scopes: cfg.ProviderScopes("youtube", []string{
				"https://www.googleapis.com/auth/youtube.upload",
				"https://www.googleapis.com/auth/youtube.readonly",
			}),
			Endpoint: endpoints.Google,
			AuthParams: url.Values{
				"access_type":            {"offline"},
				"prompt":                 {"consent"},
				"include_granted_scopes": {"true"},
			},
			Timeout: cfg.ExchangeTimeout,
		})
		add(session.ProviderYouTube, &codeDriver{
			provider: session.ProviderYouTube,
			client:   client,
			refresh:  true,
		}, platform.NewYouTube())
	} else {
		skip(session.ProviderYouTube)
	}

	if cfg.Facebook.Configured() {
		client := oauth2.NewClient(oauth2.Config{
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			RedirectURI:  cfg.CallbackURL("facebook"),
			Scopes:       cfg.ProviderScopes("facebook", []string{"public_profile", "email"}),
			Endpoint:     endpoints.Facebook,
			Timeout:      cfg.ExchangeTimeout,
		})
		add(session.ProviderFacebook, &codeDriver{
			provider: session.ProviderFacebook,
			client:   client,
		}, platform.NewFacebook())
	} else {
		skip(session.ProviderFacebook)
	}

	if cfg.Instagram.Configured() {
		client := oauth2.NewClient(oauth2.Config{
			ClientID:     cfg.Instagram.ClientID,
			ClientSecret: cfg.Instagram.ClientSecret,
			RedirectURI:  cfg.CallbackURL("instagram"),
			Scopes:       cfg.ProviderScopes("instagram", []string{"user_profile", "user_media"}),
			Endpoint:     endpoints.Instagram,
			Timeout:      cfg.ExchangeTimeout,
		})
		add(session.ProviderInstagram, &codeDriver{
			provider: session.ProviderInstagram,
			client:   client,
		}, platform.NewInstagram())
	} else {
		skip(session.ProviderInstagram)
	}

	if cfg.TikTok.Configured() {
		client := oauth2.NewClient(oauth2.Config{
			ClientID:      cfg.TikTok.ClientID,
			ClientSecret:  cfg.TikTok.ClientSecret,
			ClientIDParam: "client_key",
			RedirectURI:   cfg.CallbackURL("tiktok"),
			Scopes:        cfg.ProviderScopes("tiktok", []string{"user.info.basic", "video.upload"}),
			Endpoint:      tiktokEndpoint,
			UsePKCE:       true,
			Timeout:       cfg.ExchangeTimeout,
		})
		add(session.ProviderTikTok, &codeDriver{
			provider: session.ProviderTikTok,
			client:   client,
			pkce:     true,
			refresh:  true,
		}, platform.NewTikTok())
	} else {
		skip(session.ProviderTikTok)
	}

	return r
}

func (r *Registry) Get(provider session.Provider) (*Orchestrator, bool) {
	o, ok := r.orchestrators[provider]
	return o, ok
}

func (r *Registry) Providers() []session.Provider {
	providers := make([]session.Provider, 0, len(r.orchestrators))
	for p := range r.orchestrators {
		providers = append(providers, p)
	}
	return providers
}

// NewRegistryFromOrchestrators builds a registry from pre-built
// orchestrators. Exported for the HTTP layer's tests.
func NewRegistryFromOrchestrators(orchestrators []*Orchestrator) *Registry {
	m := make(map[session.Provider]*Orchestrator, len(orchestrators))
	for _, o := range orchestrators {
		m[o.Provider()] = o
	}
	return &Registry{orchestrators: m}
}
