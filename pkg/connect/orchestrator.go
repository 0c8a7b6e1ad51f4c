// Package connect sequences the OAuth flows: start, redirect out,
// callback in, token exchange, persistence and refresh. One
// orchestrator per provider; the per-variant exchange step hides behind
// the Driver interface.
package connect

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/crosspost-labs/crosspost/pkg/platform"
	"github.com/crosspost-labs/crosspost/pkg/session"
)

const defaultPendingTTL = 10 * time.Minute

type Orchestrator struct {
	provider   session.Provider
	driver     Driver
	cache      session.PendingCache
	platform   platform.Client
	pendingTTL time.Duration
	now        func() time.Time
}

type Option func(*Orchestrator)

func WithPendingTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.pendingTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithPlatform attaches the API client used for live status checks and
// publishing.
func WithPlatform(client platform.Client) Option {
	return func(o *Orchestrator) { o.platform = client }
}

func NewOrchestrator(provider session.Provider, driver Driver, cache session.PendingCache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:   provider,
		driver:     driver,
		cache:      cache,
		pendingTTL: defaultPendingTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Provider() session.Provider {
	return o.provider
}

// Start opens a fresh flow: new correlation material, persisted in the
// session and mirrored in the fallback cache, consent URL returned.
// Any previous in-flight state for this provider is overwritten; its
// correlation token will fail verification if presented later.
func (o *Orchestrator) Start(ctx context.Context, sess *session.Session) (authURL string, state string, err error) {
	pending, authURL, err := o.driver.Begin(ctx)
	if err != nil {
		return "", "", classifyExchange(err)
	}

	now := o.now()
	pending.CreatedAt = now
	pending.ExpiresAt = now.Add(o.pendingTTL)

	// A restarted flow supersedes the previous one everywhere, the
	// fallback cache included, so the old correlation token cannot
	// complete through either path.
	if prev := sess.Pending[o.provider]; prev != nil {
		if _, err := o.cache.Take(ctx, o.provider, prev.State); err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Warn("unable to purge superseded pending auth", "provider", o.provider, "error", err)
		}
	}

	sess.SetPending(pending)
	if err := o.cache.Put(ctx, pending); err != nil {
		// The primary session still carries the state; losing the
		// fallback path is survivable.
		slog.Warn("unable to mirror pending auth into cache", "provider", o.provider, "error", err)
	}

	return authURL, pending.State, nil
}

// Callback verifies the correlation value and performs the token
// exchange. The state check always precedes any network call; a
// consumed or unknown state never reaches the provider.
func (o *Orchestrator) Callback(ctx context.Context, sess *session.Session, cb Callback) (*session.Credential, error) {
	if cb.Denied || cb.ErrorCode == "access_denied" {
		return nil, newError(CodeUserDenied, "user denied authorization")
	}
	if cb.ErrorCode != "" {
		return nil, newError(CodeProviderRejected, cb.ErrorCode+": "+cb.ErrorDescription)
	}

	state := cb.State
	if state == "" {
		state = cb.OAuthToken
	}
	if state == "" || !o.driver.Complete(cb) {
		return nil, newError(CodeInvalidRequest, "missing callback parameters")
	}

	pending := o.takePending(ctx, sess, state)
	if pending == nil {
		return nil, newError(CodeStateMismatch, "unknown, expired or already used state")
	}

	cred, err := o.driver.Finish(ctx, pending, cb)
	if err != nil {
		return nil, classifyExchange(err)
	}

	sess.SetCredential(cred)
	return cred, nil
}

// takePending consumes the correlation entry from both lookup paths.
// The session value takes precedence when both exist; the cache entry
// is consumed regardless so nothing lingers after a completed flow.
func (o *Orchestrator) takePending(ctx context.Context, sess *session.Session, state string) *session.PendingAuth {
	fromSession := sess.TakePending(o.provider, state, o.now())

	fromCache, err := o.cache.Take(ctx, o.provider, state)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Warn("pending cache lookup failed", "provider", o.provider, "error", err)
	}

	if fromSession != nil {
		return fromSession
	}
	return fromCache
}

// Refresh replaces the stored access token using the refresh grant. A
// provider that rotates refresh tokens replaces the stored one too;
// otherwise the old refresh token is retained. Failure clears nothing:
// the caller decides whether to force a fresh Start.
func (o *Orchestrator) Refresh(ctx context.Context, sess *session.Session) (*session.Credential, error) {
	cred := sess.Credential(o.provider)
	if cred == nil {
		return nil, newError(CodeNotConnected, "no credential stored")
	}
	if cred.RefreshToken == "" {
		return nil, newError(CodeRefreshFailed, "no refresh token available")
	}

	next, err := o.driver.Refresh(ctx, cred)
	if err != nil {
		if errors.Is(err, ErrRefreshUnsupported) {
			return nil, wrapError(CodeRefreshFailed, "provider does not support refresh", err)
		}
		return nil, wrapError(CodeRefreshFailed, err.Error(), err)
	}

	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	sess.SetCredential(next)
	return next, nil
}

type Status struct {
	Connected bool               `json:"connected"`
	User      *platform.Identity `json:"user,omitempty"`
}

// Status answers "is this provider connected, and as whom". The cheap
// path only checks for a stored credential. The live path additionally
// asks the provider; a rejected credential is refreshed once when
// possible and cleared when that fails too.
func (o *Orchestrator) Status(ctx context.Context, sess *session.Session, live bool) Status {
	cred := sess.Credential(o.provider)
	if cred == nil {
		return Status{Connected: false}
	}
	if !live || o.platform == nil {
		return Status{Connected: true}
	}

	identity, err := o.platform.Profile(ctx, cred)
	if err == nil {
		return Status{Connected: true, User: identity}
	}
	if !errors.Is(err, platform.ErrAuthRejected) {
		// Transport trouble says nothing about the credential.
		slog.Warn("live status check failed", "provider", o.provider, "error", err)
		return Status{Connected: true}
	}

	// Rejected: one refresh attempt before giving the credential up.
	// The re-check distinguishes transport trouble from rejection the
	// same way the first check does.
	if cred.RefreshToken != "" {
		if refreshed, err := o.Refresh(ctx, sess); err == nil {
			identity, err := o.platform.Profile(ctx, refreshed)
			if err == nil {
				return Status{Connected: true, User: identity}
			}
			if !errors.Is(err, platform.ErrAuthRejected) {
				slog.Warn("live status re-check failed", "provider", o.provider, "error", err)
				return Status{Connected: true}
			}
		}
	}

	sess.ClearCredential(o.provider)
	return Status{Connected: false}
}

// Publish sends a post through the platform client with the stored
// credential. An auth-rejected response invalidates the credential.
func (o *Orchestrator) Publish(ctx context.Context, sess *session.Session, post *platform.Post) (*platform.PostResult, error) {
	cred := sess.Credential(o.provider)
	if cred == nil {
		return nil, newError(CodeNotConnected, "no credential stored")
	}
	if o.platform == nil {
		return nil, newError(CodeInvalidRequest, "publishing not configured for provider")
	}

	result, err := o.platform.Publish(ctx, cred, post)
	if err != nil {
		switch {
		case errors.Is(err, platform.ErrAuthRejected):
			sess.ClearCredential(o.provider)
			return nil, wrapError(CodeProviderRejected, "credential no longer accepted", err)
		case errors.Is(err, platform.ErrUnsupported):
			return nil, wrapError(CodeInvalidRequest, err.Error(), err)
		default:
			return nil, wrapError(CodeNetworkError, err.Error(), err)
		}
	}
	return result, nil
}

// Disconnect drops the stored credential and any in-flight correlation
// state, in the fallback cache too. Safe to call repeatedly.
func (o *Orchestrator) Disconnect(ctx context.Context, sess *session.Session) {
	if pending := sess.Pending[o.provider]; pending != nil {
		if _, err := o.cache.Take(ctx, o.provider, pending.State); err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Warn("unable to purge pending cache entry", "provider", o.provider, "error", err)
		}
	}
	sess.ClearPending(o.provider)
	sess.ClearCredential(o.provider)
}
