package connect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost-labs/crosspost/pkg/oauth1"
	"github.com/crosspost-labs/crosspost/pkg/oauth2"
	"github.com/crosspost-labs/crosspost/pkg/platform"
	"github.com/crosspost-labs/crosspost/pkg/session"
)

// stubDriver counts exchange calls so tests can prove the state check
// happens before any network traffic.
type stubDriver struct {
	provider      session.Provider
	oauth1        bool
	states        []string
	finishCalls   int
	refreshCalls  int
	finishErr     error
	refreshErr    error
	rotateRefresh string
}

func (d *stubDriver) Begin(ctx context.Context) (*session.PendingAuth, string, error) {
	state := oauth2.GenerateState()
	d.states = append(d.states, state)
	return &session.PendingAuth{
		Provider: d.provider,
		State:    state,
		Verifier: oauth2.GenerateCodeVerifier(),
	}, "https://provider.example/authorize?state=" + state, nil
}

func (d *stubDriver) Complete(cb Callback) bool {
	if d.oauth1 {
		return cb.OAuthToken != "" && cb.OAuthVerifier != ""
	}
	return cb.Code != ""
}

func (d *stubDriver) Finish(ctx context.Context, pending *session.PendingAuth, cb Callback) (*session.Credential, error) {
	d.finishCalls++
	if d.finishErr != nil {
		return nil, d.finishErr
	}
	return &session.Credential{
		Provider:     d.provider,
		AccessToken:  "access-" + cb.Code,
		RefreshToken: "refresh-1",
	}, nil
}

func (d *stubDriver) Refresh(ctx context.Context, cred *session.Credential) (*session.Credential, error) {
	d.refreshCalls++
	if d.refreshErr != nil {
		return nil, d.refreshErr
	}
	return &session.Credential{
		Provider:     d.provider,
		AccessToken:  "access-refreshed",
		RefreshToken: d.rotateRefresh,
	}, nil
}

// stubPlatform lets status tests script profile outcomes per call.
type stubPlatform struct {
	profileErrs []error
	calls       int
}

func (p *stubPlatform) Profile(ctx context.Context, cred *session.Credential) (*platform.Identity, error) {
	var err error
	if p.calls < len(p.profileErrs) {
		err = p.profileErrs[p.calls]
	}
	p.calls++
	if err != nil {
		return nil, err
	}
	return &platform.Identity{UserID: "u1", Username: "someone"}, nil
}

func (p *stubPlatform) Publish(ctx context.Context, cred *session.Credential, post *platform.Post) (*platform.PostResult, error) {
	if len(p.profileErrs) > 0 && p.profileErrs[0] != nil {
		return nil, p.profileErrs[0]
	}
	return &platform.PostResult{ID: "post-1"}, nil
}

func newTestOrchestrator(t *testing.T, provider session.Provider, opts ...Option) (*Orchestrator, *stubDriver, *session.Session) {
	t.Helper()
	driver := &stubDriver{provider: provider}
	cache := session.NewMemoryPendingCache(10*time.Minute, nil)
	o := NewOrchestrator(provider, driver, cache, opts...)
	return o, driver, session.New()
}

func TestCallbackUnknownStateNoNetworkCall(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderLinkedIn)

	_, _, err := o.Start(ctx, sess)
	require.NoError(t, err)

	_, err = o.Callback(ctx, sess, Callback{State: "never-issued", Code: "c1"})
	assert.Equal(t, CodeStateMismatch, ErrorCode(err))
	assert.Zero(t, driver.finishCalls, "state check must precede the exchange")
}

func TestCallbackSuccessAndReplay(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderLinkedIn)

	authURL, state, err := o.Start(ctx, sess)
	require.NoError(t, err)
	assert.Contains(t, authURL, "state="+state)

	cred, err := o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "access-c1", cred.AccessToken)
	assert.True(t, o.Status(ctx, sess, false).Connected)
	assert.Equal(t, 1, driver.finishCalls)

	// Replaying the identical callback must fail on the consumed state
	// without a second exchange.
	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	assert.Equal(t, CodeStateMismatch, ErrorCode(err))
	assert.Equal(t, 1, driver.finishCalls)
}

func TestSecondStartInvalidatesFirstFlow(t *testing.T) {
	ctx := context.Background()
	o, _, sess := newTestOrchestrator(t, session.ProviderYouTube)

	_, state1, err := o.Start(ctx, sess)
	require.NoError(t, err)
	_, state2, err := o.Start(ctx, sess)
	require.NoError(t, err)

	_, err = o.Callback(ctx, sess, Callback{State: state1, Code: "c1"})
	assert.Equal(t, CodeStateMismatch, ErrorCode(err), "overwritten flow must not complete")

	_, err = o.Callback(ctx, sess, Callback{State: state2, Code: "c2"})
	assert.NoError(t, err)
}

func TestCallbackDenied(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderTwitter)

	_, _, err := o.Start(ctx, sess)
	require.NoError(t, err)

	_, err = o.Callback(ctx, sess, Callback{Denied: true})
	assert.Equal(t, CodeUserDenied, ErrorCode(err))
	assert.Zero(t, driver.finishCalls)
}

func TestCallbackMissingParameters(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderLinkedIn)

	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)

	_, err = o.Callback(ctx, sess, Callback{State: state})
	assert.Equal(t, CodeInvalidRequest, ErrorCode(err))
	assert.Zero(t, driver.finishCalls)
	assert.False(t, o.Status(ctx, sess, false).Connected)
}

func TestCallbackVerifierDoesNotSatisfyCodeFlow(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderLinkedIn)

	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)

	// A code-flow callback without a code is incomplete no matter what
	// other parameters ride along with it.
	_, err = o.Callback(ctx, sess, Callback{State: state, OAuthVerifier: "smuggled"})
	assert.Equal(t, CodeInvalidRequest, ErrorCode(err))
	assert.Zero(t, driver.finishCalls)

	// The incomplete callback consumed nothing; the real one still goes
	// through.
	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	assert.NoError(t, err)
}

func TestCallbackRequestTokenRefused(t *testing.T) {
	ctx := context.Background()
	driver := &stubDriver{provider: session.ProviderTwitter, oauth1: true}
	driver.finishErr = &oauth1.Error{StatusCode: 401, Body: "invalid consumer key"}
	cache := session.NewMemoryPendingCache(10*time.Minute, nil)
	o := NewOrchestrator(session.ProviderTwitter, driver, cache)

	sess := session.New()
	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)

	_, err = o.Callback(ctx, sess, Callback{OAuthToken: state, OAuthVerifier: "v1"})
	assert.Equal(t, CodeProviderRejected, ErrorCode(err), "a refusing provider is not a transport failure")
}

func TestCallbackProviderRejected(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderTikTok)
	driver.finishErr = &oauth2.Error{Code: "invalid_grant", Description: "verifier mismatch"}

	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)

	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	assert.Equal(t, CodeProviderRejected, ErrorCode(err))
	assert.Nil(t, sess.Credential(session.ProviderTikTok), "no credential on failed exchange")
}

func TestCallbackNetworkError(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderFacebook)
	driver.finishErr = errors.New("dial tcp: connection refused")

	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)

	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	assert.Equal(t, CodeNetworkError, ErrorCode(err))
}

func TestCallbackFallsBackToCacheWhenSessionLost(t *testing.T) {
	ctx := context.Background()
	driver := &stubDriver{provider: session.ProviderTwitter, oauth1: true}
	cache := session.NewMemoryPendingCache(10*time.Minute, nil)
	o := NewOrchestrator(session.ProviderTwitter, driver, cache)

	sess := session.New()
	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)

	// The redirect comes back on a fresh session: the cookie write
	// never made it to the browser.
	freshSess := session.New()
	cred, err := o.Callback(ctx, freshSess, Callback{OAuthToken: state, OAuthVerifier: "v1"})
	require.NoError(t, err)
	assert.NotNil(t, cred)
	assert.True(t, o.Status(ctx, freshSess, false).Connected)
}

func TestCallbackExpiredState(t *testing.T) {
	ctx := context.Background()
	current := time.Now()
	now := func() time.Time { return current }

	driver := &stubDriver{provider: session.ProviderLinkedIn}
	cache := session.NewMemoryPendingCache(10*time.Minute, now)
	o := NewOrchestrator(session.ProviderLinkedIn, driver, cache,
		WithPendingTTL(10*time.Minute), WithClock(now))

	sess := session.New()
	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)

	current = current.Add(11 * time.Minute)
	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	assert.Equal(t, CodeStateMismatch, ErrorCode(err))
	assert.Zero(t, driver.finishCalls)
}

func TestRefreshKeepsOldTokenWhenNotRotated(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderYouTube)

	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)
	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	require.NoError(t, err)

	driver.rotateRefresh = "" // provider does not rotate
	cred, err := o.Refresh(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "access-refreshed", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken, "old refresh token retained")

	driver.rotateRefresh = "refresh-2"
	cred, err = o.Refresh(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", cred.RefreshToken, "rotated refresh token replaced")
}

func TestRefreshFailureKeepsCredential(t *testing.T) {
	ctx := context.Background()
	o, driver, sess := newTestOrchestrator(t, session.ProviderYouTube)

	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)
	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	require.NoError(t, err)

	driver.refreshErr = &oauth2.Error{Code: "invalid_grant", Description: "refresh token revoked"}
	_, err = o.Refresh(ctx, sess)
	assert.Equal(t, CodeRefreshFailed, ErrorCode(err))
	assert.NotNil(t, sess.Credential(session.ProviderYouTube), "failure clears nothing automatically")
}

func TestRefreshWithoutCredential(t *testing.T) {
	ctx := context.Background()
	o, _, sess := newTestOrchestrator(t, session.ProviderYouTube)

	_, err := o.Refresh(ctx, sess)
	assert.Equal(t, CodeNotConnected, ErrorCode(err))
}

func TestStatusLiveClearsRejectedCredential(t *testing.T) {
	ctx := context.Background()
	stub := &stubPlatform{profileErrs: []error{platform.ErrAuthRejected}}
	driver := &stubDriver{provider: session.ProviderTwitter}
	cache := session.NewMemoryPendingCache(10*time.Minute, nil)
	o := NewOrchestrator(session.ProviderTwitter, driver, cache, WithPlatform(stub))

	sess := session.New()
	sess.SetCredential(&session.Credential{Provider: session.ProviderTwitter, AccessToken: "stale"})

	status := o.Status(ctx, sess, true)
	assert.False(t, status.Connected)
	assert.Nil(t, sess.Credential(session.ProviderTwitter), "stale credential cleared")
}

func TestStatusLiveRefreshesBeforeClearing(t *testing.T) {
	ctx := context.Background()
	stub := &stubPlatform{profileErrs: []error{platform.ErrAuthRejected, nil}}
	driver := &stubDriver{provider: session.ProviderYouTube}
	cache := session.NewMemoryPendingCache(10*time.Minute, nil)
	o := NewOrchestrator(session.ProviderYouTube, driver, cache, WithPlatform(stub))

	sess := session.New()
	sess.SetCredential(&session.Credential{
		Provider:     session.ProviderYouTube,
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
	})

	status := o.Status(ctx, sess, true)
	assert.True(t, status.Connected, "refreshable credential is refreshed, not cleared")
	assert.Equal(t, 1, driver.refreshCalls)
	assert.Equal(t, "access-refreshed", sess.Credential(session.ProviderYouTube).AccessToken)
}

func TestStatusLiveTransportErrorAfterRefreshKeepsCredential(t *testing.T) {
	ctx := context.Background()
	stub := &stubPlatform{profileErrs: []error{platform.ErrAuthRejected, errors.New("dial tcp: i/o timeout")}}
	driver := &stubDriver{provider: session.ProviderYouTube}
	cache := session.NewMemoryPendingCache(10*time.Minute, nil)
	o := NewOrchestrator(session.ProviderYouTube, driver, cache, WithPlatform(stub))

	sess := session.New()
	sess.SetCredential(&session.Credential{
		Provider:     session.ProviderYouTube,
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
	})

	status := o.Status(ctx, sess, true)
	assert.True(t, status.Connected, "transport trouble on the re-check says nothing about the credential")
	assert.NotNil(t, sess.Credential(session.ProviderYouTube))
}

func TestDisconnectIdempotent(t *testing.T) {
	ctx := context.Background()
	o, _, sess := newTestOrchestrator(t, session.ProviderLinkedIn)

	_, state, err := o.Start(ctx, sess)
	require.NoError(t, err)
	_, err = o.Callback(ctx, sess, Callback{State: state, Code: "c1"})
	require.NoError(t, err)

	o.Disconnect(ctx, sess)
	assert.False(t, o.Status(ctx, sess, false).Connected)
	o.Disconnect(ctx, sess)
	assert.False(t, o.Status(ctx, sess, false).Connected)
}

func TestPublishWithoutCredential(t *testing.T) {
	ctx := context.Background()
	o, _, sess := newTestOrchestrator(t, session.ProviderTwitter)

	_, err := o.Publish(ctx, sess, &platform.Post{Text: "hello"})
	assert.Equal(t, CodeNotConnected, ErrorCode(err))
}

func TestPublishAuthRejectionInvalidatesCredential(t *testing.T) {
	ctx := context.Background()
	stub := &stubPlatform{profileErrs: []error{platform.ErrAuthRejected}}
	driver := &stubDriver{provider: session.ProviderTwitter}
	cache := session.NewMemoryPendingCache(10*time.Minute, nil)
	o := NewOrchestrator(session.ProviderTwitter, driver, cache, WithPlatform(stub))

	sess := session.New()
	sess.SetCredential(&session.Credential{Provider: session.ProviderTwitter, AccessToken: "stale"})

	_, err := o.Publish(ctx, sess, &platform.Post{Text: "hello"})
	assert.Equal(t, CodeProviderRejected, ErrorCode(err))
	assert.Nil(t, sess.Credential(session.ProviderTwitter))
}
