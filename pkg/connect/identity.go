package connect

import (
	"context"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/crosspost-labs/crosspost/pkg/oauth2"
)

// oidcIdentity derives the resource owner's identity from the id_token
// some providers add to the token response (LinkedIn). The issuer's
// signing keys come from an auto-refreshing JWKS cache; fetching is
// deferred until the first token arrives so construction works offline.
type oidcIdentity struct {
	issuer   string
	jwksURI  string
	audience string
	keyCache *jwk.Cache
}

func newOIDCIdentity(issuer, jwksURI, audience string) *oidcIdentity {
	keyCache := jwk.NewCache(context.Background())
	keyCache.Register(jwksURI, jwk.WithMinRefreshInterval(15*time.Minute))

	return &oidcIdentity{
		issuer:   issuer,
		jwksURI:  jwksURI,
		audience: audience,
		keyCache: keyCache,
	}
}

// resolve implements IdentityFunc. Identity is advisory next to the
// credential itself, so verification failures log and return empty
// rather than failing the flow.
func (o *oidcIdentity) resolve(ctx context.Context, tr *oauth2.TokenResponse) (string, string) {
	if tr.IDToken == "" {
		return "", ""
	}

	keySet, err := o.keyCache.Get(ctx, o.jwksURI)
	if err != nil {
		slog.Warn("unable to fetch issuer keys", "issuer", o.issuer, "error", err)
		return "", ""
	}

	token, err := jwt.ParseString(
		tr.IDToken,
		jwt.WithKeySet(keySet),
		jwt.WithIssuer(o.issuer),
		jwt.WithAudience(o.audience),
		jwt.WithRequiredClaim("exp"),
	)
	if err != nil {
		slog.Warn("unable to verify id token", "issuer", o.issuer, "error", err)
		return "", ""
	}

	var name string
	if v, ok := token.Get("name"); ok {
		name, _ = v.(string)
	}
	return token.Subject(), name
}
