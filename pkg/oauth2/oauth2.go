// Package oauth2 implements the client side of the OAuth 2.0
// authorization code flow, with and without PKCE (RFC 7636).
package oauth2

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
)

type ParameterOption func(params url.Values)

// WithParam sets an additional query or form parameter on the
// authorization or token request.
func WithParam(key, value string) ParameterOption {
	return func(params url.Values) {
		if value != "" {
			params.Set(key, value)
		}
	}
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	// OpenID is set by providers which identify the resource owner in
	// the token response itself (TikTok).
	OpenID string `json:"open_id"`
}

type CodeChallengeMethod string

const (
	CodeChallengeMethodS256 CodeChallengeMethod = "S256"
)

// Error is the error document returned by a provider's token endpoint,
// i.e. the provider understood the request and rejected it.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// GenerateState returns a fresh correlation token for a single
// authorization flow: 16 bytes from crypto/rand, hex encoded.
func GenerateState() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("random number generation failed")
	}
	return hex.EncodeToString(buf)
}

const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

func GenerateCodeVerifier() string {
	n := 128
	ret := make([]byte, n)
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			panic("random number generation failed")
		}
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}

func S256ChallengeFromVerifier(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
}
