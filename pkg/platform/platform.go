// Package platform contains the per-provider API clients the OAuth core
// hands finalized credentials to. The core only depends on the Client
// interface; the concrete clients here implement the cheap profile call
// used for live connection checks and a minimal text publish.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crosspost-labs/crosspost/pkg/session"
	"github.com/crosspost-labs/crosspost/pkg/upload"
)

// ErrAuthRejected marks a provider response that refused the credential
// itself (401/403). The caller invalidates the stored credential on it.
var ErrAuthRejected = errors.New("platform: authorization rejected")

// ErrUnsupported marks an operation the provider client does not
// implement (e.g. publishing without media where media is mandatory).
var ErrUnsupported = errors.New("platform: operation not supported")

type Identity struct {
	UserID       string `json:"userId"`
	Username     string `json:"username,omitempty"`
	Name         string `json:"name,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

type Post struct {
	Text  string
	Media upload.Upload // nil for text-only posts
}

type PostResult struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

type Client interface {
	Profile(ctx context.Context, cred *session.Credential) (*Identity, error)
	Publish(ctx context.Context, cred *session.Credential, post *Post) (*PostResult, error)
}

const defaultTimeout = 15 * time.Second

func httpClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// doJSON runs the request, maps auth failures to ErrAuthRejected and
// decodes a 2xx JSON body into out (when out is non-nil).
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to call %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d from %s", ErrAuthRejected, resp.StatusCode, req.URL.Host)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, req.URL.Host, truncate(body, 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unable to decode response from %s: %w", req.URL.Host, err)
	}
	return nil
}

func bearerRequest(ctx context.Context, method, url string, body io.Reader, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
