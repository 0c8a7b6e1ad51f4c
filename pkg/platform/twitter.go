package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/crosspost-labs/crosspost/pkg/oauth1"
	"github.com/crosspost-labs/crosspost/pkg/session"
)

// Twitter talks to the v2 API with OAuth 1.0a user-context signing.
type Twitter struct {
	signer  *oauth1.Client
	BaseURL string
}

func NewTwitter(signer *oauth1.Client) *Twitter {
	return &Twitter{signer: signer, BaseURL: "https://api.twitter.com"}
}

func (t *Twitter) client(cred *session.Credential) (*http.Client, error) {
	return t.signer.HTTPClient(cred.AccessToken, cred.AccessSecret)
}

func (t *Twitter) Profile(ctx context.Context, cred *session.Credential) (*Identity, error) {
	client, err := t.client(cred)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/2/users/me?user.fields=profile_image_url", nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Data struct {
			ID           string `json:"id"`
			Username     string `json:"username"`
			Name         string `json:"name"`
			ProfileImage string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := doJSON(client, req, &body); err != nil {
		return nil, err
	}

	return &Identity{
		UserID:       body.Data.ID,
		Username:     body.Data.Username,
		Name:         body.Data.Name,
		ProfileImage: body.Data.ProfileImage,
	}, nil
}

const maxTweetLength = 280

func (t *Twitter) Publish(ctx context.Context, cred *session.Credential, post *Post) (*PostResult, error) {
	if len([]rune(post.Text)) > maxTweetLength {
		return nil, fmt.Errorf("tweet exceeds %d character limit", maxTweetLength)
	}

	client, err := t.client(cred)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{"text": post.Text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := doJSON(client, req, &body); err != nil {
		return nil, err
	}

	return &PostResult{
		ID:  body.Data.ID,
		URL: "https://twitter.com/user/status/" + body.Data.ID,
	}, nil
}
