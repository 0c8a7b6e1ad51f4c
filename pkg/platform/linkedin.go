package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/crosspost-labs/crosspost/pkg/session"
)

// LinkedIn uses the OIDC userinfo endpoint for identity and ugcPosts
// for text shares.
type LinkedIn struct {
	BaseURL string
}

func NewLinkedIn() *LinkedIn {
	return &LinkedIn{BaseURL: "https://api.linkedin.com"}
}

func (l *LinkedIn) Profile(ctx context.Context, cred *session.Credential) (*Identity, error) {
	req, err := bearerRequest(ctx, http.MethodGet, l.BaseURL+"/v2/userinfo", nil, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	var body struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &Identity{UserID: body.Sub, Name: body.Name, ProfileImage: body.Picture}, nil
}

func (l *LinkedIn) Publish(ctx context.Context, cred *session.Credential, post *Post) (*PostResult, error) {
	author := "urn:li:person:" + cred.UserID

	payload, _ := json.Marshal(map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": post.Text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	})

	req, err := bearerRequest(ctx, http.MethodPost, l.BaseURL+"/v2/ugcPosts", bytes.NewReader(payload), cred.AccessToken)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	var body struct {
		ID string `json:"id"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &PostResult{ID: body.ID}, nil
}
