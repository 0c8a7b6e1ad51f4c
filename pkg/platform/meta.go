package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/crosspost-labs/crosspost/pkg/session"
)

// Facebook talks to the Graph API with a user access token.
type Facebook struct {
	BaseURL string
}

func NewFacebook() *Facebook {
	return &Facebook{BaseURL: "https://graph.facebook.com/v19.0"}
}

func (f *Facebook) Profile(ctx context.Context, cred *session.Credential) (*Identity, error) {
	req, err := bearerRequest(ctx, http.MethodGet, f.BaseURL+"/me?fields=id,name", nil, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &Identity{UserID: body.ID, Name: body.Name}, nil
}

func (f *Facebook) Publish(ctx context.Context, cred *session.Credential, post *Post) (*PostResult, error) {
	form := url.Values{}
	form.Set("message", post.Text)

	req, err := bearerRequest(ctx, http.MethodPost, f.BaseURL+"/me/feed", strings.NewReader(form.Encode()), cred.AccessToken)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body struct {
		ID string `json:"id"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &PostResult{ID: body.ID}, nil
}

// Instagram uses the Basic Display API, which passes the token as a
// query parameter instead of a header. Publishing needs the container
// flow and stays with the out-of-scope collaborator.
type Instagram struct {
	BaseURL string
}

func NewInstagram() *Instagram {
	return &Instagram{BaseURL: "https://graph.instagram.com"}
}

func (i *Instagram) Profile(ctx context.Context, cred *session.Credential) (*Identity, error) {
	endpoint := fmt.Sprintf("%s/me?fields=id,username&access_token=%s", i.BaseURL, url.QueryEscape(cred.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &Identity{UserID: body.ID, Username: body.Username}, nil
}

func (i *Instagram) Publish(ctx context.Context, cred *session.Credential, post *Post) (*PostResult, error) {
	return nil, fmt.Errorf("%w: instagram publishing requires the media container flow", ErrUnsupported)
}
