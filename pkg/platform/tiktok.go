package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/crosspost-labs/crosspost/pkg/session"
)

// TikTok talks to the open API; the open_id travels in a header next to
// the bearer token.
type TikTok struct {
	BaseURL string
}

func NewTikTok() *TikTok {
	return &TikTok{BaseURL: "https://open.tiktokapis.com"}
}

func (t *TikTok) Profile(ctx context.Context, cred *session.Credential) (*Identity, error) {
	url := t.BaseURL + "/v2/user/info/?fields=open_id,display_name,avatar_url"
	req, err := bearerRequest(ctx, http.MethodGet, url, nil, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	var body struct {
		Data struct {
			User struct {
				OpenID      string `json:"open_id"`
				DisplayName string `json:"display_name"`
				AvatarURL   string `json:"avatar_url"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &Identity{
		UserID:       body.Data.User.OpenID,
		Name:         body.Data.User.DisplayName,
		ProfileImage: body.Data.User.AvatarURL,
	}, nil
}

func (t *TikTok) Publish(ctx context.Context, cred *session.Credential, post *Post) (*PostResult, error) {
	if post.Media == nil {
		return nil, fmt.Errorf("%w: tiktok publishing requires a video", ErrUnsupported)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("video", post.Media.Filename())
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, bytes.NewReader(post.Media.Bytes())); err != nil {
		return nil, err
	}
	writer.Close()

	url := t.BaseURL + "/v2/post/publish/inbox/video/upload/"
	req, err := bearerRequest(ctx, http.MethodPost, url, &buf, cred.AccessToken)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-open-id", cred.UserID)

	var body struct {
		Data struct {
			VideoID string `json:"video_id"`
		} `json:"data"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &PostResult{ID: body.Data.VideoID}, nil
}
