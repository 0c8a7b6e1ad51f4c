package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/crosspost-labs/crosspost/pkg/session"
)

// YouTube reads the authenticated channel for identity checks and
// supports the simple (media-only) video upload.
type YouTube struct {
	APIBaseURL    string
	UploadBaseURL string
}

func NewYouTube() *YouTube {
	return &YouTube{
		APIBaseURL:    "https://www.googleapis.com",
		UploadBaseURL: "https://www.googleapis.com/upload",
	}
}

func (y *YouTube) Profile(ctx context.Context, cred *session.Credential) (*Identity, error) {
	url := y.APIBaseURL + "/youtube/v3/channels?part=snippet&mine=true"
	req, err := bearerRequest(ctx, http.MethodGet, url, nil, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	var body struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title      string `json:"title"`
				Thumbnails struct {
					Default struct {
						URL string `json:"url"`
					} `json:"default"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}
	if len(body.Items) == 0 {
		return nil, fmt.Errorf("no channel found for this account")
	}

	channel := body.Items[0]
	return &Identity{
		UserID:       channel.ID,
		Name:         channel.Snippet.Title,
		ProfileImage: channel.Snippet.Thumbnails.Default.URL,
	}, nil
}

func (y *YouTube) Publish(ctx context.Context, cred *session.Credential, post *Post) (*PostResult, error) {
	if post.Media == nil {
		return nil, fmt.Errorf("%w: video upload requires media", ErrUnsupported)
	}

	url := y.UploadBaseURL + "/youtube/v3/videos?part=snippet&uploadType=media"
	req, err := bearerRequest(ctx, http.MethodPost, url, bytes.NewReader(post.Media.Bytes()), cred.AccessToken)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", post.Media.MIMEType())

	var body struct {
		ID string `json:"id"`
	}
	if err := doJSON(httpClient(), req, &body); err != nil {
		return nil, err
	}

	return &PostResult{
		ID:  body.ID,
		URL: "https://www.youtube.com/watch?v=" + body.ID,
	}, nil
}
