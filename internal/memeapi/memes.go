package memeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/memefeed/internal/domain"
)

// CreateMemeRequest is the multipart payload of POST /memes.
type CreateMemeRequest struct {
	Picture     io.Reader
	Filename    string
	ContentType string
	Texts       domain.Captions
	Description string
}

// ListMemes fetches one page of the meme feed (GET /memes?page=N).
func (c *Client) ListMemes(ctx context.Context, token string, page int) (*domain.Page[domain.Meme], error) {
	if page < 1 {
		return nil, domain.NewValidationError("list_memes", fmt.Sprintf("page must be positive, got %d", page))
	}

	var out domain.Page[domain.Meme]
	err := c.do(ctx, "list_memes", func() (*resty.Response, error) {
		return c.reads.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParam("page", strconv.Itoa(page)).
			SetResult(&out).
			SetError(&apiError{}).
			Get("/memes")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMeme uploads a picture with its captions and description (multipart POST /memes).
// Captions are sent as a JSON-encoded array in the "texts" field.
func (c *Client) CreateMeme(ctx context.Context, token string, req *CreateMemeRequest) (*domain.Meme, error) {
	if req == nil || req.Picture == nil {
		return nil, domain.NewValidationError("create_meme", "no picture selected")
	}

	texts := req.Texts
	if texts == nil {
		texts = domain.Captions{}
	}
	encoded, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode captions: %w", err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var out domain.Meme
	err = c.do(ctx, "create_meme", func() (*resty.Response, error) {
		return c.writes.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetMultipartField("picture", req.Filename, contentType, req.Picture).
			SetMultipartFormData(map[string]string{
				"texts":       string(encoded),
				"description": req.Description,
			}).
			SetResult(&out).
			SetError(&apiError{}).
			Post("/memes")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
