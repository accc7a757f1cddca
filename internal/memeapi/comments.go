package memeapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/memefeed/internal/domain"
)

type createCommentBody struct {
	Content string `json:"content"`
}

// ListComments fetches one page of a meme's comments (GET /memes/{id}/comments?page=N).
func (c *Client) ListComments(ctx context.Context, token, memeID string, page int) (*domain.Page[domain.Comment], error) {
	if page < 1 {
		return nil, domain.NewValidationError("list_comments", fmt.Sprintf("page must be positive, got %d", page))
	}

	var out domain.Page[domain.Comment]
	err := c.do(ctx, "list_comments", func() (*resty.Response, error) {
		return c.reads.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetPathParam("id", memeID).
			SetQueryParam("page", strconv.Itoa(page)).
			SetResult(&out).
			SetError(&apiError{}).
			Get("/memes/{id}/comments")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateComment posts a comment on a meme (POST /memes/{id}/comments).
func (c *Client) CreateComment(ctx context.Context, token, memeID, content string) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewValidationError("create_comment", "comment content is empty")
	}

	var out domain.Comment
	err := c.do(ctx, "create_comment", func() (*resty.Response, error) {
		return c.writes.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetPathParam("id", memeID).
			SetHeader("Content-Type", "application/json").
			SetBody(createCommentBody{Content: content}).
			SetResult(&out).
			SetError(&apiError{}).
			Post("/memes/{id}/comments")
	})
	if err != nil {
		return nil, err
	}
	if out.MemeID == "" {
		out.MemeID = memeID
	}
	return &out, nil
}
