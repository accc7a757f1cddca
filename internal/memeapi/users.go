package memeapi

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/memefeed/internal/domain"
)

// GetUser fetches a user profile by id (GET /users/{id}).
func (c *Client) GetUser(ctx context.Context, token, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.NewValidationError("get_user", "user id is required")
	}

	var out domain.User
	err := c.do(ctx, "get_user", func() (*resty.Response, error) {
		return c.reads.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetPathParam("id", id).
			SetResult(&out).
			SetError(&apiError{}).
			Get("/users/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
