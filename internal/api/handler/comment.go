package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memefeed/internal/api/middleware"
	"github.com/timmy/memefeed/internal/domain"
)

// CommentCreator posts a comment and returns it with its author.
type CommentCreator interface {
	Create(ctx context.Context, token, memeID, content string) (*domain.CommentWithDetails, error)
}

// CommentHandler handles comment endpoints.
type CommentHandler struct {
	comments CommentCreator
}

// NewCommentHandler creates a new comment handler.
func NewCommentHandler(comments CommentCreator) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// CreateCommentRequest is the body of POST /api/v1/memes/:id/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// CreateComment handles POST /api/v1/memes/:id/comments.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), middleware.Token(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}
