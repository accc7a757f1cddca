package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memefeed/internal/api/middleware"
	"github.com/timmy/memefeed/internal/service"
)

// FeedHandler serves assembled feed pages.
type FeedHandler struct {
	feed service.FeedAggregator
}

// NewFeedHandler creates a new feed handler.
// Parameters:
//   - feed: feed aggregator.
// Returns:
//   - *FeedHandler: initialized handler.
func NewFeedHandler(feed service.FeedAggregator) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// GetFeed handles GET /api/v1/feed?page=N.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) GetFeed(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		badRequest(c, "page must be an integer")
		return
	}

	result, err := h.feed.Aggregate(c.Request.Context(), middleware.Token(c), page)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
