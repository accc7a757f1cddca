package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memefeed/internal/api/middleware"
	"github.com/timmy/memefeed/internal/domain"
)

// Drafts is the draft service used by DraftHandler.
type Drafts interface {
	Create(ctx context.Context, token string) (*domain.Draft, error)
	List(ctx context.Context, token string, limit int) ([]domain.Draft, error)
	Get(ctx context.Context, token, id string) (*domain.Draft, error)
	Picture(ctx context.Context, token, id string) (io.ReadCloser, string, error)
	SetPicture(ctx context.Context, token, id, name string, data []byte) (*domain.Draft, error)
	AddCaption(ctx context.Context, token, id string) (*domain.Draft, error)
	EditCaption(ctx context.Context, token, id string, index int, text string) (*domain.Draft, error)
	DeleteCaption(ctx context.Context, token, id string, index int) (*domain.Draft, error)
	SetDescription(ctx context.Context, token, id, text string) (*domain.Draft, error)
	Submit(ctx context.Context, token, id string) (*domain.Draft, *domain.Meme, error)
	Delete(ctx context.Context, token, id string) error
}

// DraftHandler handles meme composer endpoints.
type DraftHandler struct {
	drafts     Drafts
	maxPicture int64
}

// NewDraftHandler creates a new draft handler.
// Parameters:
//   - drafts: draft service.
//   - maxPicture: largest accepted picture upload in bytes.
// Returns:
//   - *DraftHandler: initialized handler.
func NewDraftHandler(drafts Drafts, maxPicture int64) *DraftHandler {
	if maxPicture <= 0 {
		maxPicture = 10 << 20
	}
	return &DraftHandler{drafts: drafts, maxPicture: maxPicture}
}

// EditCaptionRequest is the body of PUT /api/v1/drafts/:id/captions/:index.
type EditCaptionRequest struct {
	Content string `json:"content"`
}

// DescriptionRequest is the body of PUT /api/v1/drafts/:id/description.
type DescriptionRequest struct {
	Description string `json:"description"`
}

// SubmitResponse is returned by POST /api/v1/drafts/:id/submit.
type SubmitResponse struct {
	Draft *domain.Draft `json:"draft"`
	Meme  *domain.Meme  `json:"meme,omitempty"`
}

// Create handles POST /api/v1/drafts.
func (h *DraftHandler) Create(c *gin.Context) {
	draft, err := h.drafts.Create(c.Request.Context(), middleware.Token(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// List handles GET /api/v1/drafts.
func (h *DraftHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	drafts, err := h.drafts.List(c.Request.Context(), middleware.Token(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	c.JSON(http.StatusOK, gin.H{"results": drafts})
}

// Get handles GET /api/v1/drafts/:id.
func (h *DraftHandler) Get(c *gin.Context) {
	draft, err := h.drafts.Get(c.Request.Context(), middleware.Token(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Delete handles DELETE /api/v1/drafts/:id.
func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.drafts.Delete(c.Request.Context(), middleware.Token(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetPicture handles PUT /api/v1/drafts/:id/picture with a multipart "picture" file.
func (h *DraftHandler) SetPicture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPicture+1<<20)

	file, err := c.FormFile("picture")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "picture is too large"})
			return
		}
		badRequest(c, "picture file is required")
		return
	}
	if file.Size > h.maxPicture {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "picture is too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, err)
		return
	}

	draft, err := h.drafts.SetPicture(c.Request.Context(), middleware.Token(c), c.Param("id"), file.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Picture handles GET /api/v1/drafts/:id/picture.
func (h *DraftHandler) Picture(c *gin.Context) {
	body, contentType, err := h.drafts.Picture(c.Request.Context(), middleware.Token(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

// AddCaption handles POST /api/v1/drafts/:id/captions.
func (h *DraftHandler) AddCaption(c *gin.Context) {
	draft, err := h.drafts.AddCaption(c.Request.Context(), middleware.Token(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// EditCaption handles PUT /api/v1/drafts/:id/captions/:index.
func (h *DraftHandler) EditCaption(c *gin.Context) {
	index, ok := captionIndex(c)
	if !ok {
		return
	}
	var req EditCaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	draft, err := h.drafts.EditCaption(c.Request.Context(), middleware.Token(c), c.Param("id"), index, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// DeleteCaption handles DELETE /api/v1/drafts/:id/captions/:index.
func (h *DraftHandler) DeleteCaption(c *gin.Context) {
	index, ok := captionIndex(c)
	if !ok {
		return
	}
	draft, err := h.drafts.DeleteCaption(c.Request.Context(), middleware.Token(c), c.Param("id"), index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// SetDescription handles PUT /api/v1/drafts/:id/description.
func (h *DraftHandler) SetDescription(c *gin.Context) {
	var req DescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	draft, err := h.drafts.SetDescription(c.Request.Context(), middleware.Token(c), c.Param("id"), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Submit handles POST /api/v1/drafts/:id/submit.
// A failed submission returns the error status with the persisted draft in the body.
func (h *DraftHandler) Submit(c *gin.Context) {
	draft, meme, err := h.drafts.Submit(c.Request.Context(), middleware.Token(c), c.Param("id"))
	if err != nil {
		if draft != nil {
			c.AbortWithStatusJSON(statusOf(err), gin.H{
				"error": err.Error(),
				"kind":  domain.KindOf(err),
				"draft": draft,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SubmitResponse{Draft: draft, Meme: meme})
}

func captionIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "caption index must be an integer")
		return 0, false
	}
	return index, true
}
