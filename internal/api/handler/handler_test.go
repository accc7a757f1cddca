package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/memefeed/internal/api/middleware"
	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFeed struct {
	page  int
	token string
	err   error
}

func (s *stubFeed) Aggregate(_ context.Context, token string, page int) (*service.FeedPage, error) {
	s.page, s.token = page, token
	if s.err != nil {
		return nil, s.err
	}
	return &service.FeedPage{
		Page:  page,
		Memes: []domain.MemeWithDetails{{Meme: domain.Meme{ID: "m-1"}, Comments: []domain.CommentWithDetails{}}},
	}, nil
}

type stubComments struct {
	memeID, content string
	err             error
}

func (s *stubComments) Create(_ context.Context, _, memeID, content string) (*domain.CommentWithDetails, error) {
	s.memeID, s.content = memeID, content
	if s.err != nil {
		return nil, s.err
	}
	return &domain.CommentWithDetails{
		Comment: domain.Comment{ID: "c-1", MemeID: memeID, Content: content, AuthorID: "u-1"},
		Author:  &domain.User{ID: "u-1", Username: "alice"},
	}, nil
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Auth())
	return r
}

func do(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer tok")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("op", "bad"), http.StatusBadRequest},
		{domain.NewUnauthorizedError("op", "no"), http.StatusUnauthorized},
		{domain.NewNotFoundError("op", "gone"), http.StatusNotFound},
		{domain.NewConflictError("op", "stale"), http.StatusConflict},
		{domain.NewNetworkError("op", errors.New("down")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestGetFeed(t *testing.T) {
	feed := &stubFeed{}
	r := newEngine()
	r.GET("/feed", NewFeedHandler(feed).GetFeed)

	w := do(r, http.MethodGet, "/feed?page=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, feed.page)
	assert.Equal(t, "tok", feed.token)

	body := decode(t, w)
	assert.EqualValues(t, 3, body["page"])
	assert.Len(t, body["memes"], 1)
}

func TestGetFeed_DefaultPage(t *testing.T) {
	feed := &stubFeed{}
	r := newEngine()
	r.GET("/feed", NewFeedHandler(feed).GetFeed)

	w := do(r, http.MethodGet, "/feed", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, feed.page)
}

func TestGetFeed_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
		want  int
	}{
		{"not a number", "?page=abc", nil, http.StatusBadRequest},
		{"upstream down", "?page=1", domain.NewNetworkError("memeapi.ListMemes", errors.New("refused")), http.StatusBadGateway},
		{"bad page", "?page=0", domain.NewValidationError("feed.Aggregate", "page must be positive"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine()
			r.GET("/feed", NewFeedHandler(&stubFeed{err: tt.err}).GetFeed)
			w := do(r, http.MethodGet, "/feed"+tt.query, nil, "")
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestGetFeed_MissingToken(t *testing.T) {
	r := newEngine()
	r.GET("/feed", NewFeedHandler(&stubFeed{}).GetFeed)

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateComment(t *testing.T) {
	comments := &stubComments{}
	r := newEngine()
	r.POST("/memes/:id/comments", NewCommentHandler(comments).CreateComment)

	w := do(r, http.MethodPost, "/memes/m-9/comments", strings.NewReader(`{"content":"nice"}`), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "m-9", comments.memeID)
	assert.Equal(t, "nice", comments.content)

	body := decode(t, w)
	assert.Equal(t, "alice", body["author"].(map[string]interface{})["username"])
}

func TestCreateComment_Validation(t *testing.T) {
	comments := &stubComments{err: domain.NewValidationError("comment.Create", "comment is empty")}
	r := newEngine()
	r.POST("/memes/:id/comments", NewCommentHandler(comments).CreateComment)

	w := do(r, http.MethodPost, "/memes/m-9/comments", strings.NewReader(`{"content":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(domain.KindValidation), decode(t, w)["kind"])

	w = do(r, http.MethodPost, "/memes/m-9/comments", strings.NewReader(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubDrafts struct {
	Drafts
	draft     *domain.Draft
	picture   []byte
	name      string
	index     int
	text      string
	submitErr error
	deleted   string
	notFound  bool
}

func (s *stubDrafts) Get(_ context.Context, _, id string) (*domain.Draft, error) {
	if s.notFound {
		return nil, domain.NewNotFoundError("draft.Get", "draft not found")
	}
	return s.draft, nil
}

func (s *stubDrafts) SetPicture(_ context.Context, _, _, name string, data []byte) (*domain.Draft, error) {
	s.name, s.picture = name, data
	return s.draft, nil
}

func (s *stubDrafts) EditCaption(_ context.Context, _, _ string, index int, text string) (*domain.Draft, error) {
	s.index, s.text = index, text
	if index > 0 {
		return nil, domain.NewValidationError("composer.EditCaption", "caption 1 does not exist")
	}
	return s.draft, nil
}

func (s *stubDrafts) Submit(_ context.Context, _, _ string) (*domain.Draft, *domain.Meme, error) {
	if s.submitErr != nil {
		return s.draft, nil, s.submitErr
	}
	return s.draft, &domain.Meme{ID: "meme-1"}, nil
}

func (s *stubDrafts) Delete(_ context.Context, _, id string) error {
	s.deleted = id
	return nil
}

func (s *stubDrafts) Picture(_ context.Context, _, _ string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("png-bytes")), "image/png", nil
}

func draftEngine(d *stubDrafts, maxPicture int64) *gin.Engine {
	h := NewDraftHandler(d, maxPicture)
	r := newEngine()
	r.GET("/drafts/:id", h.Get)
	r.DELETE("/drafts/:id", h.Delete)
	r.PUT("/drafts/:id/picture", h.SetPicture)
	r.GET("/drafts/:id/picture", h.Picture)
	r.PUT("/drafts/:id/captions/:index", h.EditCaption)
	r.POST("/drafts/:id/submit", h.Submit)
	return r
}

func multipartPicture(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("picture", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDraftHandler_SetPicture(t *testing.T) {
	d := &stubDrafts{draft: &domain.Draft{ID: "d-1", Status: domain.DraftStatusEditing}}
	r := draftEngine(d, 1024)

	body, ctype := multipartPicture(t, "cat.png", []byte("picture-bytes"))
	w := do(r, http.MethodPut, "/drafts/d-1/picture", body, ctype)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cat.png", d.name)
	assert.Equal(t, []byte("picture-bytes"), d.picture)
}

func TestDraftHandler_SetPictureRejects(t *testing.T) {
	d := &stubDrafts{draft: &domain.Draft{ID: "d-1"}}
	r := draftEngine(d, 4)

	body, ctype := multipartPicture(t, "cat.png", []byte("too many bytes"))
	w := do(r, http.MethodPut, "/drafts/d-1/picture", body, ctype)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(r, http.MethodPut, "/drafts/d-1/picture", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftHandler_EditCaption(t *testing.T) {
	d := &stubDrafts{draft: &domain.Draft{ID: "d-1"}}
	r := draftEngine(d, 0)

	w := do(r, http.MethodPut, "/drafts/d-1/captions/0", strings.NewReader(`{"content":"top"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, d.index)
	assert.Equal(t, "top", d.text)

	w = do(r, http.MethodPut, "/drafts/d-1/captions/x", strings.NewReader(`{"content":"top"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/drafts/d-1/captions/1", strings.NewReader(`{"content":"top"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftHandler_Submit(t *testing.T) {
	d := &stubDrafts{draft: &domain.Draft{ID: "d-1", Status: domain.DraftStatusSubmitted, MemeID: "meme-1"}}
	r := draftEngine(d, 0)

	w := do(r, http.MethodPost, "/drafts/d-1/submit", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "meme-1", body["meme"].(map[string]interface{})["id"])
}

func TestDraftHandler_SubmitFailureReturnsDraft(t *testing.T) {
	d := &stubDrafts{
		draft:     &domain.Draft{ID: "d-1", Status: domain.DraftStatusFailed, Description: "kept"},
		submitErr: domain.NewNetworkError("memeapi.CreateMeme", errors.New("reset")),
	}
	r := draftEngine(d, 0)

	w := do(r, http.MethodPost, "/drafts/d-1/submit", nil, "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, string(domain.KindNetwork), body["kind"])
	assert.Equal(t, "kept", body["draft"].(map[string]interface{})["description"])
}

func TestDraftHandler_GetNotFound(t *testing.T) {
	r := draftEngine(&stubDrafts{notFound: true}, 0)
	w := do(r, http.MethodGet, "/drafts/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftHandler_PictureAndDelete(t *testing.T) {
	d := &stubDrafts{draft: &domain.Draft{ID: "d-1"}}
	r := draftEngine(d, 0)

	w := do(r, http.MethodGet, "/drafts/d-1/picture", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	w = do(r, http.MethodDelete, "/drafts/d-1", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "d-1", d.deleted)
}
