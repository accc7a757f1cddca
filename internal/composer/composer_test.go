package composer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/memeapi"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *memStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.NewNotFoundError("memStore.Download", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) GetURL(key string) string { return "https://cdn.test/" + key }

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeCreator struct {
	calls   int
	err     error
	req     *memeapi.CreateMemeRequest
	picture []byte
	token   string
}

func (f *fakeCreator) CreateMeme(_ context.Context, token string, req *memeapi.CreateMemeRequest) (*domain.Meme, error) {
	f.calls++
	f.token = token
	f.req = req
	data, _ := io.ReadAll(req.Picture)
	f.picture = data
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Meme{ID: "meme-1", Texts: req.Texts, Description: req.Description}, nil
}

func newTestComposer(store *memStore, creator *fakeCreator) *Composer {
	return New(store, creator, Options{
		Placer:    FixedPlacer{X: 10, Y: 20},
		KeyPrefix: "drafts/",
	})
}

func TestComposerSubmitWithoutPictureMakesNoRequest(t *testing.T) {
	creator := &fakeCreator{}
	c := newTestComposer(newMemStore(), creator)

	_, err := c.AddCaption()
	require.NoError(t, err)

	s, meme, err := c.Submit(context.Background(), "token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Nil(t, meme)
	assert.Equal(t, 0, creator.calls)
	assert.Len(t, s.Captions, 1)
}

func TestComposerSubmit(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	creator := &fakeCreator{}
	c := newTestComposer(store, creator)

	data := pngBytes(t, 5, 5)
	s, err := c.SetPicture(ctx, "cat.png", data)
	require.NoError(t, err)
	require.NotNil(t, s.Picture)
	assert.True(t, strings.HasPrefix(s.Picture.Key, "drafts/"))
	assert.True(t, strings.HasSuffix(s.Picture.Key, ".png"))
	assert.Equal(t, "https://cdn.test/"+s.Picture.Key, s.Picture.PreviewURL)
	assert.Equal(t, domain.DraftStatusEditing, s.Status)

	_, _ = c.AddCaption()
	_, _ = c.AddCaption()
	_, err = c.EditCaption(0, "when the build passes")
	require.NoError(t, err)
	_, err = c.SetDescription("first try")
	require.NoError(t, err)

	final, meme, err := c.Submit(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "meme-1", meme.ID)
	assert.Equal(t, domain.DraftStatusSubmitted, final.Status)
	assert.Equal(t, "meme-1", final.MemeID)
	assert.Empty(t, final.Captions)

	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, "token", creator.token)
	assert.Equal(t, data, creator.picture)
	assert.Equal(t, "cat.png", creator.req.Filename)
	assert.Equal(t, "image/png", creator.req.ContentType)
	assert.Equal(t, "first try", creator.req.Description)
	assert.Equal(t, domain.Captions{
		{X: 10, Y: 20, Content: "when the build passes"},
		{X: 10, Y: 20, Content: "New caption 2"},
	}, creator.req.Texts)
	assert.Equal(t, 0, store.len())
}

func TestComposerFailedSubmitKeepsEdits(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	creator := &fakeCreator{err: domain.NewNetworkError("memeapi.CreateMeme", errors.New("connection reset"))}
	c := newTestComposer(store, creator)

	_, err := c.SetPicture(ctx, "cat.png", pngBytes(t, 2, 2))
	require.NoError(t, err)
	_, _ = c.AddCaption()
	_, _ = c.SetDescription("keep me")

	s, meme, err := c.Submit(ctx, "token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetwork))
	assert.Nil(t, meme)
	assert.Equal(t, domain.DraftStatusFailed, s.Status)
	assert.NotEmpty(t, s.Error)
	assert.NotNil(t, s.Picture)
	assert.Len(t, s.Captions, 1)
	assert.Equal(t, "keep me", s.Description)
	assert.Equal(t, 1, store.len())

	creator.err = nil
	s, meme, err = c.Submit(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "meme-1", meme.ID)
	assert.Equal(t, domain.DraftStatusSubmitted, s.Status)
	assert.Equal(t, 2, creator.calls)
}

func TestComposerReplacingPictureDeletesPrevious(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := newTestComposer(store, &fakeCreator{})

	first, err := c.SetPicture(ctx, "a.png", pngBytes(t, 2, 2))
	require.NoError(t, err)
	second, err := c.SetPicture(ctx, "b.png", pngBytes(t, 3, 3))
	require.NoError(t, err)

	assert.NotEqual(t, first.Picture.Key, second.Picture.Key)
	assert.Equal(t, 1, store.len())
	assert.Equal(t, 3, second.Picture.Width)
}

func TestComposerKeepReleasedDefersDeletes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := New(store, &fakeCreator{}, Options{
		Placer:       FixedPlacer{X: 10, Y: 20},
		KeepReleased: true,
	})

	first, err := c.SetPicture(ctx, "a.png", pngBytes(t, 2, 2))
	require.NoError(t, err)
	assert.Empty(t, c.Released())

	second, err := c.SetPicture(ctx, "b.png", pngBytes(t, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, store.len())
	assert.Equal(t, []string{first.Picture.Key}, c.Released())
	assert.Empty(t, c.Released())

	_, _, err = c.Submit(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, []string{second.Picture.Key}, c.Released())
	assert.Equal(t, 2, store.len())
}

func TestComposerRejectsNonImage(t *testing.T) {
	store := newMemStore()
	c := newTestComposer(store, &fakeCreator{})

	s, err := c.SetPicture(context.Background(), "notes.txt", []byte("hello"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Nil(t, s.Picture)
	assert.Equal(t, 0, store.len())
}

func TestComposerStateIsSnapshot(t *testing.T) {
	c := newTestComposer(newMemStore(), &fakeCreator{})
	_, _ = c.AddCaption()

	s := c.State()
	s.Captions[0].Content = "mutated"
	assert.Equal(t, "New caption 1", c.State().Captions[0].Content)
}
