package composer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/memeapi"
	"github.com/timmy/memefeed/internal/metrics"
)

// PictureStore keeps selected pictures until they are submitted.
type PictureStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}

// MemeCreator publishes a composed meme.
type MemeCreator interface {
	CreateMeme(ctx context.Context, token string, req *memeapi.CreateMemeRequest) (*domain.Meme, error)
}

// Options configures a Composer.
type Options struct {
	Canvas          Canvas
	Placer          Placer
	MaxPictureBytes int64
	// KeyPrefix is prepended to generated picture keys.
	KeyPrefix string
	// PreviewURL maps a picture key to the URL shown while editing.
	// Defaults to the store's URL for the key.
	PreviewURL func(key string) string
	// KeepReleased leaves pictures the composition stops referencing in the store.
	// They are reported by Released so the caller can delete them once the new
	// state is persisted.
	KeepReleased bool
	Metrics      *metrics.Registry
}

// Composer is a meme composition backed by a picture store. It is safe for concurrent use.
type Composer struct {
	store   PictureStore
	creator MemeCreator
	opts    Options

	mu       sync.Mutex
	state    State
	released []string
}

// New creates a composer with nothing selected.
func New(store PictureStore, creator MemeCreator, opts Options) *Composer {
	return Restore(NewState(), store, creator, opts)
}

// Restore creates a composer that continues from s.
func Restore(s State, store PictureStore, creator MemeCreator, opts Options) *Composer {
	if opts.Canvas.Width <= 0 || opts.Canvas.Height <= 0 {
		opts.Canvas = DefaultCanvas
	}
	if opts.Placer == nil {
		opts.Placer = NewRandomPlacer(nil)
	}
	if opts.PreviewURL == nil {
		opts.PreviewURL = store.GetURL
	}
	if s.Captions == nil {
		s.Captions = domain.Captions{}
	}
	return &Composer{store: store, creator: creator, opts: opts, state: s}
}

// State returns a snapshot of the composition.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.state)
}

func snapshot(s State) State {
	s.Captions = s.Captions.Clone()
	if s.Picture != nil {
		p := *s.Picture
		s.Picture = &p
	}
	return s
}

func (c *Composer) update(fn func(State) (State, error)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fn(c.state)
	if err != nil {
		return snapshot(c.state), err
	}
	c.state = next
	return snapshot(next), nil
}

// SetPicture validates data, stores it under a new key and selects it. The previously
// selected picture, if any, is released.
func (c *Composer) SetPicture(ctx context.Context, name string, data []byte) (State, error) {
	info, err := Inspect(data, c.opts.MaxPictureBytes)
	if err != nil {
		return c.State(), err
	}

	key := fmt.Sprintf("%s%s.%s", c.opts.KeyPrefix, uuid.NewString(), info.Extension)
	if err := c.store.Upload(ctx, key, bytes.NewReader(data), info.Size, info.ContentType); err != nil {
		return c.State(), fmt.Errorf("failed to store picture: %w", err)
	}

	pic := Picture{
		Key:         key,
		Name:        pictureName(name, info.Extension),
		ContentType: info.ContentType,
		Size:        info.Size,
		Width:       info.Width,
		Height:      info.Height,
		PreviewURL:  c.opts.PreviewURL(key),
	}

	var previous string
	next, err := c.update(func(s State) (State, error) {
		if s.Picture != nil {
			previous = s.Picture.Key
		}
		return SetPicture(s, pic)
	})
	if err != nil {
		c.discard(ctx, key)
		return next, err
	}
	if previous != "" {
		c.release(ctx, previous)
	}

	logger.With(logger.Fields{
		logger.FieldSize: info.Size,
	}).Info(ctx, "Picture selected: key=%s type=%s %dx%d", key, info.ContentType, info.Width, info.Height)
	return next, nil
}

// AddCaption places a new default caption on the canvas.
func (c *Composer) AddCaption() (State, error) {
	x, y := c.opts.Placer.Place(c.opts.Canvas)
	return c.update(func(s State) (State, error) { return AddCaption(s, x, y) })
}

// EditCaption replaces the text of caption index.
func (c *Composer) EditCaption(index int, text string) (State, error) {
	return c.update(func(s State) (State, error) { return EditCaption(s, index, text) })
}

// DeleteCaption removes caption index.
func (c *Composer) DeleteCaption(index int) (State, error) {
	return c.update(func(s State) (State, error) { return DeleteCaption(s, index) })
}

// SetDescription replaces the description.
func (c *Composer) SetDescription(text string) (State, error) {
	return c.update(func(s State) (State, error) { return SetDescription(s, text) })
}

// Submit publishes the composition as token's user. Without a picture it fails with a
// ValidationError before any request is made. On failure the edits are kept and Submit
// may be called again.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - token: bearer credential of the author.
//
// Returns:
//   - State: the Submitted or Failed state.
//   - *domain.Meme: the created meme on success.
//   - error: ValidationError, or the storage or upstream failure.
func (c *Composer) Submit(ctx context.Context, token string) (State, *domain.Meme, error) {
	started, err := c.update(BeginSubmit)
	if err != nil {
		c.opts.Metrics.Submit("rejected")
		return started, nil, err
	}

	meme, err := c.publish(ctx, token, started)

	c.mu.Lock()
	if err != nil {
		c.state = SubmitFailed(c.state, err)
	} else {
		c.state = SubmitSucceeded(c.state, meme)
	}
	final := snapshot(c.state)
	c.mu.Unlock()

	if err != nil {
		c.opts.Metrics.Submit("failed")
		logger.CtxWarn(ctx, "Meme submission failed: %v", err)
		return final, nil, err
	}

	c.opts.Metrics.Submit("created")
	c.release(ctx, started.Picture.Key)
	logger.With(logger.Fields{
		logger.FieldCount: len(started.Captions),
	}).Info(ctx, "Meme submitted: meme_id=%s", meme.ID)
	return final, meme, nil
}

func (c *Composer) publish(ctx context.Context, token string, s State) (*domain.Meme, error) {
	body, err := c.store.Download(ctx, s.Picture.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read picture: %w", err)
	}
	defer body.Close()

	meme, err := c.creator.CreateMeme(ctx, token, &memeapi.CreateMemeRequest{
		Picture:     body,
		Filename:    s.Picture.Name,
		ContentType: s.Picture.ContentType,
		Texts:       s.Captions,
		Description: s.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create meme: %w", err)
	}
	return meme, nil
}

// Discard removes the composition's stored picture.
func (c *Composer) Discard(ctx context.Context) {
	c.mu.Lock()
	var key string
	if c.state.Picture != nil {
		key = c.state.Picture.Key
	}
	c.mu.Unlock()
	if key != "" {
		c.discard(ctx, key)
	}
}

// Released returns and forgets the picture keys kept by KeepReleased.
func (c *Composer) Released() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.released
	c.released = nil
	return keys
}

func (c *Composer) release(ctx context.Context, key string) {
	if c.opts.KeepReleased {
		c.mu.Lock()
		c.released = append(c.released, key)
		c.mu.Unlock()
		return
	}
	c.discard(ctx, key)
}

func (c *Composer) discard(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		logger.CtxWarn(ctx, "Failed to delete picture %s: %v", key, err)
	}
}

func pictureName(name, ext string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "picture." + ext
	}
	return name
}
