package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/memefeed/internal/auth"
	"github.com/timmy/memefeed/internal/composer"
	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/metrics"
)

// DraftRepository persists drafts.
type DraftRepository interface {
	Create(ctx context.Context, draft *domain.Draft) error
	GetByID(ctx context.Context, id string) (*domain.Draft, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Draft, error)
	Update(ctx context.Context, draft *domain.Draft) error
	MarkSubmitting(ctx context.Context, draft *domain.Draft) (bool, error)
	FinishSubmit(ctx context.Context, draft *domain.Draft) error
	ReleaseSubmitting(ctx context.Context, id string, status domain.DraftStatus, errorLog string) error
	Delete(ctx context.Context, id string) error
}

// persistTimeout bounds writes that must complete after the request context is gone.
const persistTimeout = 10 * time.Second

// DraftConfig holds configuration for the draft service.
type DraftConfig struct {
	Canvas          composer.Canvas
	MaxPictureBytes int64
	// PreviewPath formats the BFF preview route of a draft. It is used when the
	// picture store has no public URL.
	PreviewPath string
}

// DraftService runs server-side composer sessions. Every operation loads the draft,
// applies one composer transition and persists the result. Ownership is checked
// against tokens verified by the service itself.
type DraftService struct {
	repo     DraftRepository
	verifier *auth.Verifier
	store    composer.PictureStore
	creator  composer.MemeCreator
	placer   composer.Placer
	metrics  *metrics.Registry
	cfg      DraftConfig
}

// NewDraftService creates a new draft service.
// Parameters:
//   - repo: draft persistence.
//   - verifier: checks bearer tokens before any draft access.
//   - store: picture storage.
//   - creator: meme service client used on submit.
//   - placer: caption placement; nil places randomly.
//   - m: metrics registry, may be nil.
//   - cfg: canvas and upload limits.
//
// Returns:
//   - *DraftService: initialized draft service.
func NewDraftService(repo DraftRepository, verifier *auth.Verifier, store composer.PictureStore, creator composer.MemeCreator, placer composer.Placer, m *metrics.Registry, cfg DraftConfig) *DraftService {
	if placer == nil {
		placer = composer.NewRandomPlacer(nil)
	}
	if cfg.PreviewPath == "" {
		cfg.PreviewPath = "/api/v1/drafts/%s/picture"
	}
	return &DraftService{
		repo:     repo,
		verifier: verifier,
		store:    store,
		creator:  creator,
		placer:   placer,
		metrics:  m,
		cfg:      cfg,
	}
}

// Create starts an empty draft owned by the token's user.
func (s *DraftService) Create(ctx context.Context, token string) (*domain.Draft, error) {
	owner, err := s.verifier.Subject(token)
	if err != nil {
		return nil, err
	}

	draft := &domain.Draft{
		ID:       uuid.NewString(),
		OwnerID:  owner,
		Status:   domain.DraftStatusNoPicture,
		Captions: domain.Captions{},
	}
	if err := s.repo.Create(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	logger.CtxInfo(logger.WithField(ctx, logger.FieldDraftID, draft.ID), "Draft created")
	return draft, nil
}

// List returns the token user's drafts, most recent first.
func (s *DraftService) List(ctx context.Context, token string, limit int) ([]domain.Draft, error) {
	owner, err := s.verifier.Subject(token)
	if err != nil {
		return nil, err
	}
	drafts, err := s.repo.ListByOwner(ctx, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}

// Get returns a draft of the token's user. Drafts of other users are reported as NotFound.
func (s *DraftService) Get(ctx context.Context, token, id string) (*domain.Draft, error) {
	owner, err := s.verifier.Subject(token)
	if err != nil {
		return nil, err
	}
	draft, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.OwnerID != owner {
		return nil, domain.NewNotFoundError("draft.Get", fmt.Sprintf("draft %s not found", id))
	}
	return draft, nil
}

// Picture opens the selected picture of a draft for preview.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - token: bearer credential of the owner.
//   - id: draft id.
//
// Returns:
//   - io.ReadCloser: picture bytes; the caller closes it.
//   - string: picture content type.
//   - error: NotFound when the draft has no picture.
func (s *DraftService) Picture(ctx context.Context, token, id string) (io.ReadCloser, string, error) {
	draft, err := s.Get(ctx, token, id)
	if err != nil {
		return nil, "", err
	}
	if draft.PictureKey == "" {
		return nil, "", domain.NewNotFoundError("draft.Picture", "no picture selected")
	}
	body, err := s.store.Download(ctx, draft.PictureKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read picture: %w", err)
	}
	return body, draft.PictureContentType, nil
}

// SetPicture validates and stores data as the draft's picture.
func (s *DraftService) SetPicture(ctx context.Context, token, id, name string, data []byte) (*domain.Draft, error) {
	return s.apply(ctx, token, id, func(c *composer.Composer) (composer.State, error) {
		return c.SetPicture(ctx, name, data)
	})
}

// AddCaption adds a default caption at a placer-chosen position.
func (s *DraftService) AddCaption(ctx context.Context, token, id string) (*domain.Draft, error) {
	return s.apply(ctx, token, id, func(c *composer.Composer) (composer.State, error) {
		return c.AddCaption()
	})
}

// EditCaption replaces the text of caption index.
func (s *DraftService) EditCaption(ctx context.Context, token, id string, index int, text string) (*domain.Draft, error) {
	return s.apply(ctx, token, id, func(c *composer.Composer) (composer.State, error) {
		return c.EditCaption(index, text)
	})
}

// DeleteCaption removes caption index.
func (s *DraftService) DeleteCaption(ctx context.Context, token, id string, index int) (*domain.Draft, error) {
	return s.apply(ctx, token, id, func(c *composer.Composer) (composer.State, error) {
		return c.DeleteCaption(index)
	})
}

// SetDescription replaces the description.
func (s *DraftService) SetDescription(ctx context.Context, token, id, text string) (*domain.Draft, error) {
	return s.apply(ctx, token, id, func(c *composer.Composer) (composer.State, error) {
		return c.SetDescription(text)
	})
}

// Submit publishes the draft. The resulting Submitted or Failed state is persisted in
// both cases; a failed draft keeps all its edits.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - token: bearer credential of the owner, forwarded to the meme service.
//   - id: draft id.
//
// Returns:
//   - *domain.Draft: the persisted draft.
//   - *domain.Meme: the created meme on success.
//   - error: ValidationError without a picture or while another submit runs, or the
//     upstream failure.
func (s *DraftService) Submit(ctx context.Context, token, id string) (*domain.Draft, *domain.Meme, error) {
	draft, err := s.Get(ctx, token, id)
	if err != nil {
		return nil, nil, err
	}
	ctx = logger.WithField(ctx, logger.FieldDraftID, id)

	c := s.composer(draft)
	if _, err := composer.BeginSubmit(c.State()); err != nil {
		s.metrics.Submit("rejected")
		return draft, nil, err
	}

	ok, err := s.repo.MarkSubmitting(ctx, draft)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock draft: %w", err)
	}
	if !ok {
		s.metrics.Submit("rejected")
		return draft, nil, domain.NewValidationError("draft.Submit", "submission in progress")
	}

	start := time.Now()
	state, meme, submitErr := c.Submit(ctx, token)

	// The submit lock is released even when ctx is done.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	applyState(draft, state)
	if err := s.repo.FinishSubmit(persistCtx, draft); err != nil {
		if relErr := s.repo.ReleaseSubmitting(persistCtx, id, state.Status, state.Error); relErr != nil {
			logger.CtxError(ctx, "Failed to release draft after submit: %v", relErr)
		}
		return nil, meme, fmt.Errorf("failed to save draft: %w", err)
	}
	s.deletePictures(persistCtx, c.Released())

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldStatus:     string(draft.Status),
	}).Info(ctx, "Draft submit finished")
	return draft, meme, submitErr
}

// Delete discards the draft and its stored picture.
func (s *DraftService) Delete(ctx context.Context, token, id string) error {
	draft, err := s.Get(ctx, token, id)
	if err != nil {
		return err
	}
	if draft.Status == domain.DraftStatusSubmitting {
		return domain.NewValidationError("draft.Delete", "submission in progress")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	s.composer(draft).Discard(ctx)
	return nil
}

func (s *DraftService) apply(ctx context.Context, token, id string, op func(*composer.Composer) (composer.State, error)) (*domain.Draft, error) {
	draft, err := s.Get(ctx, token, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithField(ctx, logger.FieldDraftID, id)

	c := s.composer(draft)
	state, err := op(c)
	if err != nil {
		return nil, err
	}

	previous := draft.PictureKey
	applyState(draft, state)
	if err := s.repo.Update(ctx, draft); err != nil {
		if draft.PictureKey != "" && draft.PictureKey != previous {
			s.deletePictures(context.WithoutCancel(ctx), []string{draft.PictureKey})
		}
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	s.deletePictures(ctx, c.Released())
	return draft, nil
}

func (s *DraftService) deletePictures(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			logger.CtxWarn(ctx, "Failed to delete picture %s: %v", key, err)
		}
	}
}

func (s *DraftService) composer(draft *domain.Draft) *composer.Composer {
	id := draft.ID
	return composer.Restore(stateOf(draft), s.store, s.creator, composer.Options{
		Canvas:          s.cfg.Canvas,
		Placer:          s.placer,
		MaxPictureBytes: s.cfg.MaxPictureBytes,
		KeyPrefix:       "drafts/" + id + "/",
		PreviewURL: func(key string) string {
			if u := s.store.GetURL(key); u != "" {
				return u
			}
			return fmt.Sprintf(s.cfg.PreviewPath, id)
		},
		KeepReleased: true,
		Metrics:      s.metrics,
	})
}

func stateOf(d *domain.Draft) composer.State {
	s := composer.State{
		Status:      d.Status,
		Captions:    d.Captions.Clone(),
		Description: d.Description,
		Error:       d.ErrorLog,
		MemeID:      d.MemeID,
	}
	if s.Status == "" {
		s.Status = domain.DraftStatusNoPicture
	}
	if d.PictureKey != "" {
		s.Picture = &composer.Picture{
			Key:         d.PictureKey,
			Name:        d.PictureName,
			ContentType: d.PictureContentType,
			Size:        d.PictureSize,
			Width:       d.PictureWidth,
			Height:      d.PictureHeight,
			PreviewURL:  d.PreviewURL,
		}
	}
	return s
}

func applyState(d *domain.Draft, s composer.State) {
	d.Status = s.Status
	d.Captions = s.Captions.Clone()
	d.Description = s.Description
	d.ErrorLog = s.Error
	d.MemeID = s.MemeID

	p := s.Picture
	if p == nil {
		p = &composer.Picture{}
	}
	d.PictureKey = p.Key
	d.PictureName = p.Name
	d.PictureContentType = p.ContentType
	d.PictureSize = p.Size
	d.PictureWidth = p.Width
	d.PictureHeight = p.Height
	d.PreviewURL = p.PreviewURL
}
