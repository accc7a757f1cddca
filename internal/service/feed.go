package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/metrics"
)

// FeedAPI is the part of the meme service the feed aggregator reads from.
type FeedAPI interface {
	ListMemes(ctx context.Context, token string, page int) (*domain.Page[domain.Meme], error)
	GetUser(ctx context.Context, token, id string) (*domain.User, error)
	ListComments(ctx context.Context, token, memeID string, page int) (*domain.Page[domain.Comment], error)
}

// FeedConfig holds configuration for the feed service.
type FeedConfig struct {
	// MaxConcurrency bounds the in-flight requests of each fan-out stage.
	MaxConcurrency int
}

// FeedService assembles feed pages with authors and author-enriched comments.
type FeedService struct {
	api            FeedAPI
	metrics        *metrics.Registry
	logger         *logger.Logger
	maxConcurrency int
}

// FeedPage is one assembled page of the feed, in listing order.
type FeedPage struct {
	Page     int                      `json:"page"`
	PageSize int                      `json:"pageSize"`
	Total    int                      `json:"total"`
	Memes    []domain.MemeWithDetails `json:"memes"`
}

// NewFeedService creates a new feed service.
// Parameters:
//   - api: meme service client.
//   - m: metrics registry, may be nil.
//   - log: fallback logger.
//   - cfg: feed configuration; nil uses defaults.
//
// Returns:
//   - *FeedService: initialized feed service.
func NewFeedService(api FeedAPI, m *metrics.Registry, log *logger.Logger, cfg *FeedConfig) *FeedService {
	limit := 16
	if cfg != nil && cfg.MaxConcurrency > 0 {
		limit = cfg.MaxConcurrency
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &FeedService{
		api:            api,
		metrics:        m,
		logger:         log,
		maxConcurrency: limit,
	}
}

func (s *FeedService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Aggregate fetches a page of memes and joins every meme with its author and its first
// page of comments, each comment joined with its own author.
//
// A failed meme listing fails the whole call. A failed author or comments fetch only
// degrades that item: the author stays nil, the comments stay empty.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - token: bearer credential forwarded to the meme service.
//   - page: 1-based page number.
//
// Returns:
//   - *FeedPage: memes in listing order.
//   - error: ValidationError for a bad page, or the listing failure.
func (s *FeedService) Aggregate(ctx context.Context, token string, page int) (*FeedPage, error) {
	if page < 1 {
		return nil, domain.NewValidationError("feed.Aggregate", fmt.Sprintf("page must be positive, got %d", page))
	}

	start := time.Now()
	ctx = logger.WithField(ctx, logger.FieldPage, page)

	listing, err := s.api.ListMemes(ctx, token, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list memes: %w", err)
	}
	memes := listing.Results

	users := newUserResolver(s.api, token)

	// Stage 1: author and first comments page of every meme.
	authors := make([]*domain.User, len(memes))
	comments := make([][]domain.Comment, len(memes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, meme := range memes {
		g.Go(func() error {
			author, err := users.get(gctx, meme.AuthorID)
			if err != nil {
				s.degraded(gctx, "author", meme.ID, err)
				return nil
			}
			authors[i] = author
			return nil
		})
		g.Go(func() error {
			first, err := s.api.ListComments(gctx, token, meme.ID, 1)
			if err != nil {
				s.degraded(gctx, "comments", meme.ID, err)
				return nil
			}
			comments[i] = first.Results
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: author of every comment fetched in stage 1.
	commentAuthors := make([][]*domain.User, len(memes))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i := range memes {
		commentAuthors[i] = make([]*domain.User, len(comments[i]))
		for j, comment := range comments[i] {
			g.Go(func() error {
				author, err := users.get(gctx, comment.AuthorID)
				if err != nil {
					s.degraded(gctx, "comment_author", memes[i].ID, err)
					return nil
				}
				commentAuthors[i][j] = author
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.MemeWithDetails, len(memes))
	for i, meme := range memes {
		out[i] = domain.MemeWithDetails{
			Meme:     meme,
			Author:   authors[i],
			Comments: zipComments(comments[i], commentAuthors[i]),
		}
	}

	elapsed := time.Since(start)
	s.metrics.ObserveFeed(elapsed)
	logger.With(logger.Fields{
		logger.FieldDurationMs: elapsed.Milliseconds(),
		logger.FieldCount:      len(out),
	}).Info(ctx, "Feed page aggregated: users_fetched=%d", users.fetched())

	return &FeedPage{
		Page:     page,
		PageSize: listing.PageSize,
		Total:    listing.Total,
		Memes:    out,
	}, nil
}

// zipComments pairs comments[i] with authors[i].
func zipComments(comments []domain.Comment, authors []*domain.User) []domain.CommentWithDetails {
	out := make([]domain.CommentWithDetails, len(comments))
	for i, c := range comments {
		out[i] = domain.CommentWithDetails{Comment: c, Author: authors[i]}
	}
	return out
}

func (s *FeedService) degraded(ctx context.Context, part, memeID string, err error) {
	s.metrics.Degraded(part)
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldMemeID: memeID,
		"part":             part,
	}).WithError(err).Warn("Feed item degraded")
}

// userResolver de-duplicates user lookups within one aggregation cycle.
// It is discarded with the cycle, so nothing is cached across requests.
type userResolver struct {
	api   FeedAPI
	token string
	group singleflight.Group

	mu     sync.Mutex
	done   map[string]userResult
	misses int
}

type userResult struct {
	user *domain.User
	err  error
}

func newUserResolver(api FeedAPI, token string) *userResolver {
	return &userResolver{
		api:   api,
		token: token,
		done:  make(map[string]userResult),
	}
}

func (r *userResolver) get(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.NewNotFoundError("feed.resolveUser", "missing author id")
	}

	r.mu.Lock()
	res, ok := r.done[id]
	r.mu.Unlock()
	if ok {
		return res.user, res.err
	}

	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		user, err := r.api.GetUser(ctx, r.token, id)
		if err == nil && user.ID == "" {
			user.ID = id
		}
		r.mu.Lock()
		r.done[id] = userResult{user: user, err: err}
		r.misses++
		r.mu.Unlock()
		return user, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

func (r *userResolver) fetched() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.misses
}
