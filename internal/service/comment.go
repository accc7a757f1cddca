package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/memefeed/internal/auth"
	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/logger"
)

// CommentAPI is the part of the meme service used to post comments.
type CommentAPI interface {
	CreateComment(ctx context.Context, token, memeID, content string) (*domain.Comment, error)
	GetUser(ctx context.Context, token, id string) (*domain.User, error)
}

// CommentSection is the comment UI state of a feed: which meme's comments are expanded
// and the draft typed for each meme. Values are immutable; transitions return copies.
type CommentSection struct {
	Open   string            `json:"open,omitempty"`
	Drafts map[string]string `json:"drafts,omitempty"`
}

// Toggle expands memeID's comments, or collapses them if they are already expanded.
// At most one meme is expanded at a time.
func (s CommentSection) Toggle(memeID string) CommentSection {
	next := CommentSection{Open: memeID, Drafts: s.Drafts}
	if s.Open == memeID {
		next.Open = ""
	}
	return next
}

// IsOpen reports whether memeID's comments are expanded.
func (s CommentSection) IsOpen(memeID string) bool {
	return memeID != "" && s.Open == memeID
}

// SetDraft records the draft comment for memeID.
func (s CommentSection) SetDraft(memeID, text string) CommentSection {
	drafts := make(map[string]string, len(s.Drafts)+1)
	for k, v := range s.Drafts {
		drafts[k] = v
	}
	drafts[memeID] = text
	return CommentSection{Open: s.Open, Drafts: drafts}
}

// ClearDraft drops the draft for memeID.
func (s CommentSection) ClearDraft(memeID string) CommentSection {
	drafts := make(map[string]string, len(s.Drafts))
	for k, v := range s.Drafts {
		if k != memeID {
			drafts[k] = v
		}
	}
	return CommentSection{Open: s.Open, Drafts: drafts}
}

// Draft returns the draft for memeID.
func (s CommentSection) Draft(memeID string) string {
	return s.Drafts[memeID]
}

// CommentService creates comments and returns them in feed form.
type CommentService struct {
	api    CommentAPI
	logger *logger.Logger
}

// NewCommentService creates a new comment service.
func NewCommentService(api CommentAPI, log *logger.Logger) *CommentService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &CommentService{api: api, logger: log}
}

// Create posts content on memeID as the token's user and resolves the author.
// An author lookup failure leaves Author nil; the comment itself is still returned.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - token: bearer credential of the commenting user.
//   - memeID: target meme.
//   - content: comment text; blank content is rejected before any request.
//
// Returns:
//   - *domain.CommentWithDetails: the created comment with its author.
//   - error: ValidationError, or the creation failure.
func (s *CommentService) Create(ctx context.Context, token, memeID, content string) (*domain.CommentWithDetails, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.NewValidationError("comment.Create", "comment is empty")
	}
	if memeID == "" {
		return nil, domain.NewValidationError("comment.Create", "meme id is required")
	}

	ctx = logger.WithField(ctx, logger.FieldMemeID, memeID)

	comment, err := s.api.CreateComment(ctx, token, memeID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if comment.AuthorID == "" {
		if subject, err := auth.Subject(token); err == nil {
			comment.AuthorID = subject
		}
	}

	out := &domain.CommentWithDetails{Comment: *comment}
	if comment.AuthorID != "" {
		author, err := s.api.GetUser(ctx, token, comment.AuthorID)
		if err != nil {
			s.logger.WithFields(logger.Fields{
				logger.FieldMemeID: memeID,
				logger.FieldUserID: comment.AuthorID,
			}).WithError(err).Warn("Comment created but author lookup failed")
		} else {
			if author.ID == "" {
				author.ID = comment.AuthorID
			}
			out.Author = author
		}
	}

	logger.CtxInfo(ctx, "Comment created: comment_id=%s", comment.ID)
	return out, nil
}

// Submit posts the section's draft for memeID. On success the draft is cleared and the
// returned feed is a copy with the new comment appended to memeID's comments. On failure
// the section and feed are returned unchanged so the draft can be retried.
func (s *CommentService) Submit(ctx context.Context, token string, section CommentSection, memeID string, feed []domain.MemeWithDetails) (CommentSection, []domain.MemeWithDetails, error) {
	created, err := s.Create(ctx, token, memeID, section.Draft(memeID))
	if err != nil {
		return section, feed, err
	}
	return section.ClearDraft(memeID), appendComment(feed, memeID, *created), nil
}

func appendComment(feed []domain.MemeWithDetails, memeID string, comment domain.CommentWithDetails) []domain.MemeWithDetails {
	out := make([]domain.MemeWithDetails, len(feed))
	copy(out, feed)
	for i := range out {
		if out[i].ID != memeID {
			continue
		}
		comments := make([]domain.CommentWithDetails, len(out[i].Comments), len(out[i].Comments)+1)
		copy(comments, out[i].Comments)
		out[i].Comments = append(comments, comment)
	}
	return out
}
