package composer

import (
	"fmt"

	"github.com/timmy/memefeed/internal/domain"
)

// Picture is the selected picture of a composition. Key locates the bytes in the
// picture store; PreviewURL is what a UI renders while editing.
type Picture struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	PreviewURL  string `json:"previewUrl"`
}

// State is an immutable snapshot of a composition. The functions in this file are
// its only transitions; none of them modifies its argument.
type State struct {
	Status      domain.DraftStatus `json:"status"`
	Picture     *Picture           `json:"picture,omitempty"`
	Captions    domain.Captions    `json:"captions"`
	Description string             `json:"description"`
	Error       string             `json:"error,omitempty"`
	MemeID      string             `json:"memeId,omitempty"`
}

// NewState returns the state of a composition with nothing selected.
func NewState() State {
	return State{Status: domain.DraftStatusNoPicture, Captions: domain.Captions{}}
}

// DefaultCaption is the text of the n-th caption added to a composition (1-based).
func DefaultCaption(n int) string {
	return fmt.Sprintf("New caption %d", n)
}

// edit prepares a copy of s for a user edit. Edits are refused while a submission is
// in flight; after a finished submission they start a new composition cycle.
func edit(s State, op string) (State, error) {
	if s.Status == domain.DraftStatusSubmitting {
		return s, domain.NewValidationError(op, "submission in progress")
	}
	next := s
	next.Captions = s.Captions.Clone()
	next.Error = ""
	next.MemeID = ""
	return next, nil
}

func settle(s State) State {
	if s.Picture == nil {
		s.Status = domain.DraftStatusNoPicture
	} else {
		s.Status = domain.DraftStatusEditing
	}
	return s
}

// SetPicture selects p as the composition's picture, replacing any previous one.
func SetPicture(s State, p Picture) (State, error) {
	next, err := edit(s, "composer.SetPicture")
	if err != nil {
		return s, err
	}
	next.Picture = &p
	return settle(next), nil
}

// AddCaption appends a caption at (x, y). Its text is "New caption {n}" where n is the
// caption count after the append.
func AddCaption(s State, x, y float64) (State, error) {
	next, err := edit(s, "composer.AddCaption")
	if err != nil {
		return s, err
	}
	next.Captions = append(next.Captions, domain.CaptionPlacement{
		X:       x,
		Y:       y,
		Content: DefaultCaption(len(next.Captions) + 1),
	})
	return settle(next), nil
}

// EditCaption replaces the text of caption index. Its position is unchanged.
func EditCaption(s State, index int, text string) (State, error) {
	if index < 0 || index >= len(s.Captions) {
		return s, domain.NewValidationError("composer.EditCaption", fmt.Sprintf("caption %d does not exist", index))
	}
	next, err := edit(s, "composer.EditCaption")
	if err != nil {
		return s, err
	}
	next.Captions[index].Content = text
	return settle(next), nil
}

// DeleteCaption removes caption index. The remaining captions keep their order.
func DeleteCaption(s State, index int) (State, error) {
	if index < 0 || index >= len(s.Captions) {
		return s, domain.NewValidationError("composer.DeleteCaption", fmt.Sprintf("caption %d does not exist", index))
	}
	next, err := edit(s, "composer.DeleteCaption")
	if err != nil {
		return s, err
	}
	next.Captions = append(next.Captions[:index], next.Captions[index+1:]...)
	return settle(next), nil
}

// SetDescription replaces the free-text description.
func SetDescription(s State, text string) (State, error) {
	next, err := edit(s, "composer.SetDescription")
	if err != nil {
		return s, err
	}
	next.Description = text
	return settle(next), nil
}

// BeginSubmit moves a composition with a picture to Submitting.
func BeginSubmit(s State) (State, error) {
	if s.Status == domain.DraftStatusSubmitting {
		return s, domain.NewValidationError("composer.Submit", "submission in progress")
	}
	if s.Picture == nil {
		return s, domain.NewValidationError("composer.Submit", "no picture selected")
	}
	next := s
	next.Captions = s.Captions.Clone()
	next.Status = domain.DraftStatusSubmitting
	next.Error = ""
	next.MemeID = ""
	return next, nil
}

// SubmitSucceeded records the created meme and resets the edits.
func SubmitSucceeded(s State, meme *domain.Meme) State {
	next := NewState()
	next.Status = domain.DraftStatusSubmitted
	if meme != nil {
		next.MemeID = meme.ID
	}
	return next
}

// SubmitFailed records err and keeps picture, captions and description for a retry.
func SubmitFailed(s State, err error) State {
	next := s
	next.Captions = s.Captions.Clone()
	next.Status = domain.DraftStatusFailed
	if err != nil {
		next.Error = err.Error()
	}
	return next
}
