package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CaptionPlacement is a piece of text anchored at an (x, y) offset on the picture canvas.
type CaptionPlacement struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Content string  `json:"content"`
}

// Captions is an ordered list of caption placements stored as JSON in the database.
// The list order is the display order.
type Captions []CaptionPlacement

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (c Captions) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (c *Captions) Scan(value interface{}) error {
	if value == nil {
		*c = Captions{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Captions")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, c)
}

// Clone returns an independent copy of the list.
func (c Captions) Clone() Captions {
	out := make(Captions, len(c))
	copy(out, c)
	return out
}

// Meme is a picture with positioned captions and a description, authored by a user.
// Memes are immutable once fetched from the meme service.
type Meme struct {
	ID          string    `json:"id"`
	PictureURL  string    `json:"pictureUrl"`
	Texts       Captions  `json:"texts"`
	Description string    `json:"description"`
	AuthorID    string    `json:"authorId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MemeWithDetails is a meme joined with its resolved author and its author-enriched comments.
// It is recomputed on every fetch cycle and never persisted.
type MemeWithDetails struct {
	Meme
	Author   *User                `json:"author,omitempty"`
	Comments []CommentWithDetails `json:"comments"`
}

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	Results  []T `json:"results"`
	Total    int `json:"total"`
	PageSize int `json:"pageSize"`
	Page     int `json:"page"`
}
