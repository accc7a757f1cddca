package domain

import "time"

// Comment is a comment left on a meme.
type Comment struct {
	ID        string    `json:"id"`
	MemeID    string    `json:"memeId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentWithDetails is a comment enriched with its resolved author.
// Author is nil when the lookup failed.
type CommentWithDetails struct {
	Comment
	Author *User `json:"author,omitempty"`
}
