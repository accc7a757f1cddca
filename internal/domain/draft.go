package domain

import "time"

// DraftStatus represents the state of a meme composition.
// Values include DraftStatusNoPicture, DraftStatusEditing, DraftStatusSubmitting,
// DraftStatusSubmitted, and DraftStatusFailed.
type DraftStatus string

const (
	DraftStatusNoPicture  DraftStatus = "no_picture"
	DraftStatusEditing    DraftStatus = "editing"
	DraftStatusSubmitting DraftStatus = "submitting"
	DraftStatusSubmitted  DraftStatus = "submitted"
	DraftStatusFailed     DraftStatus = "failed"
)

// Draft is a persisted meme composition owned by a single user.
// Picture bytes live in object storage under PictureKey. Version increases on every
// write and guards updates against concurrent edits.
type Draft struct {
	ID                 string      `gorm:"type:text;primaryKey" json:"id"`
	OwnerID            string      `gorm:"type:text;not null;index:idx_drafts_owner" json:"owner_id"`
	Status             DraftStatus `gorm:"type:text;default:no_picture" json:"status"`
	PictureKey         string      `gorm:"type:text" json:"picture_key,omitempty"`
	PictureName        string      `gorm:"type:text" json:"picture_name,omitempty"`
	PictureContentType string      `gorm:"type:text" json:"picture_content_type,omitempty"`
	PictureSize        int64       `json:"picture_size,omitempty"`
	PictureWidth       int         `json:"picture_width,omitempty"`
	PictureHeight      int         `json:"picture_height,omitempty"`
	PreviewURL         string      `gorm:"type:text" json:"preview_url,omitempty"`
	Captions           Captions    `gorm:"type:text" json:"captions"`
	Description        string      `gorm:"type:text" json:"description"`
	MemeID             string      `gorm:"type:text" json:"meme_id,omitempty"`
	ErrorLog           string      `json:"error_log,omitempty"`
	Version            int64       `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Draft.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Draft) TableName() string {
	return "meme_drafts"
}
