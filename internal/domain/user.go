package domain

// User is a meme service account as returned by GET /users/{id}.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	PictureURL string `json:"pictureUrl"`
}
