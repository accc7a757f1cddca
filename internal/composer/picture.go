package composer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/timmy/memefeed/internal/domain"
)

var allowedPictureTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// PictureInfo describes validated picture bytes.
type PictureInfo struct {
	ContentType string
	Extension   string
	Size        int64
	Width       int
	Height      int
}

// Inspect checks that data is a decodable picture of an accepted format no larger than
// maxBytes (zero disables the limit). The content type is sniffed, the name is ignored.
func Inspect(data []byte, maxBytes int64) (*PictureInfo, error) {
	const op = "composer.Inspect"
	if len(data) == 0 {
		return nil, domain.NewValidationError(op, "picture is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, domain.NewValidationError(op, fmt.Sprintf("picture exceeds %d bytes", maxBytes))
	}

	mime := mimetype.Detect(data)
	ext, ok := allowedPictureTypes[mime.String()]
	if !ok {
		return nil, domain.NewValidationError(op, fmt.Sprintf("unsupported picture type %s", mime.String()))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindValidation, Op: op, Msg: "picture cannot be decoded", Err: err}
	}

	return &PictureInfo{
		ContentType: mime.String(),
		Extension:   ext,
		Size:        int64(len(data)),
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}
