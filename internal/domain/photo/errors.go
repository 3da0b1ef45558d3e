package photo

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("only JPEG and PNG images are allowed")
	ErrPayloadTooLarge      = errors.New("photo upload exceeds the allowed size or file count")
	ErrEmptyFile            = errors.New("file is empty")
)
