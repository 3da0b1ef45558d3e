package listing

import "errors"

// MinPhotos is the photo count a listing needs before it can be published.
const MinPhotos = 4

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("property not found")
	ErrPhotoNotFound      = errors.New("photo not found")
	ErrForbidden          = errors.New("you do not own this property")
	ErrOwnerRequired      = errors.New("only owners can publish properties")
	ErrInsufficientPhotos = errors.New("minimum 4 photos required")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrInvalidReference   = errors.New("referenced entity does not exist")
	ErrStoreUnavailable   = errors.New("listing store unavailable")
	ErrNoResults          = errors.New("no properties found")
)
