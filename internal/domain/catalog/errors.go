package catalog

import "errors"

var (
	ErrNoAmenities = errors.New("no amenities found")
	ErrNoLocations = errors.New("no locations found")
)
