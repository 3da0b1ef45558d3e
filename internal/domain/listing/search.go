package listing

import (
	"context"
	"fmt"

	"rentals/internal/domain"
	"rentals/internal/pkg/logger"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Pagination struct {
	Page int
	Size int
}

// Page is one page of projected listings. TotalPages = ceil(Total/PageSize).
type Page struct {
	Items      []Listing `json:"properties"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"limit"`
	TotalPages int       `json:"pages"`
}

type SearchQuery struct {
	City      string
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64
	Pagination
}

type FilterQuery struct {
	Type       domain.PropertyType
	Gender     domain.Gender
	MinRent    *float64
	MaxRent    *float64
	AmenityIDs []int64
	Pagination
}

// Finder is the read side: single fetch, listing, search and faceted filter.
// Every row goes through the visibility policy before it is returned.
type Finder struct {
	repo   *Repository
	policy *VisibilityPolicy
	log    logger.Logger
}

func NewFinder(repo *Repository, policy *VisibilityPolicy, log logger.Logger) *Finder {
	return &Finder{repo: repo, policy: policy, log: log}
}

func (f *Finder) Get(ctx context.Context, viewer Caller, id int64) (*Listing, error) {
	p, err := f.repo.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	out := f.policy.Project(p, viewer)
	return &out, nil
}

func (f *Finder) List(ctx context.Context, viewer Caller, pg Pagination) (*Page, error) {
	return f.page(ctx, viewer, Filter{}, pg)
}

// ListMine returns the caller's own listings.
func (f *Finder) ListMine(ctx context.Context, caller Caller, pg Pagination) (*Page, error) {
	if !caller.Authenticated() {
		return nil, ErrForbidden
	}
	return f.page(ctx, caller, Filter{OwnerID: caller.UserID}, pg)
}

// Search matches by city substring and/or a haversine radius around a point.
// Both criteria apply together when both are given.
func (f *Finder) Search(ctx context.Context, viewer Caller, q SearchQuery) (*Page, error) {
	filter := Filter{City: q.City}

	if q.Latitude != nil || q.Longitude != nil {
		if q.Latitude == nil || q.Longitude == nil {
			return nil, fmt.Errorf("%w: latitude and longitude must be given together", ErrValidation)
		}
		radius := DefaultRadiusKm
		if q.RadiusKm != nil {
			radius = *q.RadiusKm
		}
		if err := validatePoint(*q.Latitude, *q.Longitude, radius); err != nil {
			return nil, err
		}

		ids, err := f.locationsWithin(ctx, *q.Latitude, *q.Longitude, radius)
		if err != nil {
			return nil, classify(err)
		}
		if len(ids) == 0 {
			return nil, ErrNoResults
		}
		filter.LocationIDs = ids
	}

	return f.page(ctx, viewer, filter, q.Pagination)
}

// Filter applies the faceted filter. AmenityIDs match when a property carries
// at least one of them.
func (f *Finder) Filter(ctx context.Context, viewer Caller, q FilterQuery) (*Page, error) {
	if q.MinRent != nil && *q.MinRent < 0 || q.MaxRent != nil && *q.MaxRent < 0 {
		return nil, fmt.Errorf("%w: rent bounds must be non-negative", ErrValidation)
	}
	if q.MinRent != nil && q.MaxRent != nil && *q.MinRent > *q.MaxRent {
		return nil, fmt.Errorf("%w: minRent is greater than maxRent", ErrValidation)
	}

	return f.page(ctx, viewer, Filter{
		Type:       q.Type,
		Gender:     q.Gender,
		MinRent:    q.MinRent,
		MaxRent:    q.MaxRent,
		AmenityIDs: q.AmenityIDs,
	}, q.Pagination)
}

func (f *Finder) page(ctx context.Context, viewer Caller, filter Filter, pg Pagination) (*Page, error) {
	pg, err := normalizePagination(pg)
	if err != nil {
		return nil, err
	}

	items, total, err := f.repo.FindPage(ctx, filter, pg.Page, pg.Size)
	if err != nil {
		f.log.Errorw("listing query failed", "error", err)
		return nil, classify(err)
	}
	if len(items) == 0 {
		return nil, ErrNoResults
	}

	return &Page{
		Items:      f.policy.ProjectAll(items, viewer),
		Total:      total,
		Page:       pg.Page,
		PageSize:   pg.Size,
		TotalPages: int((total + int64(pg.Size) - 1) / int64(pg.Size)),
	}, nil
}

func (f *Finder) locationsWithin(ctx context.Context, lat, lon, radiusKm float64) ([]int64, error) {
	candidates, err := f.repo.LocationsInBox(ctx, boundingBox(lat, lon, radiusKm))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(candidates))
	for _, loc := range candidates {
		if loc.Latitude == nil || loc.Longitude == nil {
			continue
		}
		if HaversineKm(lat, lon, *loc.Latitude, *loc.Longitude) <= radiusKm {
			ids = append(ids, loc.ID)
		}
	}
	return ids, nil
}

func normalizePagination(pg Pagination) (Pagination, error) {
	if pg.Page < 1 || pg.Size < 1 {
		return pg, fmt.Errorf("%w: page and limit must be positive", ErrValidation)
	}
	if pg.Size > MaxPageSize {
		pg.Size = MaxPageSize
	}
	return pg, nil
}

func validatePoint(lat, lon, radius float64) error {
	switch {
	case lat < -90 || lat > 90:
		return fmt.Errorf("%w: latitude out of range", ErrValidation)
	case lon < -180 || lon > 180:
		return fmt.Errorf("%w: longitude out of range", ErrValidation)
	case radius <= 0:
		return fmt.Errorf("%w: radius must be positive", ErrValidation)
	}
	return nil
}
