package catalog

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	"rentals/internal/domain"
	"rentals/internal/pkg/logger"
)

const amenitiesKey = "amenities"

type Service struct {
	repo  *Repository
	cache *ccache.Cache[[]domain.Amenity]
	ttl   time.Duration
	log   logger.Logger
}

func NewService(repo *Repository, ttl time.Duration, log logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		repo:  repo,
		cache: ccache.New(ccache.Configure[[]domain.Amenity]().MaxSize(16)),
		ttl:   ttl,
		log:   log,
	}
}

// Amenities returns the whole catalog. Non-empty results are cached for ttl.
func (s *Service) Amenities(ctx context.Context) ([]domain.Amenity, error) {
	item, err := s.cache.Fetch(amenitiesKey, s.ttl, func() ([]domain.Amenity, error) {
		list, err := s.repo.ListAmenities(ctx)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, ErrNoAmenities
		}
		s.log.Debugw("amenity catalog loaded", "count", len(list))
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return item.Value(), nil
}

func (s *Service) Locations(ctx context.Context, city string) ([]domain.Location, error) {
	list, err := s.repo.ListLocations(ctx, city)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoLocations
	}
	return list, nil
}

// Stop releases the cache's background worker.
func (s *Service) Stop() {
	s.cache.Stop()
}
