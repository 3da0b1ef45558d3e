package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"rentals/internal/domain"
)

// Repository reads the shared reference data. Rows are administered
// separately (seed, admin tooling); nothing here writes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListAmenities(ctx context.Context) ([]domain.Amenity, error) {
	var out []domain.Amenity
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// ListLocations filters by a case-insensitive city substring when city is set.
func (r *Repository) ListLocations(ctx context.Context, city string) ([]domain.Location, error) {
	q := r.db.WithContext(ctx).Model(&domain.Location{})
	if s := strings.ToLower(strings.TrimSpace(city)); s != "" {
		q = q.Where("LOWER(city) LIKE ?", "%"+s+"%")
	}
	var out []domain.Location
	err := q.Order("city ASC, id ASC").Find(&out).Error
	return out, err
}
