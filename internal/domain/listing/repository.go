package listing

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentals/internal/domain"
)

// Repository is the listing store. A Repository returned to a Transaction
// callback is bound to that transaction; every write inside the callback must
// go through it.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn in one all-or-nothing scope. Any error returned by fn
// rolls back every row change made through tx.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// Filter narrows FindPage. Zero values mean "no restriction"; a non-nil empty
// LocationIDs matches nothing.
type Filter struct {
	OwnerID     int64
	City        string
	LocationIDs []int64
	Type        domain.PropertyType
	Gender      domain.Gender
	MinRent     *float64
	MaxRent     *float64
	AmenityIDs  []int64
}

/* ---------- AGGREGATE ROOT ---------- */

// GetProperty loads the bare Property row.
func (r *Repository) GetProperty(ctx context.Context, id int64) (*domain.Property, error) {
	var p domain.Property
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByID loads the full aggregate.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Property, error) {
	var p domain.Property
	err := withAggregate(r.db.WithContext(ctx)).First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) CreateProperty(ctx context.Context, p *domain.Property) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// UpdateProperty replaces the core fields unconditionally.
func (r *Repository) UpdateProperty(ctx context.Context, p *domain.Property) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Property{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name":        p.Name,
			"type":        p.Type,
			"rent":        p.Rent,
			"gender":      p.Gender,
			"description": p.Description,
			"location_id": p.LocationID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProperty removes the property and every dependent row.
func (r *Repository) DeleteProperty(ctx context.Context, id int64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("property_id = ?", id).Delete(&domain.Contact{}).Error; err != nil {
		return err
	}
	if err := db.Where("property_id = ?", id).Delete(&domain.PropertyAmenity{}).Error; err != nil {
		return err
	}
	if err := db.Where("property_id = ?", id).Delete(&domain.Photo{}).Error; err != nil {
		return err
	}
	res := db.Delete(&domain.Property{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

/* ---------- PHOTOS ---------- */

func (r *Repository) InsertPhotos(ctx context.Context, propertyID int64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	photos := make([]domain.Photo, 0, len(urls))
	for _, u := range urls {
		photos = append(photos, domain.Photo{PropertyID: propertyID, URL: u})
	}
	return r.db.WithContext(ctx).Create(&photos).Error
}

// DeletePhotos removes every Photo row of the property and returns their URLs.
func (r *Repository) DeletePhotos(ctx context.Context, propertyID int64) ([]string, error) {
	db := r.db.WithContext(ctx)

	var urls []string
	if err := db.Model(&domain.Photo{}).
		Where("property_id = ?", propertyID).
		Order("id ASC").
		Pluck("url", &urls).Error; err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, nil
	}
	if err := db.Where("property_id = ?", propertyID).Delete(&domain.Photo{}).Error; err != nil {
		return nil, err
	}
	return urls, nil
}

func (r *Repository) GetPhoto(ctx context.Context, id int64) (*domain.Photo, error) {
	var ph domain.Photo
	if err := r.db.WithContext(ctx).First(&ph, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, err
	}
	return &ph, nil
}

func (r *Repository) CountPhotos(ctx context.Context, propertyID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Photo{}).Where("property_id = ?", propertyID).Count(&n).Error
	return n, err
}

func (r *Repository) DeletePhoto(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.Photo{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

/* ---------- CONTACT & AMENITIES ---------- */

// UpsertContact creates the property's contact card or replaces it in place.
func (r *Repository) UpsertContact(ctx context.Context, c *domain.Contact) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "property_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"phone", "email", "show_to_customers", "updated_at"}),
		}).
		Create(c).Error
}

// ReplaceAmenityLinks deletes every link of the property and inserts the given
// set. Unknown amenity ids fail with ErrInvalidReference before anything is written.
func (r *Repository) ReplaceAmenityLinks(ctx context.Context, propertyID int64, amenityIDs []int64) error {
	db := r.db.WithContext(ctx)
	ids := uniqueIDs(amenityIDs)

	if len(ids) > 0 {
		var found int64
		if err := db.Model(&domain.Amenity{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
			return err
		}
		if found != int64(len(ids)) {
			return ErrInvalidReference
		}
	}

	if err := db.Where("property_id = ?", propertyID).Delete(&domain.PropertyAmenity{}).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	links := make([]domain.PropertyAmenity, 0, len(ids))
	for _, id := range ids {
		links = append(links, domain.PropertyAmenity{PropertyID: propertyID, AmenityID: id})
	}
	return db.Create(&links).Error
}

/* ---------- QUERIES ---------- */

// FindPage returns one page of aggregates in id order plus the total match count.
func (r *Repository) FindPage(ctx context.Context, f Filter, page, size int) ([]domain.Property, int64, error) {
	var (
		items []domain.Property
		total int64
	)

	q := r.applyFilter(r.db.WithContext(ctx).Model(&domain.Property{}), f)

	countQuery := q.Session(&gorm.Session{})
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	err := withAggregate(q).
		Order("properties.id ASC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// LocationsInBox returns located rows whose coordinates fall inside the box.
func (r *Repository) LocationsInBox(ctx context.Context, box BoundingBox) ([]domain.Location, error) {
	var locs []domain.Location
	err := r.db.WithContext(ctx).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon).
		Find(&locs).Error
	return locs, err
}

func (r *Repository) applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.OwnerID > 0 {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.LocationIDs != nil {
		q = q.Where("location_id IN ?", f.LocationIDs)
	}
	if city := strings.ToLower(strings.TrimSpace(f.City)); city != "" {
		sub := r.db.Model(&domain.Location{}).
			Select("id").
			Where("LOWER(city) LIKE ?", "%"+city+"%")
		q = q.Where("location_id IN (?)", sub)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Gender != "" {
		q = q.Where("gender = ?", f.Gender)
	}
	if f.MinRent != nil {
		q = q.Where("rent >= ?", *f.MinRent)
	}
	if f.MaxRent != nil {
		q = q.Where("rent <= ?", *f.MaxRent)
	}
	if len(f.AmenityIDs) > 0 {
		// any-of: one matching link is enough
		sub := r.db.Model(&domain.PropertyAmenity{}).
			Select("property_id").
			Where("amenity_id IN ?", uniqueIDs(f.AmenityIDs))
		q = q.Where("properties.id IN (?)", sub)
	}
	return q
}

func withAggregate(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Location").
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("photos.id ASC") }).
		Preload("Contact").
		Preload("Amenities", func(db *gorm.DB) *gorm.DB { return db.Order("amenities.id ASC") })
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
