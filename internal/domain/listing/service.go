package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rentals/internal/domain"
	"rentals/internal/domain/photo"
	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/metrics"
)

// Fields are the core Property columns supplied on create and update.
type Fields struct {
	Name        string
	Type        domain.PropertyType
	Rent        float64
	Gender      domain.Gender
	Description string
	LocationID  int64
}

type ContactInput struct {
	Phone           *string
	Email           *string
	ShowToCustomers bool
}

type CreateInput struct {
	Fields
	Photos     []photo.File
	Contact    *ContactInput
	AmenityIDs []int64
}

// UpdateInput: no Photos keeps the current set, nil Contact keeps the card,
// nil AmenityIDs keeps the links and an empty slice removes them all.
type UpdateInput struct {
	Fields
	Photos     []photo.File
	Contact    *ContactInput
	AmenityIDs *[]int64
}

// Service coordinates aggregate writes: the property row, its photos (files
// and rows), the contact card and the amenity links.
type Service struct {
	repo     *Repository
	photos   *photo.Manager
	notifier ChangeNotifier
	log      logger.Logger
	metrics  *metrics.Metrics
}

func NewService(repo *Repository, photos *photo.Manager, notifier ChangeNotifier, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		photos:   photos,
		notifier: notifier,
		log:      log,
		metrics:  m,
	}
}

// Create publishes a new listing and returns its id.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateInput) (int64, error) {
	const op = "create"

	if !caller.Authenticated() || caller.Role != domain.RoleOwner {
		return 0, s.finish(op, 0, caller, ErrOwnerRequired)
	}
	if len(in.Photos) < MinPhotos {
		return 0, s.finish(op, 0, caller, ErrInsufficientPhotos)
	}
	fields, err := normalizeFields(in.Fields)
	if err != nil {
		return 0, s.finish(op, 0, caller, err)
	}

	batch, err := s.photos.Stage(ctx, in.Photos)
	if err != nil {
		batch.Rollback(ctx)
		return 0, s.finish(op, 0, caller, err)
	}

	p := fields.property(0, caller.UserID)
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		if err := tx.CreateProperty(ctx, p); err != nil {
			return fmt.Errorf("create property: %w", err)
		}
		if err := batch.CommitRows(ctx, tx, p.ID); err != nil {
			return fmt.Errorf("commit photos: %w", err)
		}
		if in.Contact != nil {
			if err := tx.UpsertContact(ctx, in.Contact.row(p.ID)); err != nil {
				return fmt.Errorf("save contact: %w", err)
			}
		}
		if len(in.AmenityIDs) > 0 {
			if err := tx.ReplaceAmenityLinks(ctx, p.ID, in.AmenityIDs); err != nil {
				return fmt.Errorf("link amenities: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		batch.Rollback(ctx)
		return 0, s.finish(op, 0, caller, err)
	}
	batch.Release()

	s.finish(op, p.ID, caller, nil)
	s.notify(ctx, EventListingCreated, p.ID, caller.UserID)
	return p.ID, nil
}

// Update replaces the core fields and, when supplied, the photos, contact and amenity links.
func (s *Service) Update(ctx context.Context, caller Caller, id int64, in UpdateInput) error {
	const op = "update"

	if err := s.authorize(ctx, caller, id); err != nil {
		return s.finish(op, id, caller, err)
	}
	if len(in.Photos) > 0 && len(in.Photos) < MinPhotos {
		return s.finish(op, id, caller, ErrInsufficientPhotos)
	}
	fields, err := normalizeFields(in.Fields)
	if err != nil {
		return s.finish(op, id, caller, err)
	}

	var batch *photo.Batch
	if len(in.Photos) > 0 {
		batch, err = s.photos.Stage(ctx, in.Photos)
		if err != nil {
			batch.Rollback(ctx)
			return s.finish(op, id, caller, err)
		}
	}

	var replaced []string
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		if err := tx.UpdateProperty(ctx, fields.property(id, caller.UserID)); err != nil {
			return fmt.Errorf("update property: %w", err)
		}
		if batch != nil {
			old, err := batch.ReplaceRows(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("replace photos: %w", err)
			}
			replaced = old
		}
		if in.Contact != nil {
			if err := tx.UpsertContact(ctx, in.Contact.row(id)); err != nil {
				return fmt.Errorf("save contact: %w", err)
			}
		}
		if in.AmenityIDs != nil {
			if err := tx.ReplaceAmenityLinks(ctx, id, *in.AmenityIDs); err != nil {
				return fmt.Errorf("replace amenities: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		batch.Rollback(ctx)
		return s.finish(op, id, caller, err)
	}
	batch.Release()

	s.photos.RemoveFiles(ctx, replaced)
	s.finish(op, id, caller, nil)
	s.notify(ctx, EventListingUpdated, id, caller.UserID)
	return nil
}

// Delete removes the aggregate, then the photo files it referenced.
func (s *Service) Delete(ctx context.Context, caller Caller, id int64) error {
	const op = "delete"

	if err := s.authorize(ctx, caller, id); err != nil {
		return s.finish(op, id, caller, err)
	}

	var removed []string
	err := s.repo.Transaction(ctx, func(tx *Repository) error {
		urls, err := s.photos.DeleteRows(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("delete photos: %w", err)
		}
		if err := tx.DeleteProperty(ctx, id); err != nil {
			return fmt.Errorf("delete property: %w", err)
		}
		removed = urls
		return nil
	})
	if err != nil {
		return s.finish(op, id, caller, err)
	}

	s.photos.RemoveFiles(ctx, removed)
	s.finish(op, id, caller, nil)
	s.notify(ctx, EventListingDeleted, id, caller.UserID)
	return nil
}

// ReplacePhotos swaps the whole photo set of a listing.
func (s *Service) ReplacePhotos(ctx context.Context, caller Caller, id int64, files []photo.File) error {
	const op = "replace_photos"

	if err := s.authorize(ctx, caller, id); err != nil {
		return s.finish(op, id, caller, err)
	}
	if len(files) < MinPhotos {
		return s.finish(op, id, caller, ErrInsufficientPhotos)
	}

	batch, err := s.photos.Stage(ctx, files)
	if err != nil {
		batch.Rollback(ctx)
		return s.finish(op, id, caller, err)
	}

	var replaced []string
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		old, err := batch.ReplaceRows(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("replace photos: %w", err)
		}
		replaced = old
		return nil
	})
	if err != nil {
		batch.Rollback(ctx)
		return s.finish(op, id, caller, err)
	}
	batch.Release()

	s.photos.RemoveFiles(ctx, replaced)
	s.finish(op, id, caller, nil)
	s.notify(ctx, EventListingUpdated, id, caller.UserID)
	return nil
}

// DeletePhoto removes a single photo. A listing never drops below MinPhotos.
func (s *Service) DeletePhoto(ctx context.Context, caller Caller, photoID int64) error {
	const op = "delete_photo"

	ph, err := s.repo.GetPhoto(ctx, photoID)
	if err != nil {
		return s.finish(op, 0, caller, err)
	}
	if err := s.authorize(ctx, caller, ph.PropertyID); err != nil {
		return s.finish(op, ph.PropertyID, caller, err)
	}

	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		n, err := tx.CountPhotos(ctx, ph.PropertyID)
		if err != nil {
			return err
		}
		if n <= MinPhotos {
			return ErrInsufficientPhotos
		}
		return tx.DeletePhoto(ctx, photoID)
	})
	if err != nil {
		return s.finish(op, ph.PropertyID, caller, err)
	}

	s.photos.RemoveFiles(ctx, []string{ph.URL})
	s.finish(op, ph.PropertyID, caller, nil)
	s.notify(ctx, EventListingUpdated, ph.PropertyID, caller.UserID)
	return nil
}

// authorize checks existence first, then ownership.
func (s *Service) authorize(ctx context.Context, caller Caller, id int64) error {
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return err
	}
	if !caller.Authenticated() || p.OwnerID != caller.UserID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) notify(ctx context.Context, event string, propertyID, ownerID int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.ListingChanged(ctx, event, propertyID, ownerID)
}

// finish classifies err, records the outcome and logs it. It returns the
// classified error so call sites can return it directly.
func (s *Service) finish(op string, propertyID int64, caller Caller, err error) error {
	if err == nil {
		s.metrics.ObserveWrite(op, "ok")
		s.log.Infow("listing write committed", "operation", op, "property_id", propertyID, "user_id", caller.UserID)
		return nil
	}

	err = classify(err)
	if isRejection(err) {
		s.metrics.ObserveWrite(op, "rejected")
		s.log.Warnw("listing write rejected", "operation", op, "property_id", propertyID, "user_id", caller.UserID, "reason", err)
		return err
	}
	s.metrics.ObserveWrite(op, "failed")
	s.log.Errorw("listing write failed", "operation", op, "property_id", propertyID, "user_id", caller.UserID, "error", err)
	return err
}

func isRejection(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrPhotoNotFound, ErrForbidden, ErrOwnerRequired,
		ErrInsufficientPhotos, ErrDuplicateEntry, ErrInvalidReference,
		photo.ErrUnsupportedMediaType, photo.ErrPayloadTooLarge, photo.ErrEmptyFile,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// normalizeFields returns f with canonical type and gender values.
func normalizeFields(f Fields) (Fields, error) {
	if strings.TrimSpace(f.Name) == "" {
		return f, fmt.Errorf("%w: name is required", ErrValidation)
	}
	t, err := domain.ParsePropertyType(string(f.Type))
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	g, err := domain.ParseGender(string(f.Gender))
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if f.Rent < 0 {
		return f, fmt.Errorf("%w: rent must be non-negative", ErrValidation)
	}
	if f.LocationID <= 0 {
		return f, fmt.Errorf("%w: location_id is required", ErrValidation)
	}
	f.Type, f.Gender = t, g
	return f, nil
}

func (f Fields) property(id, ownerID int64) *domain.Property {
	return &domain.Property{
		ID:          id,
		Name:        strings.TrimSpace(f.Name),
		Type:        f.Type,
		Rent:        f.Rent,
		Gender:      f.Gender,
		Description: f.Description,
		LocationID:  f.LocationID,
		OwnerID:     ownerID,
	}
}

func (c *ContactInput) row(propertyID int64) *domain.Contact {
	return &domain.Contact{
		PropertyID:      propertyID,
		Phone:           c.Phone,
		Email:           c.Email,
		ShowToCustomers: c.ShowToCustomers,
	}
}
