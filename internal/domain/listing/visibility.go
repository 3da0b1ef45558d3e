package listing

import (
	"strings"
	"sync"
	"time"

	"gorm.io/gorm/schema"

	"rentals/internal/domain"
)

// Caller is the identity handed over by the auth layer. The zero value is an
// anonymous visitor.
type Caller struct {
	UserID int64
	Role   domain.UserRole
}

func (c Caller) Authenticated() bool { return c.UserID > 0 }

// Listing is the projected aggregate returned to readers.
type Listing struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Type        domain.PropertyType `json:"type"`
	Rent        float64             `json:"rent"`
	Gender      domain.Gender       `json:"gender"`
	Description string              `json:"description"`
	LocationID  int64               `json:"location_id"`
	OwnerID     int64               `json:"owner_id"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Location    *domain.Location    `json:"location,omitempty"`
	Photos      []PhotoView         `json:"photos"`
	Contact     *ContactView        `json:"contact,omitempty"`
	Amenities   []domain.Amenity    `json:"amenities"`
}

type PhotoView struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type ContactView struct {
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

// contactFields are the contact columns the policy can reveal.
var contactFields = []string{"phone", "email"}

// VisibilityPolicy projects aggregates for a caller. Authenticated callers see
// every contact field; anonymous callers only see fields whose column carries
// a non-null default.
type VisibilityPolicy struct {
	anonymous map[string]bool
}

// NewVisibilityPolicy takes the set of contact columns that have a non-null default.
func NewVisibilityPolicy(defaulted map[string]bool) *VisibilityPolicy {
	anon := make(map[string]bool, len(contactFields))
	for _, f := range contactFields {
		anon[f] = defaulted[f]
	}
	return &VisibilityPolicy{anonymous: anon}
}

// DefaultVisibilityPolicy derives the anonymous field set from the Contact model tags.
func DefaultVisibilityPolicy() (*VisibilityPolicy, error) {
	defaulted, err := contactColumnDefaults()
	if err != nil {
		return nil, err
	}
	return NewVisibilityPolicy(defaulted), nil
}

func contactColumnDefaults() (map[string]bool, error) {
	s, err := schema.Parse(&domain.Contact{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(contactFields))
	for _, name := range contactFields {
		f := s.LookUpField(name)
		out[name] = f != nil && f.HasDefaultValue &&
			f.DefaultValue != "" && !strings.EqualFold(f.DefaultValue, "null")
	}
	return out, nil
}

func (v *VisibilityPolicy) Project(p *domain.Property, viewer Caller) Listing {
	out := Listing{
		ID:          p.ID,
		Name:        p.Name,
		Type:        p.Type,
		Rent:        p.Rent,
		Gender:      p.Gender,
		Description: p.Description,
		LocationID:  p.LocationID,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Location:    p.Location,
		Photos:      make([]PhotoView, 0, len(p.Photos)),
		Amenities:   make([]domain.Amenity, 0, len(p.Amenities)),
	}
	for _, ph := range p.Photos {
		out.Photos = append(out.Photos, PhotoView{ID: ph.ID, URL: ph.URL})
	}
	out.Amenities = append(out.Amenities, p.Amenities...)
	out.Contact = v.contact(p.Contact, viewer)
	return out
}

func (v *VisibilityPolicy) ProjectAll(items []domain.Property, viewer Caller) []Listing {
	out := make([]Listing, 0, len(items))
	for i := range items {
		out = append(out, v.Project(&items[i], viewer))
	}
	return out
}

func (v *VisibilityPolicy) contact(c *domain.Contact, viewer Caller) *ContactView {
	if c == nil {
		return nil
	}
	full := viewer.Authenticated()

	var view ContactView
	if full || v.anonymous["phone"] {
		view.Phone = c.Phone
	}
	if full || v.anonymous["email"] {
		view.Email = c.Email
	}
	if view.Phone == nil && view.Email == nil {
		return nil
	}
	return &view
}
