package listing

import (
	"fmt"
	"strconv"
	"strings"

	"rentals/internal/domain"
)

// PropertyRequest is the body of create and update. On multipart requests it
// arrives either as JSON in the "data" field or as individual form fields.
type PropertyRequest struct {
	Name        string          `json:"name" form:"name" validate:"required,max=255"`
	Type        string          `json:"type" form:"type" validate:"required,property_type"`
	Rent        float64         `json:"rent" form:"rent" validate:"gte=0"`
	Gender      string          `json:"gender" form:"gender" validate:"required,gender_policy"`
	Description string          `json:"description" form:"description" validate:"max=5000"`
	LocationID  int64           `json:"location_id" form:"location_id" validate:"required,gt=0"`
	Contact     *ContactRequest `json:"contact" form:"-" validate:"omitempty"`
	Amenities   *[]int64        `json:"amenities" form:"-"`
}

type ContactRequest struct {
	Phone           *string `json:"phone" validate:"omitempty,max=20"`
	Email           *string `json:"email" validate:"omitempty,email,max=255"`
	ShowToCustomers bool    `json:"show_to_customers"`
}

func (r *PropertyRequest) fields() Fields {
	t, _ := domain.ParsePropertyType(r.Type)
	g, _ := domain.ParseGender(r.Gender)
	return Fields{
		Name:        r.Name,
		Type:        t,
		Rent:        r.Rent,
		Gender:      g,
		Description: r.Description,
		LocationID:  r.LocationID,
	}
}

func (r *PropertyRequest) contact() *ContactInput {
	if r.Contact == nil {
		return nil
	}
	return &ContactInput{
		Phone:           r.Contact.Phone,
		Email:           r.Contact.Email,
		ShowToCustomers: r.Contact.ShowToCustomers,
	}
}

type PageParams struct {
	Page  int `form:"page" validate:"omitempty,min=1"`
	Limit int `form:"limit" validate:"omitempty,min=1"`
}

func (p PageParams) pagination() Pagination {
	pg := Pagination{Page: p.Page, Size: p.Limit}
	if pg.Page == 0 {
		pg.Page = DefaultPage
	}
	if pg.Size == 0 {
		pg.Size = DefaultPageSize
	}
	return pg
}

type SearchParams struct {
	City      string   `form:"city" validate:"omitempty,max=100"`
	Latitude  *float64 `form:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `form:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Radius    *float64 `form:"radius" validate:"omitempty,gt=0"`
	PageParams
}

type FilterParams struct {
	Type      string   `form:"type" validate:"omitempty,property_type"`
	Gender    string   `form:"gender" validate:"omitempty,gender_policy"`
	MinRent   *float64 `form:"minRent" validate:"omitempty,gte=0"`
	MaxRent   *float64 `form:"maxRent" validate:"omitempty,gte=0"`
	Amenities []string `form:"amenities"`
	PageParams
}

func (p FilterParams) query() (FilterQuery, error) {
	ids, err := parseIDList(p.Amenities)
	if err != nil {
		return FilterQuery{}, err
	}
	q := FilterQuery{
		MinRent:    p.MinRent,
		MaxRent:    p.MaxRent,
		AmenityIDs: ids,
		Pagination: p.pagination(),
	}
	if p.Type != "" {
		q.Type, _ = domain.ParsePropertyType(p.Type)
	}
	if p.Gender != "" {
		q.Gender, _ = domain.ParseGender(p.Gender)
	}
	return q, nil
}

// parseIDList accepts repeated values and comma separated lists: ?a=1&a=2,3
func parseIDList(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("%w: invalid amenity id %q", ErrValidation, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
