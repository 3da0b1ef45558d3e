package domain

import (
	"fmt"
	"strings"
	"time"
)

type PropertyType string

const (
	PropertyPG     PropertyType = "pg"
	PropertyVilla  PropertyType = "villa"
	PropertyFlat   PropertyType = "flat"
	PropertyHostel PropertyType = "hostel"
)

func ParsePropertyType(s string) (PropertyType, error) {
	switch t := PropertyType(strings.ToLower(strings.TrimSpace(s))); t {
	case PropertyPG, PropertyVilla, PropertyFlat, PropertyHostel:
		return t, nil
	}
	return "", fmt.Errorf("invalid property type %q", s)
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderCoed   Gender = "coed"
)

func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale, GenderCoed:
		return g, nil
	}
	return "", fmt.Errorf("invalid gender policy %q", s)
}

// Location is shared by reference between properties. Coordinates are optional.
type Location struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	City      string    `json:"city" gorm:"size:100;not null;index"`
	Latitude  *float64  `json:"latitude,omitempty" gorm:"type:decimal(9,6)"`
	Longitude *float64  `json:"longitude,omitempty" gorm:"type:decimal(9,6)"`
	CreatedAt time.Time `json:"created_at"`
}

// Property is the aggregate root. Photos, Contact and Amenities are its dependents.
type Property struct {
	ID          int64        `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"size:255;not null"`
	Type        PropertyType `json:"type" gorm:"size:16;not null;index"`
	Rent        float64      `json:"rent" gorm:"type:decimal(10,2);not null;index"`
	Gender      Gender       `json:"gender" gorm:"size:16;not null;index"`
	Description string       `json:"description" gorm:"type:text"`
	LocationID  int64        `json:"location_id" gorm:"not null;index"`
	OwnerID     int64        `json:"owner_id" gorm:"not null;index"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Location  *Location `json:"location,omitempty" gorm:"foreignKey:LocationID;constraint:OnDelete:RESTRICT"`
	Owner     *User     `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Photos    []Photo   `json:"photos" gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE"`
	Contact   *Contact  `json:"contact,omitempty" gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE"`
	Amenities []Amenity `json:"amenities" gorm:"many2many:property_amenities;constraint:OnDelete:CASCADE"`
}

type Photo struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	PropertyID int64     `json:"property_id" gorm:"not null;index"`
	URL        string    `json:"url" gorm:"size:255;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// Contact is 1:1 with Property. Phone and Email have no column default.
type Contact struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	PropertyID      int64     `json:"property_id" gorm:"not null;uniqueIndex"`
	Phone           *string   `json:"phone,omitempty" gorm:"size:20"`
	Email           *string   `json:"email,omitempty" gorm:"size:255"`
	ShowToCustomers bool      `json:"show_to_customers" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Amenity struct {
	ID   int64  `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;uniqueIndex;not null"`
}

// PropertyAmenity is the link row behind Property.Amenities.
type PropertyAmenity struct {
	PropertyID int64 `gorm:"primaryKey;autoIncrement:false"`
	AmenityID  int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (PropertyAmenity) TableName() string { return "property_amenities" }
