package domain

import "time"

type UserRole string

const (
	RoleRenter UserRole = "renter"
	RoleOwner  UserRole = "owner"
)

// User is read-only for the listing core; rows are created by the auth service (or cmd/seed).
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	Role         UserRole  `json:"role" gorm:"size:16;not null;default:renter"`
	CreatedAt    time.Time `json:"created_at"`
}
