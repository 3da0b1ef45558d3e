package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentals/internal/database"
	"rentals/internal/domain"
	jwtsvc "rentals/internal/pkg/jwt"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "rentals.db"
	}
	db, err := database.Connect(dsn, database.DefaultOptions())
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migrate failed:", err)
	}

	// Children before parents so foreign keys hold.
	log.Println("Cleaning old data...")
	for _, table := range []string{"property_amenities", "contacts", "photos", "properties", "amenities", "locations", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("clean %s: %v", table, err)
		}
	}

	// ================== USERS ==================
	log.Println("Creating users...")
	users := []domain.User{
		{Email: "owner@rentals.local", Name: "Demo Owner", Role: domain.RoleOwner},
		{Email: "owner2@rentals.local", Name: "Second Owner", Role: domain.RoleOwner},
		{Email: "renter@rentals.local", Name: "Demo Renter", Role: domain.RoleRenter},
	}
	for i := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("bcrypt:", err)
		}
		users[i].PasswordHash = string(hash)
	}
	mustCreate(db, &users)

	// ================== LOCATIONS ==================
	log.Println("Creating locations...")
	locations := []domain.Location{
		{City: "Bengaluru", Latitude: coord(12.9716), Longitude: coord(77.5946)},
		{City: "Bengaluru Whitefield", Latitude: coord(12.9698), Longitude: coord(77.7500)},
		{City: "Mumbai", Latitude: coord(19.0760), Longitude: coord(72.8777)},
		{City: "Pune", Latitude: coord(18.5204), Longitude: coord(73.8567)},
		{City: "New Delhi", Latitude: coord(28.6139), Longitude: coord(77.2090)},
		{City: "Mysuru"},
	}
	mustCreate(db, &locations)

	// ================== AMENITIES ==================
	log.Println("Creating amenities...")
	amenities := []domain.Amenity{
		{Name: "wifi"}, {Name: "air conditioning"}, {Name: "parking"}, {Name: "laundry"},
		{Name: "meals"}, {Name: "power backup"}, {Name: "gym"}, {Name: "housekeeping"},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&amenities).Error; err != nil {
		log.Fatal("amenities:", err)
	}

	// ================== TOKENS ==================
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "change-me-jwt-secret"
	}
	j := jwtsvc.New(secret, 24*time.Hour)
	for _, u := range users {
		token, err := j.GenerateToken(u.ID, string(u.Role))
		if err != nil {
			log.Fatal("token:", err)
		}
		log.Printf("%s (%s) / password123\n  Bearer %s", u.Email, u.Role, token)
	}

	log.Printf("Seed complete: %d users, %d locations, %d amenities", len(users), len(locations), len(amenities))
}

func mustCreate(db *gorm.DB, v interface{}) {
	if err := db.Create(v).Error; err != nil {
		log.Fatal("seed insert failed:", err)
	}
}

func coord(v float64) *float64 { return &v }
