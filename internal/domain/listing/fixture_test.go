package listing

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentals/internal/database"
	"rentals/internal/domain"
	"rentals/internal/domain/photo"
	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/metrics"
)

/* ==================== MOCKS ==================== */

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) ListingChanged(ctx context.Context, event string, propertyID, ownerID int64) {
	m.Called(ctx, event, propertyID, ownerID)
}

/* ==================== FIXTURE ==================== */

type fixture struct {
	db       *gorm.DB
	repo     *Repository
	storage  *photo.LocalStorage
	metrics  *metrics.Metrics
	notifier *MockNotifier
	service  *Service
	finder   *Finder

	owner    domain.User
	other    domain.User
	renter   domain.User
	location domain.Location
	wifi     domain.Amenity
	parking  domain.Amenity
}

func (f *fixture) ownerCaller() Caller  { return Caller{UserID: f.owner.ID, Role: domain.RoleOwner} }
func (f *fixture) otherCaller() Caller  { return Caller{UserID: f.other.ID, Role: domain.RoleOwner} }
func (f *fixture) renterCaller() Caller { return Caller{UserID: f.renter.ID, Role: domain.RoleRenter} }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	opts := database.DefaultOptions()
	opts.LogLevel = gormlogger.Silent
	opts.MaxOpenConns = 1
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect("file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)", opts)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	storage, err := photo.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		repo:     NewRepository(db),
		storage:  storage,
		metrics:  metrics.New("test"),
		notifier: &MockNotifier{},
	}
	f.notifier.On("ListingChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()

	manager := photo.NewManager(storage, photo.Limits{}, logger.NewNop(), f.metrics)
	f.service = NewService(f.repo, manager, f.notifier, logger.NewNop(), f.metrics)
	policy, err := DefaultVisibilityPolicy()
	require.NoError(t, err)
	f.finder = NewFinder(f.repo, policy, logger.NewNop())

	f.owner = domain.User{Email: "owner@example.com", PasswordHash: "x", Name: "Owner", Role: domain.RoleOwner}
	f.other = domain.User{Email: "other@example.com", PasswordHash: "x", Name: "Other", Role: domain.RoleOwner}
	f.renter = domain.User{Email: "renter@example.com", PasswordHash: "x", Name: "Renter", Role: domain.RoleRenter}
	require.NoError(t, db.Create(&f.owner).Error)
	require.NoError(t, db.Create(&f.other).Error)
	require.NoError(t, db.Create(&f.renter).Error)

	f.location = domain.Location{City: "Bengaluru", Latitude: float(12.9716), Longitude: float(77.5946)}
	require.NoError(t, db.Create(&f.location).Error)

	f.wifi = domain.Amenity{Name: "wifi"}
	f.parking = domain.Amenity{Name: "parking"}
	require.NoError(t, db.Create(&f.wifi).Error)
	require.NoError(t, db.Create(&f.parking).Error)

	return f
}

func (f *fixture) addLocation(t *testing.T, city string, lat, lon *float64) domain.Location {
	t.Helper()
	loc := domain.Location{City: city, Latitude: lat, Longitude: lon}
	require.NoError(t, f.db.Create(&loc).Error)
	return loc
}

// create publishes a listing through the service with four valid photos.
func (f *fixture) create(t *testing.T, mutate func(*CreateInput)) int64 {
	t.Helper()
	in := CreateInput{
		Fields: Fields{
			Name:       "Sunny flat",
			Type:       domain.PropertyFlat,
			Rent:       15000,
			Gender:     domain.GenderCoed,
			LocationID: f.location.ID,
		},
		Photos: photos(4),
	}
	if mutate != nil {
		mutate(&in)
	}
	id, err := f.service.Create(context.Background(), f.ownerCaller(), in)
	require.NoError(t, err)
	return id
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.storage.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func photos(n int) []photo.File {
	out := make([]photo.File, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, jpegFile("room.jpg", 64))
	}
	return out
}

func jpegFile(name string, size int) photo.File {
	return photo.File{
		OriginalName: name,
		MediaType:    "image/jpeg",
		Size:         int64(size),
		Content:      bytes.NewReader(bytes.Repeat([]byte{0xd8}, size)),
	}
}

func float(v float64) *float64 { return &v }

func str(s string) *string { return &s }
