package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentals/internal/config"
	"rentals/internal/database"
	"rentals/internal/domain"
	jwtsvc "rentals/internal/pkg/jwt"
	"rentals/internal/pkg/logger"
)

type E2ETestSuite struct {
	app        *server
	db         *gorm.DB
	jwtService *jwtsvc.Service

	owner    domain.User
	renter   domain.User
	location domain.Location
	wifi     domain.Amenity
}

type TestResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func setupTestSuite(t *testing.T) *E2ETestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := database.DefaultOptions()
	opts.LogLevel = gormlogger.Silent
	opts.MaxOpenConns = 1
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect("file:e2e_"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)", opts)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, database.Migrate(db), "Failed to migrate")
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := &config.Config{
		AppEnv:          "test",
		Auth:            config.AuthConfig{JWTSecret: "test_secret_key_32_characters_min", JWTTTL: time.Hour},
		Storage:         config.StorageConfig{Driver: config.StorageLocal, UploadDir: t.TempDir(), URLPrefix: "/uploads"},
		Photos:          config.PhotoLimits{MaxBytes: 1 << 20, MaxFiles: 10},
		AmenityCacheTTL: time.Minute,
		MetricsEnabled:  true,
	}
	storage, err := newStorage(cfg)
	require.NoError(t, err)

	app, err := newServer(cfg, db, storage, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.close)

	s := &E2ETestSuite{
		app:        app,
		db:         db,
		jwtService: jwtsvc.New(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL),
		owner:      domain.User{Email: "owner@test.com", PasswordHash: "$2a$10$dummy", Name: "Owner", Role: domain.RoleOwner},
		renter:     domain.User{Email: "renter@test.com", PasswordHash: "$2a$10$dummy", Name: "Renter", Role: domain.RoleRenter},
		location:   domain.Location{City: "Bengaluru", Latitude: coord(12.9716), Longitude: coord(77.5946)},
		wifi:       domain.Amenity{Name: "wifi"},
	}
	require.NoError(t, db.Create(&s.owner).Error)
	require.NoError(t, db.Create(&s.renter).Error)
	require.NoError(t, db.Create(&s.location).Error)
	require.NoError(t, db.Create(&s.wifi).Error)
	return s
}

func coord(v float64) *float64 { return &v }

func (s *E2ETestSuite) token(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := s.jwtService.GenerateToken(u.ID, string(u.Role))
	require.NoError(t, err)
	return tok
}

func (s *E2ETestSuite) makeRequest(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.app.router.ServeHTTP(w, req)
	return w
}

func (s *E2ETestSuite) uploadListing(t *testing.T, data map[string]interface{}, photos int, token string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("data", string(raw)))

	for i := 0; i < photos; i++ {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos"; filename="room%d.png"`, i))
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{0x89}, 256))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	s.app.router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) *TestResponse {
	t.Helper()
	var resp TestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response. Status: %d, Body: %s", w.Code, w.Body.String())
	}
	if resp.Error != nil {
		t.Logf("Error: [%s] %s", resp.Error.Code, resp.Error.Message)
	}
	return &resp
}

type listingView struct {
	ID     int64 `json:"id"`
	Photos []struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"photos"`
	Contact *struct {
		Phone *string `json:"phone"`
	} `json:"contact"`
	Amenities []domain.Amenity `json:"amenities"`
}

// =============================================================================
// Flow 1: Owner publishes, visitors browse
// =============================================================================

func TestFlow1_PublishAndBrowse(t *testing.T) {
	suite := setupTestSuite(t)
	ownerToken := suite.token(t, suite.owner)
	renterToken := suite.token(t, suite.renter)

	feedSrv := httptest.NewServer(suite.app.router)
	defer feedSrv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(feedSrv.URL, "http")+"/api/v1/listings/feed", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return suite.app.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	var propertyID int64

	t.Run("GET /amenities", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/api/v1/amenities", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "wifi")
	})

	t.Run("POST /properties", func(t *testing.T) {
		w := suite.uploadListing(t, map[string]interface{}{
			"name":        "Koramangala PG",
			"type":        "pg",
			"rent":        9000,
			"gender":      "female",
			"location_id": suite.location.ID,
			"contact":     map[string]interface{}{"phone": "9999999999"},
			"amenities":   []int64{suite.wifi.ID},
		}, 4, ownerToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created struct {
			PropertyID int64 `json:"property_id"`
		}
		require.NoError(t, json.Unmarshal(parseResponse(t, w).Data, &created))
		propertyID = created.PropertyID
		require.Positive(t, propertyID)

		log.Printf("✅ POST /properties - SUCCESS (id=%d)", propertyID)
	})

	t.Run("feed announces the listing", func(t *testing.T) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var event struct {
			Type       string `json:"type"`
			PropertyID int64  `json:"property_id"`
		}
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, "listing_created", event.Type)
		assert.Equal(t, propertyID, event.PropertyID)
	})

	t.Run("GET /properties/:id as renter and anonymous", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/properties/%d", propertyID)

		var signedIn listingView
		w := suite.makeRequest(http.MethodGet, path, nil, renterToken)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(parseResponse(t, w).Data, &signedIn))
		require.NotNil(t, signedIn.Contact)
		assert.Equal(t, "9999999999", *signedIn.Contact.Phone)
		assert.Len(t, signedIn.Photos, 4)
		assert.Len(t, signedIn.Amenities, 1)

		var anon listingView
		w = suite.makeRequest(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(parseResponse(t, w).Data, &anon))
		assert.Nil(t, anon.Contact)

		w = suite.makeRequest(http.MethodGet, signedIn.Photos[0].URL, nil, "")
		assert.Equal(t, http.StatusOK, w.Code, "photo file is served")
	})

	t.Run("GET /properties/search and /filter", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/api/v1/properties/search?latitude=12.98&longitude=77.60", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)

		w = suite.makeRequest(http.MethodGet, "/api/v1/properties/search?latitude=19.07&longitude=72.87", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "No properties found", parseResponse(t, w).Message)

		w = suite.makeRequest(http.MethodGet, fmt.Sprintf("/api/v1/properties/filter?gender=female&amenities=%d", suite.wifi.ID), nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("renter cannot publish", func(t *testing.T) {
		w := suite.uploadListing(t, map[string]interface{}{
			"name": "x", "type": "flat", "gender": "coed", "location_id": suite.location.ID,
		}, 4, renterToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("GET /metrics", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/metrics", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `rentals_listing_writes_total{operation="create",outcome="ok"} 1`)
	})
}

// =============================================================================
// Flow 2: Owner maintains and removes a listing
// =============================================================================

func TestFlow2_UpdateAndDelete(t *testing.T) {
	suite := setupTestSuite(t)
	ownerToken := suite.token(t, suite.owner)

	w := suite.uploadListing(t, map[string]interface{}{
		"name": "Indiranagar flat", "type": "flat", "rent": 25000, "gender": "coed", "location_id": suite.location.ID,
	}, 4, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		PropertyID int64 `json:"property_id"`
	}
	require.NoError(t, json.Unmarshal(parseResponse(t, w).Data, &created))
	path := fmt.Sprintf("/api/v1/properties/%d", created.PropertyID)

	var before listingView
	w = suite.makeRequest(http.MethodGet, path, nil, "")
	require.NoError(t, json.Unmarshal(parseResponse(t, w).Data, &before))

	t.Run("PUT /properties/:id", func(t *testing.T) {
		w := suite.makeRequest(http.MethodPut, path, map[string]interface{}{
			"name": "Indiranagar flat (renovated)", "type": "flat", "rent": 27000, "gender": "coed",
			"location_id": suite.location.ID, "amenities": []int64{suite.wifi.ID},
		}, ownerToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "Property updated successfully", parseResponse(t, w).Message)

		var after listingView
		w = suite.makeRequest(http.MethodGet, path, nil, "")
		require.NoError(t, json.Unmarshal(parseResponse(t, w).Data, &after))
		assert.Equal(t, before.Photos, after.Photos)
		assert.Len(t, after.Amenities, 1)
	})

	t.Run("PUT /properties/:id by renter", func(t *testing.T) {
		w := suite.makeRequest(http.MethodPut, path, map[string]interface{}{
			"name": "stolen", "type": "flat", "gender": "coed", "location_id": suite.location.ID,
		}, suite.token(t, suite.renter))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("DELETE /properties/:id", func(t *testing.T) {
		w := suite.makeRequest(http.MethodDelete, path, nil, ownerToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Property deleted successfully", parseResponse(t, w).Message)

		w = suite.makeRequest(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = suite.makeRequest(http.MethodGet, before.Photos[0].URL, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code, "photo file removed with the listing")

		var photos int64
		require.NoError(t, suite.db.Model(&domain.Photo{}).Count(&photos).Error)
		assert.Zero(t, photos)
	})
}

func TestHealth(t *testing.T) {
	suite := setupTestSuite(t)
	w := suite.makeRequest(http.MethodGet, "/health", nil, "")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
