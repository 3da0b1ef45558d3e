package listing

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"rentals/internal/domain"
	"rentals/internal/domain/photo"
	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/response"
	"rentals/internal/pkg/validator"
)

// multipart overhead allowed on top of the photo payload
const formOverhead = 1 << 20

type Handler struct {
	service *Service
	finder  *Finder
	maxBody int64
	log     logger.Logger
}

func NewHandler(service *Service, finder *Finder, limits photo.Limits, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		finder:  finder,
		maxBody: limits.MaxBytes*int64(limits.MaxFiles) + formOverhead,
		log:     log,
	}
}

/* ---------- WRITE PATH ---------- */

// CreateProperty godoc
// @Summary Publish a property
// @Tags Properties
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param data formData string false "PropertyRequest as JSON"
// @Param photos formData file true "4 to 10 JPEG/PNG photos"
// @Success 201 {object} map[string]interface{}
// @Failure 400,403,413,415,422,503 {object} map[string]interface{}
// @Router /properties [post]
func (h *Handler) CreateProperty(c *gin.Context) {
	req, files, cleanup, err := h.bindProperty(c)
	defer cleanup()
	if err != nil {
		h.writeError(c, err)
		return
	}

	var amenityIDs []int64
	if req.Amenities != nil {
		amenityIDs = *req.Amenities
	}

	id, err := h.service.Create(c.Request.Context(), callerFrom(c), CreateInput{
		Fields:     req.fields(),
		Photos:     files,
		Contact:    req.contact(),
		AmenityIDs: amenityIDs,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message":     "Property created successfully",
		"property_id": id,
	})
}

// UpdateProperty godoc
// @Summary Update a property
// @Description Photos are replaced only when new files are sent. An empty amenities list removes all links.
// @Tags Properties
// @Accept multipart/form-data,json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Property ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400,403,404,413,415,422,503 {object} map[string]interface{}
// @Router /properties/{id} [put]
func (h *Handler) UpdateProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	req, files, cleanup, err := h.bindProperty(c)
	defer cleanup()
	if err != nil {
		h.writeError(c, err)
		return
	}

	err = h.service.Update(c.Request.Context(), callerFrom(c), id, UpdateInput{
		Fields:     req.fields(),
		Photos:     files,
		Contact:    req.contact(),
		AmenityIDs: req.Amenities,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Property updated successfully")
}

// DeleteProperty godoc
// @Summary Delete a property with its photos, contact and amenity links
// @Tags Properties
// @Security BearerAuth
// @Param id path int true "Property ID"
// @Router /properties/{id} [delete]
func (h *Handler) DeleteProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), callerFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Property deleted successfully")
}

// ReplacePhotos godoc
// @Summary Replace the whole photo set of a property
// @Tags Photos
// @Accept multipart/form-data
// @Security BearerAuth
// @Param propertyId path int true "Property ID"
// @Param photos formData file true "4 to 10 JPEG/PNG photos"
// @Router /photos/{propertyId} [post]
func (h *Handler) ReplacePhotos(c *gin.Context) {
	id, ok := paramID(c, "propertyId")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	form, err := c.MultipartForm()
	if err != nil {
		h.writeError(c, formError(err))
		return
	}
	files, cleanup, err := openPhotos(form)
	defer cleanup()
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.service.ReplacePhotos(c.Request.Context(), callerFrom(c), id, files); err != nil {
		h.writeError(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Photos uploaded successfully")
}

// DeletePhoto godoc
// @Summary Delete one photo
// @Tags Photos
// @Security BearerAuth
// @Param id path int true "Photo ID"
// @Router /photos/{id} [delete]
func (h *Handler) DeletePhoto(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePhoto(c.Request.Context(), callerFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Photo deleted successfully")
}

/* ---------- READ PATH ---------- */

// GetProperty godoc
// @Summary Get one property
// @Description Contact details are only shown to signed-in callers.
// @Tags Properties
// @Param id path int true "Property ID"
// @Router /properties/{id} [get]
func (h *Handler) GetProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	l, err := h.finder.Get(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, l)
}

// ListProperties godoc
// @Summary List properties
// @Tags Properties
// @Param page query int false "Page, default 1"
// @Param limit query int false "Page size, default 10, max 100"
// @Router /properties [get]
func (h *Handler) ListProperties(c *gin.Context) {
	var p PageParams
	if !bindQuery(c, &p) {
		return
	}
	page, err := h.finder.List(c.Request.Context(), callerFrom(c), p.pagination())
	h.writePage(c, page, err)
}

func (h *Handler) ListMine(c *gin.Context) {
	var p PageParams
	if !bindQuery(c, &p) {
		return
	}
	page, err := h.finder.ListMine(c.Request.Context(), callerFrom(c), p.pagination())
	h.writePage(c, page, err)
}

// SearchProperties godoc
// @Summary Search by city and/or radius
// @Tags Properties
// @Param city query string false "Case-insensitive city substring"
// @Param latitude query number false "Latitude"
// @Param longitude query number false "Longitude"
// @Param radius query number false "Radius in km, default 10"
// @Router /properties/search [get]
func (h *Handler) SearchProperties(c *gin.Context) {
	var p SearchParams
	if !bindQuery(c, &p) {
		return
	}
	page, err := h.finder.Search(c.Request.Context(), callerFrom(c), SearchQuery{
		City:       p.City,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		RadiusKm:   p.Radius,
		Pagination: p.pagination(),
	})
	h.writePage(c, page, err)
}

// FilterProperties godoc
// @Summary Faceted filter
// @Description amenities matches properties carrying any of the given ids.
// @Tags Properties
// @Param type query string false "pg, villa, flat, hostel"
// @Param gender query string false "male, female, coed"
// @Param minRent query number false "Inclusive lower bound"
// @Param maxRent query number false "Inclusive upper bound"
// @Param amenities query string false "Comma separated amenity ids"
// @Router /properties/filter [get]
func (h *Handler) FilterProperties(c *gin.Context) {
	var p FilterParams
	if !bindQuery(c, &p) {
		return
	}
	q, err := p.query()
	if err != nil {
		h.writeError(c, err)
		return
	}
	page, err := h.finder.Filter(c.Request.Context(), callerFrom(c), q)
	h.writePage(c, page, err)
}

/* ---------- HELPERS ---------- */

func (h *Handler) writePage(c *gin.Context, page *Page, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoResults):
		response.Message(c, http.StatusNotFound, "No properties found")
	case errors.Is(err, ErrValidation), errors.Is(err, photo.ErrEmptyFile):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Property not found")
	case errors.Is(err, ErrPhotoNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Photo not found")
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrOwnerRequired):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, ErrInsufficientPhotos):
		response.Error(c, http.StatusBadRequest, "INSUFFICIENT_PHOTOS", "Minimum 4 photos required")
	case errors.Is(err, photo.ErrUnsupportedMediaType):
		response.Error(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", err.Error())
	case errors.Is(err, photo.ErrPayloadTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
	case errors.Is(err, ErrDuplicateEntry):
		response.Error(c, http.StatusConflict, "DUPLICATE_ENTRY", "Resource already exists")
	case errors.Is(err, ErrInvalidReference):
		response.Error(c, http.StatusUnprocessableEntity, "INVALID_REFERENCE", "Referenced location or amenity does not exist")
	case errors.Is(err, ErrStoreUnavailable):
		c.Header("Retry-After", "5")
		response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable, retry later")
	default:
		h.log.Errorw("unhandled listing error", "path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// bindProperty reads a PropertyRequest from JSON or multipart input. The
// returned cleanup closes every opened photo and is always safe to call.
func (h *Handler) bindProperty(c *gin.Context) (*PropertyRequest, []photo.File, func(), error) {
	noop := func() {}
	var req PropertyRequest

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, nil, noop, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return &req, nil, noop, validate(&req)
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, noop, formError(err)
	}

	if data := first(form.Value["data"]); data != "" {
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return nil, nil, noop, fmt.Errorf("%w: data is not valid JSON", ErrValidation)
		}
	} else if err := bindFormFields(form, &req); err != nil {
		return nil, nil, noop, err
	}

	if err := validate(&req); err != nil {
		return nil, nil, noop, err
	}

	files, cleanup, err := openPhotos(form)
	return &req, files, cleanup, err
}

func bindFormFields(form *multipart.Form, req *PropertyRequest) error {
	req.Name = first(form.Value["name"])
	req.Type = first(form.Value["type"])
	req.Gender = first(form.Value["gender"])
	req.Description = first(form.Value["description"])

	if v := first(form.Value["rent"]); v != "" {
		rent, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: rent must be a number", ErrValidation)
		}
		req.Rent = rent
	}
	if v := first(form.Value["location_id"]); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: location_id must be an integer", ErrValidation)
		}
		req.LocationID = id
	}
	if v := first(form.Value["contact"]); v != "" {
		var contact ContactRequest
		if err := json.Unmarshal([]byte(v), &contact); err != nil {
			return fmt.Errorf("%w: contact is not valid JSON", ErrValidation)
		}
		req.Contact = &contact
	}

	values, present := form.Value["amenities"]
	if !present {
		values, present = form.Value["amenities[]"]
	}
	if present {
		ids := []int64{}
		if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
			if err := json.Unmarshal([]byte(values[0]), &ids); err != nil {
				return fmt.Errorf("%w: amenities must be a list of ids", ErrValidation)
			}
		} else {
			parsed, err := parseIDList(values)
			if err != nil {
				return err
			}
			if parsed != nil {
				ids = parsed
			}
		}
		req.Amenities = &ids
	}
	return nil
}

func openPhotos(form *multipart.Form) ([]photo.File, func(), error) {
	headers := form.File["photos"]
	if len(headers) == 0 {
		headers = form.File["photos[]"]
	}

	var closers []multipart.File
	cleanup := func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}

	files := make([]photo.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, cleanup, fmt.Errorf("%w: cannot read %s", ErrValidation, fh.Filename)
		}
		closers = append(closers, f)
		files = append(files, photo.File{
			OriginalName: fh.Filename,
			MediaType:    fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Content:      f,
		})
	}
	return files, cleanup, nil
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return photo.ErrPayloadTooLarge
	}
	return fmt.Errorf("%w: invalid multipart form", ErrValidation)
}

func validate(v interface{}) error {
	if errs := validator.Validate(v); errs != nil {
		parts := make([]string, 0, len(errs))
		for field, tag := range errs {
			parts = append(parts, field+" failed "+tag)
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, ", "))
	}
	return nil
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return false
	}
	if err := validate(dst); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+name)
		return 0, false
	}
	return id, true
}

func callerFrom(c *gin.Context) Caller {
	return Caller{
		UserID: c.GetInt64("user_id"),
		Role:   domain.UserRole(c.GetString("role")),
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
