package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/response"
)

type Handler struct {
	service *Service
	log     logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// GetAmenities godoc
// @Summary Amenity catalog
// @Tags Catalog
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /amenities [get]
func (h *Handler) GetAmenities(c *gin.Context) {
	list, err := h.service.Amenities(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNoAmenities) {
			response.Message(c, http.StatusNotFound, "No amenities found")
			return
		}
		h.log.Errorw("list amenities failed", "error", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	response.Success(c, http.StatusOK, list)
}

// GetLocations godoc
// @Summary Locations a property can reference
// @Tags Catalog
// @Param city query string false "Case-insensitive city substring"
// @Router /locations [get]
func (h *Handler) GetLocations(c *gin.Context) {
	list, err := h.service.Locations(c.Request.Context(), c.Query("city"))
	if err != nil {
		if errors.Is(err, ErrNoLocations) {
			response.Message(c, http.StatusNotFound, "No locations found")
			return
		}
		h.log.Errorw("list locations failed", "error", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	response.Success(c, http.StatusOK, list)
}
