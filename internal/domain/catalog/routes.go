package catalog

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/amenities", h.GetAmenities) // GET /api/v1/amenities
	r.GET("/locations", h.GetLocations) // GET /api/v1/locations?city=
}
