package listing

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the read routes on public (optional auth) and the
// write routes on protected (auth required). ownerOnly guards publishing.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup, ownerOnly gin.HandlerFunc) {
	properties := public.Group("/properties")
	{
		properties.GET("", h.ListProperties)          // GET /api/v1/properties?page=&limit=
		properties.GET("/search", h.SearchProperties) // GET /api/v1/properties/search?city=&latitude=&longitude=&radius=
		properties.GET("/filter", h.FilterProperties) // GET /api/v1/properties/filter?type=&gender=&minRent=&maxRent=&amenities=
		properties.GET("/:id", h.GetProperty)         // GET /api/v1/properties/:id
	}

	owned := protected.Group("/properties")
	{
		owned.POST("", ownerOnly, h.CreateProperty)
		owned.GET("/mine", ownerOnly, h.ListMine)
		owned.PUT("/:id", h.UpdateProperty)
		owned.DELETE("/:id", h.DeleteProperty)
	}

	photos := protected.Group("/photos")
	{
		photos.POST("/:propertyId", h.ReplacePhotos)
		photos.DELETE("/:id", h.DeletePhoto)
	}
}
