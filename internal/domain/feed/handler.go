package feed

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/response"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewHandler accepts websocket connections from allowedOrigins. An empty list
// accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string, log logger.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		log: log,
	}
}

// Subscribe godoc
// @Summary Live feed of listing changes
// @Description Websocket. Optional owner_id narrows the feed to one owner.
// @Tags Feed
// @Param owner_id query int false "Owner ID"
// @Router /listings/feed [get]
func (h *Handler) Subscribe(c *gin.Context) {
	var ownerID int64
	if v := c.Query("owner_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid owner_id")
			return
		}
		ownerID = id
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("feed upgrade failed", "error", err)
		return
	}

	h.hub.serve(conn, ownerID)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/listings/feed", h.Subscribe)
}
