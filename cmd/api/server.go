package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"rentals/internal/config"
	"rentals/internal/domain/catalog"
	"rentals/internal/domain/feed"
	"rentals/internal/domain/listing"
	"rentals/internal/domain/photo"
	"rentals/internal/middleware"
	jwtsvc "rentals/internal/pkg/jwt"
	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/metrics"
)

// server is the wired HTTP application plus the background parts that need
// stopping on shutdown.
type server struct {
	router  *gin.Engine
	hub     *feed.Hub
	catalog *catalog.Service
}

func newServer(cfg *config.Config, db *gorm.DB, storage photo.Storage, appLog logger.Logger) (*server, error) {
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New("rentals")
	}

	j := jwtsvc.New(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)

	limits := photo.Limits{MaxBytes: cfg.Photos.MaxBytes, MaxFiles: cfg.Photos.MaxFiles}
	photoManager := photo.NewManager(storage, limits, appLog.With("component", "photos"), m)

	hub := feed.NewHub(appLog.With("component", "feed"))
	feedHandler := feed.NewHandler(hub, cfg.CORSAllowedOrigins, appLog)

	policy, err := listing.DefaultVisibilityPolicy()
	if err != nil {
		return nil, err
	}
	listingRepo := listing.NewRepository(db)
	listingService := listing.NewService(listingRepo, photoManager, hub, appLog.With("component", "listing"), m)
	listingFinder := listing.NewFinder(listingRepo, policy, appLog.With("component", "search"))
	listingHandler := listing.NewHandler(listingService, listingFinder, limits, appLog)

	catalogService := catalog.NewService(catalog.NewRepository(db), cfg.AmenityCacheTTL, appLog.With("component", "catalog"))
	catalogHandler := catalog.NewHandler(catalogService, appLog)

	r := gin.New()
	r.Use(middleware.RequestLogger(appLog))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	if m != nil {
		r.Use(middleware.Metrics(m))
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if local, ok := storage.(*photo.LocalStorage); ok {
		r.Static(cfg.Storage.URLPrefix, local.Dir())
	}

	v1 := r.Group("/api/v1")
	{
		public := v1.Group("")
		public.Use(middleware.OptionalAuth(j))

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(j))

		listingHandler.RegisterRoutes(public, protected, middleware.OwnerOnly())
		catalogHandler.RegisterRoutes(public)
		feedHandler.RegisterRoutes(public)
	}

	return &server{router: r, hub: hub, catalog: catalogService}, nil
}

// close stops the feed hub and the catalog cache. The HTTP listener is shut down by the caller.
func (s *server) close() {
	s.hub.Close()
	s.catalog.Stop()
}

func newStorage(cfg *config.Config) (photo.Storage, error) {
	if cfg.Storage.Driver == config.StorageMinio {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return photo.NewMinioStorage(ctx, photo.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
			PublicURL: cfg.Storage.MinioPublicURL,
		})
	}
	return photo.NewLocalStorage(cfg.Storage.UploadDir, cfg.Storage.URLPrefix)
}
