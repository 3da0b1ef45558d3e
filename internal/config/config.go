package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret = "change-me-jwt-secret"

	StorageLocal = "local"
	StorageMinio = "minio"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" env-default:"dev"`
	HTTPPort string `env:"HTTP_PORT" env-default:"8080"`

	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Photos   PhotoLimits
	Logger   LoggerConfig

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	AmenityCacheTTL    time.Duration `env:"AMENITY_CACHE_TTL" env-default:"5m"`
	MetricsEnabled     bool          `env:"METRICS_ENABLED" env-default:"true"`
}

type DatabaseConfig struct {
	URL          string        `env:"DATABASE_URL" env-required:"true"`
	ConnTimeout  time.Duration `env:"DB_CONN_TIMEOUT" env-default:"5s"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" env-default:"change-me-jwt-secret"`
	JWTTTL    time.Duration `env:"JWT_TTL" env-default:"1h"`
}

type StorageConfig struct {
	Driver    string `env:"STORAGE_DRIVER" env-default:"local"`
	UploadDir string `env:"UPLOAD_PATH" env-default:"./uploads"`
	URLPrefix string `env:"UPLOAD_URL_PREFIX" env-default:"/uploads"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" env-default:"property-photos"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`
}

type PhotoLimits struct {
	MaxBytes int64 `env:"PHOTO_MAX_BYTES" env-default:"5242880"`
	MaxFiles int   `env:"PHOTO_MAX_FILES" env-default:"10"`
}

type LoggerConfig struct {
	Level      string `env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `env:"LOG_ENCODING" env-default:"json"`
	TimeFormat string `env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using process environment")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Database.ConnTimeout <= 0 {
		return fmt.Errorf("DB_CONN_TIMEOUT must be > 0")
	}
	if cfg.Auth.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.Photos.MaxBytes <= 0 {
		return fmt.Errorf("PHOTO_MAX_BYTES must be > 0")
	}
	if cfg.Photos.MaxFiles <= 0 {
		return fmt.Errorf("PHOTO_MAX_FILES must be > 0")
	}
	if cfg.AmenityCacheTTL <= 0 {
		return fmt.Errorf("AMENITY_CACHE_TTL must be > 0")
	}

	switch cfg.Storage.Driver {
	case StorageLocal:
		if strings.TrimSpace(cfg.Storage.UploadDir) == "" {
			return fmt.Errorf("UPLOAD_PATH must not be empty")
		}
	case StorageMinio:
		if cfg.Storage.MinioEndpoint == "" || cfg.Storage.MinioBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required when STORAGE_DRIVER=minio")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of: local, minio")
	}

	if IsProdLike(cfg.AppEnv) && isEmptyOrDefault(cfg.Auth.JWTSecret, defaultJWTSecret) {
		return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
	}
	return nil
}

func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
