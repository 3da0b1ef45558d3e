package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"rentals/internal/domain"
)

type Options struct {
	ConnTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
	LogLevel     logger.LogLevel
}

func DefaultOptions() Options {
	return Options{
		ConnTimeout:  5 * time.Second,
		MaxOpenConns: 20,
		MaxIdleConns: 5,
		LogLevel:     logger.Warn,
	}
}

// Connect picks the driver from the DSN: postgres://, mysql:// or a SQLite path/URI.
func Connect(dsn string, opts Options) (*gorm.DB, error) {
	if opts.ConnTimeout <= 0 {
		opts.ConnTimeout = 5 * time.Second
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  opts.LogLevel,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		db, err = gorm.Open(postgres.Open(withQueryDefault(dsn, "connect_timeout", seconds(opts.ConnTimeout))), gormCfg)
	case strings.HasPrefix(dsn, "mysql://"):
		var mysqlDSN string
		mysqlDSN, err = mysqlDSNFromURL(dsn, opts.ConnTimeout)
		if err == nil {
			db, err = gorm.Open(mysql.Open(mysqlDSN), gormCfg)
		}
	default:
		db, err = gorm.Open(gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the listing schema. Parents first so foreign keys resolve.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&domain.Property{}, "Amenities", &domain.PropertyAmenity{}); err != nil {
		return fmt.Errorf("setup join table: %w", err)
	}
	return db.AutoMigrate(
		&domain.User{},
		&domain.Location{},
		&domain.Amenity{},
		&domain.Property{},
		&domain.Photo{},
		&domain.Contact{},
		&domain.PropertyAmenity{},
	)
}

func mysqlDSNFromURL(raw string, timeout time.Duration) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "Local")
	}
	if q.Get("timeout") == "" {
		q.Set("timeout", timeout.String())
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode()), nil
}

func withQueryDefault(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get(key) == "" {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func seconds(d time.Duration) string {
	s := int(d / time.Second)
	if s < 1 {
		s = 1
	}
	return fmt.Sprintf("%d", s)
}
