// Package database opens the show database and keeps its schema current.
package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite" // Pure Go SQLite driver (no CGO required)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/lacylights-live/internal/database/models"
)

const memoryPath = ":memory:"

// DB is the connection opened by Connect.
var DB *gorm.DB

// Config holds database configuration.
type Config struct {
	URL         string
	MaxIdleConn int
	MaxOpenConn int
	Debug       bool
}

// dataSource turns a DATABASE_URL ("file:./dev.db" or a bare path) into a
// file path and an sqlite DSN.
func dataSource(url string) (path, dsn string) {
	path = strings.TrimPrefix(url, "file:")
	if path == memoryPath {
		return path, path
	}
	// WAL keeps snapshot writes from blocking reads
	return path, path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func newLogger(debug bool) logger.Interface {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
}

// Connect opens the database, creating its directory when needed.
func Connect(cfg Config) (*gorm.DB, error) {
	path, dsn := dataSource(cfg.URL)

	if dir := filepath.Dir(path); path != memoryPath && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newLogger(cfg.Debug),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Printf("Database connected: %s", path)
	return db, nil
}

// Migrate creates or updates the show tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Open connects and migrates.
func Open(cfg Config) (*gorm.DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = Close()
		return nil, err
	}
	return db, nil
}

// Close closes the connection opened by Connect.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}
