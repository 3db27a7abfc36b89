package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

const SQLiteFilename = "silauto.db"

type SQLiteService struct {
	db   *gorm.DB
	path string
	log  *logger.Logger
}

// NewSQLiteService opens (creating if needed) the catalog file inside dir.
func NewSQLiteService(dir string, logg *logger.Logger) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")
	if dir == "" {
		return nil, fmt.Errorf("sqlite catalog requires DATABASE_PATH")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	path := filepath.Join(dir, SQLiteFilename)
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite catalog %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Single connection: every statement is serialized, so API reads wait behind an
	// open scan transaction rather than seeing a half-replaced kind.
	sqlDB.SetMaxOpenConns(1)

	serviceLog.Info("catalog opened", "driver", DriverSQLite, "path", path)
	return &SQLiteService{db: db, path: path, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

func (s *SQLiteService) Path() string { return s.path }
