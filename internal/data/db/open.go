package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver string
	// Dir holds the sqlite catalog file.
	Dir string
	DSN string
}

// Open connects to the configured catalog driver and migrates the schema.
func Open(opts Options, logg *logger.Logger) (*gorm.DB, error) {
	var gdb *gorm.DB
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverSQLite:
		svc, err := NewSQLiteService(opts.Dir, logg)
		if err != nil {
			return nil, err
		}
		gdb = svc.DB()
	case DriverPostgres:
		svc, err := NewPostgresService(opts.DSN, logg)
		if err != nil {
			return nil, err
		}
		gdb = svc.DB()
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", opts.Driver)
	}
	if err := AutoMigrateAll(gdb); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return gdb, nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newGormLogger() gormLogger.Interface {
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
