// Package database opens the PostgreSQL connections and owns the schema:
// embedded SQL migrations plus optional GORM AutoMigrate.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"socialnet/internal/config"
	"socialnet/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type ConnectOptions struct {
	// SkipSchema leaves the schema untouched; tooling uses it.
	SkipSchema bool
}

var readDB *gorm.DB

// Connect opens the primary and applies the configured schema mode.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{})
}

// ConnectWithOptions opens the primary and, when DB_READ_HOST is set, a
// read replica. A replica that cannot be opened is logged and reads stay on
// the primary.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	primary, err := open(cfg, buildDSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode))
	if err != nil {
		return nil, fmt.Errorf("connect primary: %w", err)
	}
	middleware.Logger.Info("database connected", slog.String("host", cfg.DBHost), slog.String("db", cfg.DBName))

	if !opts.SkipSchema {
		if err := ApplySchema(context.Background(), primary, cfg); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		middleware.Logger.Info("database schema ready", slog.String("mode", normalizedSchemaMode(cfg)))
	}

	readDB = nil
	if cfg.DBReadHost != "" {
		dsn := buildDSN(cfg.DBReadHost, cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword, cfg.DBName, cfg.DBSSLMode)
		if replica, err := open(cfg, dsn); err != nil {
			middleware.Logger.Warn("read replica unavailable", slog.String("host", cfg.DBReadHost), slog.String("error", err.Error()))
		} else {
			readDB = replica
		}
	}
	return primary, nil
}

func open(cfg *config.Config, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormSlog(middleware.Logger)})
	if err != nil {
		return nil, err
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// GetReadDB returns the read replica, or nil when none is configured.
func GetReadDB() *gorm.DB {
	return readDB
}

func buildDSN(host, port, user, password, name, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslMode)
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql.DB: %w", err)
	}
	orDefault := func(v, def int) int {
		if v <= 0 {
			return def
		}
		return v
	}
	sqlDB.SetMaxOpenConns(orDefault(cfg.DBMaxOpenConns, 25))
	sqlDB.SetMaxIdleConns(orDefault(cfg.DBMaxIdleConns, 5))
	sqlDB.SetConnMaxLifetime(time.Duration(orDefault(cfg.DBConnMaxLifetimeMinutes, 5)) * time.Minute)
	return nil
}
