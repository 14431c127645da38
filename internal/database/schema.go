package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"socialnet/internal/config"
	"socialnet/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes. Hybrid runs the SQL migrations everywhere and lets
// AutoMigrate fill gaps outside production-like environments.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

type schemaPlan struct {
	mode        string
	sql         bool
	autoMigrate bool
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func normalizedSchemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: normalizedSchemaMode(cfg)}
	prodLike := isProdLikeEnv(cfg.Env)

	switch plan.mode {
	case SchemaModeSQL:
		plan.sql = true
	case SchemaModeHybrid:
		plan.sql = true
		plan.autoMigrate = !prodLike
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto in %q needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.autoMigrate = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

// ApplySchema brings db up to date according to cfg's schema mode.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if plan.autoMigrate {
		if isProdLikeEnv(cfg.Env) {
			middleware.Logger.WarnContext(ctx, "AutoMigrate enabled in a production-like environment")
		}
		middleware.Logger.InfoContext(ctx, "running AutoMigrate", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// SchemaStatus describes what ApplySchema would do against a database.
type SchemaStatus struct {
	Mode        string
	Environment string
	SQL         bool
	AutoMigrate bool
	Applied     []MigrationLog
	Pending     []Migration
}

func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{
		Mode:        plan.mode,
		Environment: cfg.Env,
		SQL:         plan.sql,
		AutoMigrate: plan.autoMigrate,
	}
	if !plan.sql {
		return status, nil
	}

	ms, err := Migrations()
	if err != nil {
		return nil, err
	}
	m := NewMigrator(db, ms)
	if status.Applied, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
