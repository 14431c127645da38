package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"socialnet/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog records an applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

func (MigrationLog) TableName() string { return "migration_logs" }

// Migrator applies SQL migrations and keeps migration_logs in step. Each
// migration runs in its own transaction together with its log row.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB, ms []Migration) *Migrator {
	return &Migrator{db: db, migrations: ms}
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	ms, err := Migrations()
	if err != nil {
		return err
	}
	_, err = NewMigrator(db, ms).Up(ctx)
	return err
}

func (m *Migrator) ensureLogTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("migration_logs: %w", err)
	}
	return nil
}

// Applied lists the recorded migrations, oldest first.
func (m *Migrator) Applied(ctx context.Context) ([]MigrationLog, error) {
	if err := m.ensureLogTable(ctx); err != nil {
		return nil, err
	}
	var logs []MigrationLog
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return logs, nil
}

// Pending lists the migrations not yet applied. It fails when the database
// has versions this binary does not know, which means it is older than the
// schema it is pointed at.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	logs, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(logs))
	for _, l := range logs {
		done[l.Version] = true
	}
	if err := m.checkUnknown(logs); err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

func (m *Migrator) checkUnknown(logs []MigrationLog) error {
	var unknown []string
	for _, l := range logs {
		if !slices.ContainsFunc(m.migrations, func(mig Migration) bool { return mig.Version == l.Version }) {
			unknown = append(unknown, Migration{Version: l.Version, Name: l.Name}.String())
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("migration_logs has versions this build does not know: %s", strings.Join(unknown, ", "))
}

// Up applies every pending migration in order and returns what it applied.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for i, mig := range pending {
		middleware.Logger.InfoContext(ctx, "applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationLog{Version: mig.Version, Name: mig.Name}).Error
		})
		if err != nil {
			return pending[:i], fmt.Errorf("migration %s: %w", mig, err)
		}
	}
	return pending, nil
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration %d is not registered", version)
	}
	mig := m.migrations[idx]

	logs, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(logs, func(l MigrationLog) bool { return l.Version == version }) {
		return fmt.Errorf("migration %s has not been applied", mig)
	}

	middleware.Logger.InfoContext(ctx, "reverting migration", slog.String("migration", mig.String()))
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.Down).Error; err != nil {
			return fmt.Errorf("migration %s down: %w", mig, err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
}

// RollbackMigration reverts one embedded migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	ms, err := Migrations()
	if err != nil {
		return err
	}
	return NewMigrator(db, ms).Down(ctx, version)
}
