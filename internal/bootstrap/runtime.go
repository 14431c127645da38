// Package bootstrap wires the database and Redis for the server and CLIs.
package bootstrap

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"socialnet/internal/cache"
	"socialnet/internal/config"
	"socialnet/internal/database"
	"socialnet/internal/middleware"
	"socialnet/internal/models"
	"socialnet/internal/seed"
	"socialnet/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData populates an empty database with generated data.
	SeedDemoData bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client means Redis is down; callers degrade.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemoData {
		if err := seedIfEmpty(context.Background(), db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// seedIfEmpty seeds only when no users other than the root admin exist, so
// restarts never duplicate data.
func seedIfEmpty(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id <> ?", rootUserID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		middleware.Logger.Info("demo seed skipped, database already has users", "users", count)
		return nil
	}
	opts := seed.DefaultOptions()
	opts.SkipBcrypt = true
	sum, err := seed.NewSeeder(db, opts).Run(ctx)
	if err != nil {
		return err
	}
	middleware.Logger.Info("demo data seeded", "summary", sum.String())
	return nil
}

const rootUserID = 1

// rootAccount is the resolved DEV_ROOT_* configuration.
type rootAccount struct {
	username string
	email    string
	hash     string
	force    bool
}

func devRootAccount(cfg *config.Config) (*rootAccount, error) {
	if cfg == nil || !cfg.DevBootstrapRoot || !strings.EqualFold(cfg.Env, "development") {
		return nil, nil
	}
	if cfg.DevRootPassword == "" {
		return nil, errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash root password: %w", err)
	}

	acct := &rootAccount{
		username: cmp.Or(strings.TrimSpace(cfg.DevRootUsername), "socialnet_root"),
		email:    cmp.Or(validation.NormalizeEmail(cfg.DevRootEmail), "root@socialnet.local"),
		hash:     string(hash),
		force:    cfg.DevRootForceCredentials,
	}
	return acct, nil
}

// ensureDevRootAdmin makes user 1 an admin in development. A missing user 1
// is created from DEV_ROOT_*; an existing one keeps its credentials unless
// DEV_ROOT_FORCE_CREDENTIALS is set.
func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	acct, err := devRootAccount(cfg)
	if err != nil || acct == nil || db == nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Select("id").First(&existing, rootUserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			root := models.User{ID: rootUserID, Username: acct.username, Email: acct.email, Password: acct.hash, IsAdmin: true}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
			return resyncUserSequence(tx)
		}
		if err != nil {
			return err
		}

		updates := map[string]any{"is_admin": true}
		if acct.force {
			updates["username"] = acct.username
			updates["email"] = acct.email
			updates["password"] = acct.hash
		}
		return tx.Model(&models.User{}).Where("id = ?", rootUserID).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	cache.InvalidateUser(context.Background(), rootUserID)
	middleware.Logger.Info("development root admin ready", "user_id", rootUserID, "email", acct.email)
	return nil
}

// resyncUserSequence moves the postgres id sequence past an explicitly
// inserted id. Other dialects need nothing.
func resyncUserSequence(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	err := tx.Exec(`SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1), true)`).Error
	if err != nil {
		return fmt.Errorf("reset users sequence: %w", err)
	}
	return nil
}
