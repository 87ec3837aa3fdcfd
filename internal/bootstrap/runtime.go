// Package bootstrap wires the runtime dependencies shared by the server and
// the command line tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"alvacus/internal/cache"
	"alvacus/internal/config"
	"alvacus/internal/database"
	"alvacus/internal/middleware"
	"alvacus/internal/models"
	"alvacus/internal/seed"
	"alvacus/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedFixtures bool
}

// InitRuntime connects to DB and Redis, ensures the development admin and
// optionally upserts the built-in calculators.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; an unreachable server leaves the client nil.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureBootstrapAdmin(context.Background(), cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SeedFixtures {
		fixtures, err := seed.BuiltInCalculators()
		if err != nil {
			return nil, nil, err
		}
		if _, err := seed.Calculators(db, fixtures); err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in calculators: %w", err)
		}
	}

	return db, r, nil
}

// EnsureBootstrapAdmin creates or promotes the configured admin account in
// development. It is a no-op elsewhere or when no password is configured.
// An existing account keeps its password.
func EnsureBootstrapAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if cfg.Env != "development" || cfg.BootstrapAdminPassword == "" {
		return nil
	}

	username := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminUsername))
	if username == "" {
		username = "admin"
	}
	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	if email == "" {
		email = username + "@alvacus.local"
	}

	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		findErr := tx.Where("username = ?", username).First(&user).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hash, err := service.HashPassword(cfg.BootstrapAdminPassword)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			created = true
			return tx.Create(&models.User{
				Username:    username,
				Slug:        username,
				Email:       email,
				Password:    hash,
				Role:        models.RoleAdmin,
				IsActivated: true,
			}).Error
		case findErr != nil:
			return findErr
		case user.Role == models.RoleAdmin:
			return nil
		default:
			return tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("role", models.RoleAdmin).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development admin ensured",
		slog.String("username", username),
		slog.Bool("created", created))
	return nil
}
