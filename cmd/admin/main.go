// Command admin manages the admin role of Alvacus accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"alvacus/internal/cache"
	"alvacus/internal/config"
	"alvacus/internal/database"
	"alvacus/internal/models"
	"alvacus/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Role changes must evict the cached user the API serves from.
	cache.InitRedis(cfg.RedisURL)

	users := repository.NewUserRepository(db)
	if err := run(context.Background(), users, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  go run ./cmd/admin promote <user_id|username>   - Promote user to admin")
	fmt.Fprintln(w, "  go run ./cmd/admin demote <user_id|username>    - Demote admin to user")
	fmt.Fprintln(w, "  go run ./cmd/admin list-admins                   - List all admins")
}

func run(ctx context.Context, users repository.UserRepository, args []string, out io.Writer) error {
	switch args[0] {
	case "promote", "demote":
		if len(args) < 2 {
			return fmt.Errorf("usage: go run ./cmd/admin %s <user_id|username>", args[0])
		}
		role := models.RoleAdmin
		if args[0] == "demote" {
			role = models.RoleUser
		}
		return setRole(ctx, users, args[1], role, out)
	case "list-admins":
		return listAdmins(ctx, users, out)
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// findUser accepts a numeric ID or a username.
func findUser(ctx context.Context, users repository.UserRepository, ref string) (*models.User, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		user, err := users.GetByID(ctx, uint(id))
		if err != nil {
			// A plain not-found carries no wrapped driver error.
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound && appErr.Err == nil {
				return nil, fmt.Errorf("user %s not found", ref)
			}
			return nil, err
		}
		return user, nil
	}
	user, err := users.GetByUsername(ctx, ref)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", ref)
	}
	return user, nil
}

func setRole(ctx context.Context, users repository.UserRepository, ref, role string, out io.Writer) error {
	user, err := findUser(ctx, users, ref)
	if err != nil {
		return err
	}
	if user.Role == role {
		fmt.Fprintf(out, "User %s (ID: %d) already has role %s\n", user.Username, user.ID, role)
		return nil
	}
	if err := users.UpdateFields(ctx, user.ID, map[string]any{"role": role}); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	fmt.Fprintf(out, "Set role of %s (ID: %d) to %s\n", user.Username, user.ID, role)
	return nil
}

func listAdmins(ctx context.Context, users repository.UserRepository, out io.Writer) error {
	admins, err := users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("fetch admins: %w", err)
	}
	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins found")
		return nil
	}
	for _, admin := range admins {
		fmt.Fprintf(out, "ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	return nil
}
