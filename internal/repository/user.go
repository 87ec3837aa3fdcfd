package repository

import (
	"context"
	"errors"
	"strings"

	"alvacus/internal/cache"
	"alvacus/internal/models"
	"alvacus/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	SetPassword(ctx context.Context, id uint, hash string) (*models.User, error)
	List(ctx context.Context, q ListQuery) ([]models.User, int64, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
	Delete(ctx context.Context, id uint, opts DeleteUserOptions) error
}

// DeleteUserOptions selects which authored content is removed with the user.
type DeleteUserOptions struct {
	Calculators bool
	Comments    bool
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

// cachedUser carries the fields models.User hides from JSON so the cached
// copy can serve credential and token-version checks.
type cachedUser struct {
	models.User
	PasswordHash string  `json:"passwordHash"`
	GoogleSub    *string `json:"googleSub"`
	IP           string  `json:"ip"`
	Version      int     `json:"tokenVersion"`
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var cached cachedUser
	err := cache.Aside(ctx, cache.UserKey(id), &cached, cache.UserTTL, func() error {
		defer observability.TrackQuery("select", "users")()
		var user models.User
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		cached = cachedUser{
			User:         user,
			PasswordHash: user.Password,
			GoogleSub:    user.GoogleID,
			IP:           user.UserIP,
			Version:      user.TokenVersion,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user := cached.User
	user.Password = cached.PasswordHash
	user.GoogleID = cached.GoogleSub
	user.UserIP = cached.IP
	user.TokenVersion = cached.Version
	return &user, nil
}

func (r *userRepository) findOne(ctx context.Context, column, value string) (*models.User, error) {
	defer observability.TrackQuery("select", "users")()
	var user models.User
	if err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewReadError(err)
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the (lowercased) email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByUsername returns nil, nil when no user has the (lowercased) username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", strings.ToLower(strings.TrimSpace(username)))
}

func (r *userRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if googleID == "" {
		return nil, nil
	}
	return r.findOne(ctx, "google_id", googleID)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("insert", "users")()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return writeError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": user.ID})
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("update", "users")()
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return writeError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	r.log.LogUpdate(ctx, map[string]any{"user_id": user.ID})
	return nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	defer observability.TrackQuery("update", "users")()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return writeError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// SetPassword stores a new hash and bumps the token version, so every
// token issued before the change stops verifying.
func (r *userRepository) SetPassword(ctx context.Context, id uint, hash string) (*models.User, error) {
	defer observability.TrackQuery("update", "users")()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"password":      hash,
		"token_version": gorm.Expr("token_version + 1"),
	})
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	r.log.LogUpdate(ctx, map[string]any{"user_id": id, "field": "password"})
	return r.GetByID(ctx, id)
}

func (r *userRepository) List(ctx context.Context, q ListQuery) ([]models.User, int64, error) {
	defer observability.TrackQuery("select", "users")()
	q = q.Normalized()

	base := r.db.WithContext(ctx).Model(&models.User{})
	if q.Search != "" {
		base = whereContains(base, "username", q.Search)
	}

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, models.NewReadError(err)
	}

	order := "created_at DESC"
	switch q.Sort {
	case SortAZ:
		order = "username ASC"
	case SortZA:
		order = "username DESC"
	}

	var users []models.User
	if err := q.paginate(base.Session(&gorm.Session{})).Order(order).Find(&users).Error; err != nil {
		return nil, 0, models.NewReadError(err)
	}
	return users, count, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewReadError(err)
	}
	return users, nil
}

// Delete removes the user and everything that only makes sense with them:
// follows, notifications, saves and likes. Authored calculators, comments
// and replies are removed only when opts asks for it; otherwise they keep a
// dangling author reference.
func (r *userRepository) Delete(ctx context.Context, id uint, opts DeleteUserOptions) error {
	defer observability.TrackQuery("delete", "users")()

	var calculatorKeys []models.Calculator
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}

		if opts.Calculators {
			if err := tx.Select("id", "slug").Where("author_id = ?", id).Find(&calculatorKeys).Error; err != nil {
				return err
			}
			ids := make([]uint, 0, len(calculatorKeys))
			for _, c := range calculatorKeys {
				ids = append(ids, c.ID)
			}
			if err := deleteCalculatorsTx(tx, ids); err != nil {
				return err
			}
		}

		if opts.Comments {
			var commentIDs []uint
			if err := tx.Model(&models.Comment{}).Where("author_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
				return err
			}
			if err := deleteCommentsTx(tx, commentIDs); err != nil {
				return err
			}
			if err := tx.Where("author_id = ?", id).Delete(&models.Reply{}).Error; err != nil {
				return err
			}
		}

		if err := removeLikesByUserTx(tx, id); err != nil {
			return err
		}
		if err := removeSavesByUserTx(tx, id); err != nil {
			return err
		}

		cleanups := []struct {
			model any
			where string
		}{
			{&models.Notification{}, "user_id = ?"},
			{&models.Follow{}, "follower_id = ?"},
			{&models.Follow{}, "followee_id = ?"},
		}
		for _, c := range cleanups {
			if err := tx.Where(c.where, id).Delete(c.model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, id)
	for _, c := range calculatorKeys {
		cache.InvalidateCalculator(ctx, c.ID, c.Slug)
	}
	r.log.LogDelete(ctx, map[string]any{
		"user_id":             id,
		"cascade_calculators": opts.Calculators,
		"cascade_comments":    opts.Comments,
	})
	return nil
}
