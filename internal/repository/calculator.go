package repository

import (
	"context"

	"alvacus/internal/cache"
	"alvacus/internal/models"
	"alvacus/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CalculatorRepository defines persistence operations for calculators and
// their save lists.
type CalculatorRepository interface {
	Create(ctx context.Context, calc *models.Calculator) error
	GetByID(ctx context.Context, id uint) (*models.Calculator, error)
	GetBySlug(ctx context.Context, slug string) (*models.Calculator, error)
	SlugTaken(ctx context.Context, slug string, excludeID uint) (bool, error)
	Update(ctx context.Context, calc *models.Calculator, previousSlug string) error
	SetVerified(ctx context.Context, id uint, verified bool) error
	Delete(ctx context.Context, id uint) error
	ListAll(ctx context.Context, filter CalculatorFilter) ([]models.Calculator, error)
	List(ctx context.Context, filter CalculatorFilter, q ListQuery) ([]models.Calculator, int64, error)
	Save(ctx context.Context, calculatorID, userID uint, notif *models.Notification) error
	Unsave(ctx context.Context, calculatorID, userID uint) (bool, error)
}

// CalculatorFilter narrows a calculator listing. Nil fields do not filter.
type CalculatorFilter struct {
	Verified *bool
	Type     string
	AuthorID *uint
	SavedBy  *uint
}

type calculatorRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

func NewCalculatorRepository(db *gorm.DB) CalculatorRepository {
	return &calculatorRepository{db: db, log: observability.NewRepoLogger("calculators")}
}

// cachedCalculator keeps the author reference that models.Calculator hides
// from JSON.
type cachedCalculator struct {
	models.Calculator
	AuthorRef *uint `json:"authorRef"`
	Saves     int   `json:"saves"`
}

func (c *cachedCalculator) unwrap() *models.Calculator {
	calc := c.Calculator
	calc.AuthorID = c.AuthorRef
	calc.SavesCount = c.Saves
	return &calc
}

func (r *calculatorRepository) detailed(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Author", preloadAuthor).
		Preload("SavedUsers", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
}

func (r *calculatorRepository) Create(ctx context.Context, calc *models.Calculator) error {
	defer observability.TrackQuery("insert", "calculators")()
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(calc).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return writeError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"calculator_id": calc.ID, "slug": calc.Slug})
	return nil
}

func (r *calculatorRepository) getCached(ctx context.Context, key string, query func(*gorm.DB) *gorm.DB, id any) (*models.Calculator, error) {
	var cached cachedCalculator
	err := cache.Aside(ctx, key, &cached, cache.CalculatorTTL, func() error {
		defer observability.TrackQuery("select", "calculators")()
		var calc models.Calculator
		if err := query(r.detailed(ctx)).First(&calc).Error; err != nil {
			return notFoundOr(err, "Calculator", id)
		}
		cached = cachedCalculator{Calculator: calc, AuthorRef: calc.AuthorID, Saves: calc.SavesCount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cached.unwrap(), nil
}

func (r *calculatorRepository) GetByID(ctx context.Context, id uint) (*models.Calculator, error) {
	return r.getCached(ctx, cache.CalculatorKey(id), func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, id)
}

func (r *calculatorRepository) GetBySlug(ctx context.Context, slug string) (*models.Calculator, error) {
	return r.getCached(ctx, cache.SlugKey(slug), func(db *gorm.DB) *gorm.DB {
		return db.Where("slug = ?", slug)
	}, slug)
}

func (r *calculatorRepository) SlugTaken(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Calculator{}).Where("slug = ?", slug)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewReadError(err)
	}
	return count > 0, nil
}

// Update writes every column of calc. previousSlug is the slug before the
// edit so its cache entry can be dropped.
func (r *calculatorRepository) Update(ctx context.Context, calc *models.Calculator, previousSlug string) error {
	defer observability.TrackQuery("update", "calculators")()
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(calc).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return writeError(err)
	}
	cache.InvalidateCalculator(ctx, calc.ID, calc.Slug)
	if previousSlug != "" && previousSlug != calc.Slug {
		cache.Invalidate(ctx, cache.SlugKey(previousSlug))
	}
	r.log.LogUpdate(ctx, map[string]any{"calculator_id": calc.ID})
	return nil
}

func (r *calculatorRepository) slugOf(ctx context.Context, id uint) string {
	var slugs []string
	r.db.WithContext(ctx).Model(&models.Calculator{}).Where("id = ?", id).Limit(1).Pluck("slug", &slugs)
	if len(slugs) == 0 {
		return ""
	}
	return slugs[0]
}

func (r *calculatorRepository) SetVerified(ctx context.Context, id uint, verified bool) error {
	res := r.db.WithContext(ctx).Model(&models.Calculator{}).Where("id = ?", id).Update("is_verified", verified)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Calculator", id)
	}
	cache.InvalidateCalculator(ctx, id, r.slugOf(ctx, id))
	r.log.LogUpdate(ctx, map[string]any{"calculator_id": id, "is_verified": verified})
	return nil
}

// Delete removes the calculator with its saves, comments, likes and replies.
func (r *calculatorRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "calculators")()
	slug := r.slugOf(ctx, id)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteCalculatorsTx(tx, []uint{id})
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	cache.InvalidateCalculator(ctx, id, slug)
	r.log.LogDelete(ctx, map[string]any{"calculator_id": id})
	return nil
}

func (r *calculatorRepository) filtered(ctx context.Context, f CalculatorFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Calculator{})
	if f.Verified != nil {
		db = db.Where("is_verified = ?", *f.Verified)
	}
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.AuthorID != nil {
		db = db.Where("author_id = ?", *f.AuthorID)
	}
	if f.SavedBy != nil {
		saved := r.db.Model(&models.CalculatorSave{}).Select("calculator_id").Where("user_id = ?", *f.SavedBy)
		db = db.Where("id IN (?)", saved)
	}
	return db
}

func (r *calculatorRepository) ListAll(ctx context.Context, filter CalculatorFilter) ([]models.Calculator, error) {
	defer observability.TrackQuery("select", "calculators")()
	calcs := []models.Calculator{}
	err := r.filtered(ctx, filter).
		Preload("Author", preloadAuthor).
		Preload("SavedUsers").
		Order("created_at DESC").
		Find(&calcs).Error
	if err != nil {
		return nil, models.NewReadError(err)
	}
	return calcs, nil
}

func calculatorOrder(sort string) string {
	switch sort {
	case SortAZ:
		return "slug ASC"
	case SortZA:
		return "slug DESC"
	case SortPopular:
		return "saves_count DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func (r *calculatorRepository) List(ctx context.Context, filter CalculatorFilter, q ListQuery) ([]models.Calculator, int64, error) {
	defer observability.TrackQuery("select", "calculators")()
	q = q.Normalized()

	base := r.filtered(ctx, filter)
	if q.Search != "" {
		base = whereContains(base, "title", q.Search)
	}
	if q.Tag != "" {
		base = whereContains(base, "category", q.Tag)
	}

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, models.NewReadError(err)
	}

	calcs := []models.Calculator{}
	err := q.paginate(base.Session(&gorm.Session{})).
		Preload("Author", preloadAuthor).
		Preload("SavedUsers").
		Order(calculatorOrder(q.Sort)).
		Find(&calcs).Error
	if err != nil {
		return nil, 0, models.NewReadError(err)
	}
	return calcs, count, nil
}

// Save adds userID to the calculator's save list and, when notif is set,
// notifies the author in the same transaction. A repeated save returns
// ErrDuplicate.
func (r *calculatorRepository) Save(ctx context.Context, calculatorID, userID uint, notif *models.Notification) error {
	defer observability.TrackQuery("insert", "calculator_saves")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.CalculatorSave{CalculatorID: calculatorID, UserID: userID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Calculator{}).Where("id = ?", calculatorID).
			UpdateColumn("saves_count", gorm.Expr("saves_count + 1")).Error; err != nil {
			return err
		}
		return createNotification(tx, notif)
	})
	if err != nil {
		return writeError(err)
	}
	cache.InvalidateCalculator(ctx, calculatorID, r.slugOf(ctx, calculatorID))
	r.log.LogCreate(ctx, map[string]any{"calculator_id": calculatorID, "saved_by": userID})
	return nil
}

// Unsave reports whether a save was removed.
func (r *calculatorRepository) Unsave(ctx context.Context, calculatorID, userID uint) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("calculator_id = ? AND user_id = ?", calculatorID, userID).Delete(&models.CalculatorSave{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&models.Calculator{}).Where("id = ? AND saves_count > 0", calculatorID).
			UpdateColumn("saves_count", gorm.Expr("saves_count - 1")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if removed {
		cache.InvalidateCalculator(ctx, calculatorID, r.slugOf(ctx, calculatorID))
		r.log.LogDelete(ctx, map[string]any{"calculator_id": calculatorID, "saved_by": userID})
	}
	return removed, nil
}

func deleteCalculatorsTx(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var commentIDs []uint
	if err := tx.Model(&models.Comment{}).Where("calculator_id IN ?", ids).Pluck("id", &commentIDs).Error; err != nil {
		return err
	}
	if err := deleteCommentsTx(tx, commentIDs); err != nil {
		return err
	}
	if err := tx.Where("calculator_id IN ?", ids).Delete(&models.CalculatorSave{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Calculator{}).Error
}

func removeSavesByUserTx(tx *gorm.DB, userID uint) error {
	var calcIDs []uint
	if err := tx.Model(&models.CalculatorSave{}).Where("user_id = ?", userID).Pluck("calculator_id", &calcIDs).Error; err != nil {
		return err
	}
	if len(calcIDs) == 0 {
		return nil
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.CalculatorSave{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.Calculator{}).Where("id IN ? AND saves_count > 0", calcIDs).
		UpdateColumn("saves_count", gorm.Expr("saves_count - 1")).Error
}
