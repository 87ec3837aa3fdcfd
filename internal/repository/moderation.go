package repository

import (
	"context"

	"alvacus/internal/models"
	"alvacus/internal/observability"

	"gorm.io/gorm"
)

// ReportRepository stores user reports about calculators and comments.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	List(ctx context.Context, seen bool, q ListQuery) ([]models.Report, int64, error)
	SetSeen(ctx context.Context, id uint, seen bool) (*models.Report, error)
	Delete(ctx context.Context, id uint) error
}

// ContactRepository stores contact-form messages.
type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, id uint) (*models.Contact, error)
	List(ctx context.Context, seen bool, q ListQuery) ([]models.Contact, int64, error)
	SetSeen(ctx context.Context, id uint, seen bool) (*models.Contact, error)
	Delete(ctx context.Context, id uint) error
}

// moderationStore implements the shared queue operations for one table.
// seenColumn is the flag an admin toggles, searchColumn the column the
// list search matches.
type moderationStore[T any] struct {
	db           *gorm.DB
	log          *observability.RepoLogger
	table        string
	resource     string
	seenColumn   string
	searchColumn string
}

func (s *moderationStore[T]) create(ctx context.Context, rec *T) error {
	defer observability.TrackQuery("insert", s.table)()
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		s.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	s.log.LogCreate(ctx, nil)
	return nil
}

func (s *moderationStore[T]) get(ctx context.Context, id uint) (*T, error) {
	var rec T
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFoundOr(err, s.resource, id)
	}
	return &rec, nil
}

func (s *moderationStore[T]) list(ctx context.Context, seen bool, q ListQuery) ([]T, int64, error) {
	defer observability.TrackQuery("select", s.table)()
	q = q.Normalized()
	base := s.db.WithContext(ctx).Model(new(T)).Where(s.seenColumn+" = ?", seen)
	if q.Search != "" {
		base = whereContains(base, s.searchColumn, q.Search)
	}

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, models.NewReadError(err)
	}

	order := "created_at DESC"
	if q.Sort == SortAZ {
		order = "created_at ASC"
	}
	items := []T{}
	if err := q.paginate(base.Session(&gorm.Session{})).Order(order).Find(&items).Error; err != nil {
		return nil, 0, models.NewReadError(err)
	}
	return items, count, nil
}

func (s *moderationStore[T]) setSeen(ctx context.Context, id uint, seen bool) (*T, error) {
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Update(s.seenColumn, seen)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError(s.resource, id)
	}
	s.log.LogUpdate(ctx, map[string]any{"id": id, s.seenColumn: seen})
	return s.get(ctx, id)
}

func (s *moderationStore[T]) delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(s.resource, id)
	}
	s.log.LogDelete(ctx, map[string]any{"id": id})
	return nil
}

type reportRepository struct {
	store moderationStore[models.Report]
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{store: moderationStore[models.Report]{
		db:           db,
		log:          observability.NewRepoLogger("reports"),
		table:        "reports",
		resource:     "Report",
		seenColumn:   "is_report_seen",
		searchColumn: "username",
	}}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.store.create(ctx, report)
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	return r.store.get(ctx, id)
}

func (r *reportRepository) List(ctx context.Context, seen bool, q ListQuery) ([]models.Report, int64, error) {
	return r.store.list(ctx, seen, q)
}

func (r *reportRepository) SetSeen(ctx context.Context, id uint, seen bool) (*models.Report, error) {
	return r.store.setSeen(ctx, id, seen)
}

func (r *reportRepository) Delete(ctx context.Context, id uint) error {
	return r.store.delete(ctx, id)
}

type contactRepository struct {
	store moderationStore[models.Contact]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{store: moderationStore[models.Contact]{
		db:           db,
		log:          observability.NewRepoLogger("contacts"),
		table:        "contacts",
		resource:     "Contact",
		seenColumn:   "is_contact_seen",
		searchColumn: "message",
	}}
}

func (r *contactRepository) Create(ctx context.Context, contact *models.Contact) error {
	return r.store.create(ctx, contact)
}

func (r *contactRepository) GetByID(ctx context.Context, id uint) (*models.Contact, error) {
	return r.store.get(ctx, id)
}

func (r *contactRepository) List(ctx context.Context, seen bool, q ListQuery) ([]models.Contact, int64, error) {
	return r.store.list(ctx, seen, q)
}

func (r *contactRepository) SetSeen(ctx context.Context, id uint, seen bool) (*models.Contact, error) {
	return r.store.setSeen(ctx, id, seen)
}

func (r *contactRepository) Delete(ctx context.Context, id uint) error {
	return r.store.delete(ctx, id)
}
