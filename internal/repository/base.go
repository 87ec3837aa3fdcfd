// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"alvacus/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicate is returned when a write hits a unique index.
var ErrDuplicate = errors.New("duplicate record")

// Sort orders accepted by list queries.
const (
	SortRecent  = "recent"
	SortAZ      = "a-z"
	SortZA      = "z-a"
	SortPopular = "popular"
)

const (
	DefaultPage  = 1
	DefaultLimit = 3
	MaxLimit     = 100
)

// ListQuery carries the pagination, sort and filter parameters shared by
// list endpoints.
type ListQuery struct {
	Page   int
	Limit  int
	Sort   string
	Search string
	Tag    string
}

// Normalized fills defaults and clamps Limit.
func (q ListQuery) Normalized() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Tag = strings.TrimSpace(q.Tag)
	return q
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

func (q ListQuery) paginate(db *gorm.DB) *gorm.DB {
	return db.Limit(q.Limit).Offset(q.Offset())
}

// containsPattern builds a case-insensitive LIKE pattern for s.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// whereContains filters column by a case-insensitive substring match that
// works on both PostgreSQL and SQLite.
func whereContains(db *gorm.DB, column, s string) *gorm.DB {
	return db.Where("LOWER("+column+`) LIKE ? ESCAPE '\'`, containsPattern(s))
}

func preloadAuthor(db *gorm.DB) *gorm.DB {
	return db.Select(models.AuthorColumns)
}

// isUniqueConstraintError reports a unique-index violation from either
// driver.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// writeError maps a failed write onto ErrDuplicate or an internal error.
func writeError(err error) error {
	if isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return models.NewInternalError(err)
}

// notFoundOr maps gorm.ErrRecordNotFound to a not-found error and anything
// else to the collapsed read error.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewReadError(err)
}

// createNotification inserts n inside tx when it is non-nil.
func createNotification(tx *gorm.DB, n *models.Notification) error {
	if n == nil {
		return nil
	}
	return tx.Omit(clause.Associations).Create(n).Error
}

// IsNotFound reports whether err is a repository not-found error.
func IsNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound && appErr.Err == nil
}
