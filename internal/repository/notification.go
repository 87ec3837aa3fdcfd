package repository

import (
	"context"

	"alvacus/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository reads and acknowledges a user's notifications.
// Notifications are written by the repositories whose transactions
// produce them.
type NotificationRepository interface {
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	notifications := []models.Notification{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, models.NewReadError(err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
