package repository

import (
	"context"

	"alvacus/internal/models"
	"alvacus/internal/observability"

	"gorm.io/gorm"
)

// FollowRepository stores follower edges between users.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID uint, notif *models.Notification) error
	Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
}

type followRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db, log: observability.NewRepoLogger("follows")}
}

// Follow records the edge and the followee's notification together. An
// existing edge returns ErrDuplicate.
func (r *followRepository) Follow(ctx context.Context, followerID, followeeID uint, notif *models.Notification) error {
	defer observability.TrackQuery("insert", "follows")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error; err != nil {
			return err
		}
		return createNotification(tx, notif)
	})
	if err != nil {
		return writeError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"follower_id": followerID, "followee_id": followeeID})
	return nil
}

// Unfollow reports whether an edge was removed.
func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, map[string]any{"follower_id": followerID, "followee_id": followeeID})
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Order("created_at ASC").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, models.NewReadError(err)
	}
	return ids, nil
}
