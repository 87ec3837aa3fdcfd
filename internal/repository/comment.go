package repository

import (
	"context"

	"alvacus/internal/models"
	"alvacus/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines persistence for comments, their replies and
// likes.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment, notif *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByCalculator(ctx context.Context, calculatorID uint, q ListQuery) ([]models.Comment, int64, error)
	Delete(ctx context.Context, id uint) error
	AddReply(ctx context.Context, reply *models.Reply, notif *models.Notification) error
	DeleteReply(ctx context.Context, commentID, replyID uint) (bool, error)
	Like(ctx context.Context, commentID, userID uint, notif *models.Notification) error
	Unlike(ctx context.Context, commentID, userID uint) (bool, error)
	Activity(ctx context.Context, userID uint) (*models.UserActivity, error)
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func withThread(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author", preloadAuthor).
		Preload("Likes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Replies.Author", preloadAuthor)
}

// Create inserts the comment and the calculator author's notification in
// one transaction.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment, notif *models.Notification) error {
	defer observability.TrackQuery("insert", "comments")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return err
		}
		return createNotification(tx, notif)
	})
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"comment_id": comment.ID, "calculator_id": comment.CalculatorID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer observability.TrackQuery("select", "comments")()
	var comment models.Comment
	if err := withThread(r.db.WithContext(ctx)).First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByCalculator(ctx context.Context, calculatorID uint, q ListQuery) ([]models.Comment, int64, error) {
	defer observability.TrackQuery("select", "comments")()
	q = q.Normalized()
	base := r.db.WithContext(ctx).Model(&models.Comment{}).Where("calculator_id = ?", calculatorID)

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, models.NewReadError(err)
	}

	order := "created_at DESC"
	if q.Sort == SortPopular {
		order = "likes_count DESC, created_at DESC"
	}

	comments := []models.Comment{}
	if err := withThread(q.paginate(base.Session(&gorm.Session{}))).Order(order).Find(&comments).Error; err != nil {
		return nil, 0, models.NewReadError(err)
	}
	return comments, count, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "comments")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteCommentsTx(tx, []uint{id})
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]any{"comment_id": id})
	return nil
}

func (r *commentRepository) AddReply(ctx context.Context, reply *models.Reply, notif *models.Notification) error {
	defer observability.TrackQuery("insert", "comment_replies")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(reply).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Comment{}).Where("id = ?", reply.CommentID).
			UpdateColumn("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error; err != nil {
			return err
		}
		return createNotification(tx, notif)
	})
	if err != nil {
		r.log.LogError(ctx, err, "reply")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"reply_id": reply.ID, "comment_id": reply.CommentID})
	return nil
}

// DeleteReply reports whether the reply existed under commentID.
func (r *commentRepository) DeleteReply(ctx context.Context, commentID, replyID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND comment_id = ?", replyID, commentID).Delete(&models.Reply{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, map[string]any{"reply_id": replyID, "comment_id": commentID})
	}
	return res.RowsAffected > 0, nil
}

// Like records the like, bumps the counter and stores the owner's
// notification in one transaction. A repeated like returns ErrDuplicate and
// leaves the counter unchanged.
func (r *commentRepository) Like(ctx context.Context, commentID, userID uint, notif *models.Notification) error {
	defer observability.TrackQuery("insert", "comment_likes")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Comment{}).Where("id = ?", commentID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error; err != nil {
			return err
		}
		return createNotification(tx, notif)
	})
	if err != nil {
		return writeError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"comment_id": commentID, "liked_by": userID})
	return nil
}

func (r *commentRepository) Unlike(ctx context.Context, commentID, userID uint) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		removed = true
		return tx.Model(&models.Comment{}).Where("id = ? AND likes_count > 0", commentID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if removed {
		r.log.LogDelete(ctx, map[string]any{"comment_id": commentID, "liked_by": userID})
	}
	return removed, nil
}

// Activity assembles the user's comment history: comments they wrote,
// replies they wrote, and likes other users left on their comments.
func (r *commentRepository) Activity(ctx context.Context, userID uint) (*models.UserActivity, error) {
	defer observability.TrackQuery("select", "comments")()
	db := r.db.WithContext(ctx)
	activity := &models.UserActivity{
		CommentedCalculators: []models.CommentedCalculator{},
		RepliedComments:      []models.RepliedComment{},
		LikedComments:        []models.LikedComment{},
	}

	err := db.Model(&models.Comment{}).
		Select("calculator_id, id AS comment_id, text, created_at").
		Where("author_id = ?", userID).
		Order("created_at DESC").
		Scan(&activity.CommentedCalculators).Error
	if err != nil {
		return nil, models.NewReadError(err)
	}

	err = db.Table("comment_replies AS r").
		Select("c.calculator_id, r.comment_id, r.text, r.created_at").
		Joins("JOIN comments AS c ON c.id = r.comment_id").
		Where("r.author_id = ?", userID).
		Order("r.created_at DESC").
		Scan(&activity.RepliedComments).Error
	if err != nil {
		return nil, models.NewReadError(err)
	}

	err = db.Table("comment_likes AS l").
		Select("l.comment_id, c.text, l.user_id").
		Joins("JOIN comments AS c ON c.id = l.comment_id").
		Where("c.author_id = ? AND l.user_id <> ?", userID, userID).
		Order("l.created_at DESC").
		Scan(&activity.LikedComments).Error
	if err != nil {
		return nil, models.NewReadError(err)
	}
	return activity, nil
}

func deleteCommentsTx(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentLike{}).Error; err != nil {
		return err
	}
	if err := tx.Where("comment_id IN ?", ids).Delete(&models.Reply{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
}

func removeLikesByUserTx(tx *gorm.DB, userID uint) error {
	var commentIDs []uint
	if err := tx.Model(&models.CommentLike{}).Where("user_id = ?", userID).Pluck("comment_id", &commentIDs).Error; err != nil {
		return err
	}
	if len(commentIDs) == 0 {
		return nil
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.CommentLike{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.Comment{}).Where("id IN ? AND likes_count > 0", commentIDs).
		UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error
}
