package service

import (
	"context"
	"fmt"

	"alvacus/internal/auth"
	"alvacus/internal/models"
	"alvacus/internal/notifications"
	"alvacus/internal/observability"
)

// publishAfterCommit fans n out to its recipient once the write holding it
// has committed. Delivery is best effort.
func publishAfterCommit(ctx context.Context, pub notifications.Publisher, n *models.Notification) {
	if pub == nil || n == nil || n.ID == 0 {
		return
	}
	if err := pub.Publish(ctx, n); err != nil {
		observability.LogAsyncOperationError(ctx, "publish_notification", err, map[string]any{
			"user_id": n.UserID,
			"type":    n.Type,
		})
	}
}

// calculatorNotification builds a notification for the calculator author
// unless the actor is the author, or the author no longer exists.
func calculatorNotification(calc *models.Calculator, actorID uint, kind, text string) *models.Notification {
	if calc.AuthorID == nil || *calc.AuthorID == actorID {
		return nil
	}
	return &models.Notification{
		UserID: *calc.AuthorID,
		Type:   kind,
		Text:   text,
		Link:   notificationLink(calc),
	}
}

// notificationLink points at a calculator by type and ID.
func notificationLink(calc *models.Calculator) string {
	return fmt.Sprintf("/%s/%d", calc.Type, calc.ID)
}

// commentNotification targets the comment author. link points at the
// calculator the comment belongs to.
func commentNotification(comment *models.Comment, actorID uint, kind, text, link string) *models.Notification {
	if comment.AuthorID == actorID {
		return nil
	}
	return &models.Notification{
		UserID: comment.AuthorID,
		Type:   kind,
		Text:   text,
		Link:   link,
	}
}

func followNotification(follower *auth.Principal, followeeID uint) *models.Notification {
	return &models.Notification{
		UserID: followeeID,
		Type:   models.NotificationFollow,
		Text:   follower.Profile.Username + " started following you",
		Link:   "/user/" + auth.FormatID(follower.UserID),
	}
}
