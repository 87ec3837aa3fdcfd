// Package notifications fans stored notifications out over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"alvacus/internal/models"
	"alvacus/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers a committed notification to its recipient's channel.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// Notifier publishes notifications into Redis channels. A nil client makes
// every publish a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// Publish sends the JSON form of notif to notif.UserID's channel.
func (n *Notifier) Publish(ctx context.Context, notif *models.Notification) error {
	payload, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	err = n.PublishUser(ctx, notif.UserID, string(payload))
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.NotificationsPublished.WithLabelValues(notif.Type, result).Inc()
	return err
}
