package repository

import (
	"context"
	"testing"

	"alvacus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_LikeTwiceKeepsCount(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommentRepository(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	calc := seedCalculator(t, db, alice, "bmi", true)
	ctx := context.Background()

	comment := &models.Comment{CalculatorID: calc.ID, AuthorID: alice.ID, Text: "nice"}
	require.NoError(t, repo.Create(ctx, comment, nil))

	require.NoError(t, repo.Like(ctx, comment.ID, bob.ID, &models.Notification{UserID: alice.ID, Type: models.NotificationLike, Text: "like", Link: "/modular/1"}))
	assert.ErrorIs(t, repo.Like(ctx, comment.ID, bob.ID, nil), ErrDuplicate)

	got, err := repo.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)
	assert.Len(t, got.Likes, 1)

	removed, err := repo.Unlike(ctx, comment.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	got, err = repo.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikesCount)
}

func TestCommentRepository_RepliesAndActivity(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommentRepository(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	calc := seedCalculator(t, db, alice, "bmi", true)
	ctx := context.Background()

	comment := &models.Comment{CalculatorID: calc.ID, AuthorID: alice.ID, Text: "first"}
	require.NoError(t, repo.Create(ctx, comment, nil))
	reply := &models.Reply{CommentID: comment.ID, AuthorID: bob.ID, Text: "agreed"}
	require.NoError(t, repo.AddReply(ctx, reply, nil))
	require.NoError(t, repo.Like(ctx, comment.ID, bob.ID, nil))

	comments, count, err := repo.ListByCalculator(ctx, calc.ID, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, comments[0].Replies, 1)
	require.NotNil(t, comments[0].Replies[0].Author)
	assert.Equal(t, "bob", comments[0].Replies[0].Author.Username)

	aliceActivity, err := repo.Activity(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceActivity.CommentedCalculators, 1)
	assert.Equal(t, calc.ID, aliceActivity.CommentedCalculators[0].CalculatorID)
	require.Len(t, aliceActivity.LikedComments, 1)
	assert.Equal(t, bob.ID, aliceActivity.LikedComments[0].UserID)

	bobActivity, err := repo.Activity(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobActivity.RepliedComments, 1)
	assert.Equal(t, comment.ID, bobActivity.RepliedComments[0].CommentID)

	removed, err := repo.DeleteReply(ctx, comment.ID+1, reply.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	removed, err = repo.DeleteReply(ctx, comment.ID, reply.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestModerationRepositories(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportRepository(db)
	contacts := NewContactRepository(db)
	ctx := context.Background()

	require.NoError(t, reports.Create(ctx, &models.Report{Username: "alice", Email: "a@x.com", Title: "t", CalculatorID: models.Anonymous}))
	require.NoError(t, reports.Create(ctx, &models.Report{Username: models.Anonymous, Email: models.Anonymous, Title: "t2"}))

	unseen, count, err := reports.List(ctx, false, ListQuery{Search: "ali"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	updated, err := reports.SetSeen(ctx, unseen[0].ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsReportSeen)

	_, count, err = reports.List(ctx, true, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, reports.Delete(ctx, updated.ID))
	assert.True(t, IsNotFound(reports.Delete(ctx, updated.ID)))

	require.NoError(t, contacts.Create(ctx, &models.Contact{Username: "bob", Email: "b@x.com", Subject: "s", Message: "Hello there"}))
	_, count, err = contacts.List(ctx, false, ListQuery{Search: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFollowAndNotifications(t *testing.T) {
	db := newTestDB(t)
	follows := NewFollowRepository(db)
	notifications := NewNotificationRepository(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	ctx := context.Background()

	notif := &models.Notification{UserID: alice.ID, Type: models.NotificationFollow, Text: "bob started following you", Link: "/profile/2"}
	require.NoError(t, follows.Follow(ctx, bob.ID, alice.ID, notif))
	assert.ErrorIs(t, follows.Follow(ctx, bob.ID, alice.ID, nil), ErrDuplicate)

	ids, err := follows.FollowerIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, ids)

	list, err := notifications.ListByUser(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead)

	n, err := notifications.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	removed, err := follows.Unfollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}
