package service

import (
	"context"
	"errors"
	"strings"

	"alvacus/internal/auth"
	"alvacus/internal/models"
	"alvacus/internal/notifications"
	"alvacus/internal/repository"
)

const maxCommentLen = 5000

type CommentService struct {
	comments repository.CommentRepository
	calcs    repository.CalculatorRepository
	pub      notifications.Publisher
}

func NewCommentService(comments repository.CommentRepository, calcs repository.CalculatorRepository, pub notifications.Publisher) *CommentService {
	return &CommentService{comments: comments, calcs: calcs, pub: pub}
}

func checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.NewValidationError("All fields are required")
	}
	if len(text) > maxCommentLen {
		return "", models.NewValidationError("Comment too long (max 5000 characters)")
	}
	return text, nil
}

func (s *CommentService) calculator(ctx context.Context, id uint) (*models.Calculator, error) {
	calc, err := s.calcs.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Calculator", id).WithMessage("Calculator not found")
		}
		return nil, err
	}
	return calc, nil
}

func (s *CommentService) comment(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Comment", id).WithMessage("Comment not found")
		}
		return nil, err
	}
	return comment, nil
}

// thread loads a comment with the calculator it belongs to.
func (s *CommentService) thread(ctx context.Context, id uint) (*models.Comment, *models.Calculator, error) {
	comment, err := s.comment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	calc, err := s.calculator(ctx, comment.CalculatorID)
	if err != nil {
		return nil, nil, err
	}
	return comment, calc, nil
}

func (s *CommentService) Create(ctx context.Context, p *auth.Principal, calcID uint, text string) (*models.Comment, error) {
	if !auth.Can(p, auth.ActionCreate, auth.Resource{Kind: auth.KindComment}) {
		return nil, unauthorized()
	}
	text, err := checkText(text)
	if err != nil {
		return nil, err
	}
	calc, err := s.calculator(ctx, calcID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{CalculatorID: calc.ID, AuthorID: p.UserID, Text: text}
	notif := calculatorNotification(calc, p.UserID, models.NotificationComment, "You have a new comment on "+calc.Title)
	if err := s.comments.Create(ctx, comment, notif); err != nil {
		return nil, err
	}
	publishAfterCommit(ctx, s.pub, notif)
	return s.comments.GetByID(ctx, comment.ID)
}

func (s *CommentService) List(ctx context.Context, calcID uint, q repository.ListQuery) (models.Page[models.Comment], error) {
	q = q.Normalized()
	comments, count, err := s.comments.ListByCalculator(ctx, calcID, q)
	if err != nil {
		return models.Page[models.Comment]{}, err
	}
	return models.NewPage(comments, count, q.Page, q.Limit), nil
}

func (s *CommentService) Reply(ctx context.Context, p *auth.Principal, commentID uint, text string) (*models.Comment, error) {
	if !auth.Can(p, auth.ActionCreate, auth.Resource{Kind: auth.KindComment}) {
		return nil, unauthorized()
	}
	text, err := checkText(text)
	if err != nil {
		return nil, err
	}
	comment, calc, err := s.thread(ctx, commentID)
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{CommentID: comment.ID, AuthorID: p.UserID, Text: text}
	notif := commentNotification(comment, p.UserID, models.NotificationReply, "You have a new reply on "+comment.Text, notificationLink(calc))
	if err := s.comments.AddReply(ctx, reply, notif); err != nil {
		return nil, err
	}
	publishAfterCommit(ctx, s.pub, notif)
	return s.comments.GetByID(ctx, comment.ID)
}

// Delete removes a comment with its replies and likes. Only the comment
// author may do it.
func (s *CommentService) Delete(ctx context.Context, p *auth.Principal, commentID uint) error {
	comment, err := s.comment(ctx, commentID)
	if err != nil {
		return err
	}
	if !auth.Can(p, auth.ActionDelete, auth.CommentResource(comment)) {
		return unauthorized()
	}
	return s.comments.Delete(ctx, comment.ID)
}

// DeleteReply removes one reply. Replies are moderated by the author of the
// comment they hang under.
func (s *CommentService) DeleteReply(ctx context.Context, p *auth.Principal, commentID, replyID uint) error {
	comment, err := s.comment(ctx, commentID)
	if err != nil {
		return err
	}
	if !auth.Can(p, auth.ActionDelete, auth.CommentResource(comment)) {
		return unauthorized()
	}
	removed, err := s.comments.DeleteReply(ctx, comment.ID, replyID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewNotFoundError("Reply", replyID).WithMessage("Reply not found")
	}
	return nil
}

func (s *CommentService) Like(ctx context.Context, p *auth.Principal, commentID uint) (*models.Comment, error) {
	if p == nil {
		return nil, unauthorized()
	}
	comment, calc, err := s.thread(ctx, commentID)
	if err != nil {
		return nil, err
	}

	notif := commentNotification(comment, p.UserID, models.NotificationLike, "You have a new like on your comment", notificationLink(calc))
	if err := s.comments.Like(ctx, comment.ID, p.UserID, notif); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewUnauthorizedError("You already liked this comment")
		}
		return nil, err
	}
	publishAfterCommit(ctx, s.pub, notif)
	return s.comments.GetByID(ctx, comment.ID)
}

func (s *CommentService) Unlike(ctx context.Context, p *auth.Principal, commentID uint) (*models.Comment, error) {
	if p == nil {
		return nil, unauthorized()
	}
	comment, err := s.comment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.comments.Unlike(ctx, comment.ID, p.UserID); err != nil {
		return nil, err
	}
	return s.comments.GetByID(ctx, comment.ID)
}
