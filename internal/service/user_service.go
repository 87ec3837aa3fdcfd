package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alvacus/internal/auth"
	"alvacus/internal/mailer"
	"alvacus/internal/models"
	"alvacus/internal/notifications"
	"alvacus/internal/repository"
	"alvacus/internal/validation"
)

// notificationListLimit caps how many notifications a user sees at once.
const notificationListLimit = 50

// UserServiceDeps wires UserService.
type UserServiceDeps struct {
	Users         repository.UserRepository
	Follows       repository.FollowRepository
	Notifications repository.NotificationRepository
	Comments      repository.CommentRepository
	Tokens        *auth.TokenIssuer
	Sessions      SessionIssuer
	Mailer        mailer.Mailer
	Publisher     notifications.Publisher
	ClientURL     string
}

type UserService struct {
	users     repository.UserRepository
	follows   repository.FollowRepository
	notifs    repository.NotificationRepository
	comments  repository.CommentRepository
	tokens    *auth.TokenIssuer
	sessions  SessionIssuer
	mail      mailer.Mailer
	pub       notifications.Publisher
	clientURL string
}

func NewUserService(d UserServiceDeps) *UserService {
	return &UserService{
		users:     d.Users,
		follows:   d.Follows,
		notifs:    d.Notifications,
		comments:  d.Comments,
		tokens:    d.Tokens,
		sessions:  d.Sessions,
		mail:      d.Mailer,
		pub:       d.Publisher,
		clientURL: d.ClientURL,
	}
}

type UpdateProfileInput struct {
	UserID     uint
	Username   string
	Email      string
	Avatar     string
	Profession string
	Company    string
}

type ChangePasswordInput struct {
	UserID      uint
	OldPassword string
	Password    string
}

// lookup resolves a user for an authenticated operation. A missing user is
// reported the same way as a foreign one.
func (s *UserService) lookup(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, unauthorized()
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, q repository.ListQuery) (models.Page[models.User], error) {
	q = q.Normalized()
	users, count, err := s.users.List(ctx, q)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	return models.NewPage(users, count, q.Page, q.Limit), nil
}

// GetProfile returns what anyone may read about a user.
func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.PublicProfile, error) {
	user, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	followers, err := s.follows.FollowerIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := user.ToPublicProfile(followers)
	return &profile, nil
}

// UpdateProfile overwrites the supplied fields and re-issues the session so
// the token snapshot matches the stored user.
func (s *UserService) UpdateProfile(ctx context.Context, p *auth.Principal, in UpdateProfileInput) (*Session, error) {
	if !auth.Can(p, auth.ActionUpdate, auth.UserResource(in.UserID)) {
		return nil, unauthorized()
	}
	user, err := s.lookup(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if username := strings.TrimSpace(in.Username); username != "" && !strings.EqualFold(username, user.Username) {
		if err := validation.ValidateUsername(username); err != nil {
			if errors.Is(err, validation.ErrInvalidCharacters) {
				return nil, models.NewInvalidCharactersError(err.Error())
			}
			return nil, models.NewValidationError(err.Error())
		}
		existing, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, models.NewUnprocessableError("Username already exist")
		}
		user.Username = strings.ToLower(username)
		user.Slug = user.Username
	}

	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != user.Email {
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		existing, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, models.NewUnprocessableError("Email already exist")
		}
		user.Email = email
	}

	if in.Avatar != "" {
		user.Avatar = in.Avatar
	}
	if in.Profession != "" {
		user.Profession = in.Profession
	}
	if in.Company != "" {
		user.Company = in.Company
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewUnprocessableError("User already exist")
		}
		return nil, err
	}
	return s.sessions.IssueSession(ctx, user)
}

// ChangePassword replaces the password after checking the old one. Tokens
// issued before the change stop verifying.
func (s *UserService) ChangePassword(ctx context.Context, p *auth.Principal, in ChangePasswordInput) (*Session, error) {
	if in.OldPassword == "" || in.Password == "" {
		return nil, models.NewValidationError("All fields are required")
	}
	if !auth.Can(p, auth.ActionUpdate, auth.UserResource(in.UserID)) {
		return nil, unauthorized()
	}
	user, err := s.lookup(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !passwordMatches(user.Password, in.OldPassword) {
		return nil, models.NewUnauthorizedError("Your old password is incorrect")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err = s.users.SetPassword(ctx, user.ID, hash)
	if err != nil {
		return nil, err
	}
	return s.sessions.IssueSession(ctx, user)
}

func (s *UserService) ChangePrivacy(ctx context.Context, p *auth.Principal, userID uint, settings models.PrivacySettings) (*models.PrivacySettings, error) {
	if !auth.Can(p, auth.ActionUpdate, auth.UserResource(userID)) {
		return nil, unauthorized()
	}
	if _, err := s.lookup(ctx, userID); err != nil {
		return nil, err
	}
	err := s.users.UpdateFields(ctx, userID, map[string]any{
		"privacy_show_saved_calculators": settings.ShowSavedCalculators,
		"privacy_show_comments":          settings.ShowComments,
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SendActivation emails an activation link to the signed-in user.
func (s *UserService) SendActivation(ctx context.Context, p *auth.Principal) error {
	if p == nil {
		return unauthorized()
	}
	user, err := s.lookup(ctx, p.UserID)
	if err != nil {
		return err
	}
	token, err := s.tokens.IssuePurpose(user, auth.PurposeActivation)
	if err != nil {
		return models.NewInternalError(err)
	}

	msg := mailer.Message{
		To:       user.Email,
		Subject:  "Alvacus account verification",
		Template: mailer.TemplateActivation,
		Data: map[string]any{
			"receiver": user.Username,
			"link":     fmt.Sprintf("%s/auth/activation?t=%s&uuid=%d", s.clientURL, token, user.ID),
		},
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Activate redeems an activation token. raw may carry a leading "t=".
func (s *UserService) Activate(ctx context.Context, raw string) error {
	token, _ := strings.CutPrefix(strings.TrimSpace(raw), "t=")
	if token == "" {
		return models.NewValidationError("All fields are required")
	}
	claims, err := s.tokens.ParsePurpose(token, auth.PurposeActivation)
	if err != nil {
		return unauthorized()
	}
	id, err := auth.ParseID(claims.UserInfo.UserID)
	if err != nil {
		return unauthorized()
	}
	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}
	return s.users.UpdateFields(ctx, id, map[string]any{"is_activated": true})
}

// DeleteUser removes an account. The owner or an admin may do it.
func (s *UserService) DeleteUser(ctx context.Context, p *auth.Principal, userID uint, opts repository.DeleteUserOptions) error {
	if !auth.Can(p, auth.ActionDelete, auth.UserResource(userID)) {
		return unauthorized()
	}
	err := s.users.Delete(ctx, userID, opts)
	if repository.IsNotFound(err) {
		return unauthorized()
	}
	return err
}

func (s *UserService) Follow(ctx context.Context, p *auth.Principal, userID uint) error {
	if p == nil {
		return unauthorized()
	}
	if p.UserID == userID {
		return models.NewUnprocessableError("You cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	notif := followNotification(p, userID)
	if err := s.follows.Follow(ctx, p.UserID, userID, notif); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.NewUnauthorizedError("You already follow this user")
		}
		return err
	}
	publishAfterCommit(ctx, s.pub, notif)
	return nil
}

func (s *UserService) Unfollow(ctx context.Context, p *auth.Principal, userID uint) error {
	if p == nil {
		return unauthorized()
	}
	removed, err := s.follows.Unfollow(ctx, p.UserID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewUnauthorizedError("You do not follow this user")
	}
	return nil
}

// Notifications lists the principal's own notifications, newest first.
func (s *UserService) Notifications(ctx context.Context, p *auth.Principal) ([]models.Notification, error) {
	if p == nil {
		return nil, unauthorized()
	}
	return s.notifs.ListByUser(ctx, p.UserID, notificationListLimit)
}

func (s *UserService) MarkNotificationsRead(ctx context.Context, p *auth.Principal) (int64, error) {
	if p == nil {
		return 0, unauthorized()
	}
	return s.notifs.MarkAllRead(ctx, p.UserID)
}

// Activity returns a user's comment history when their privacy settings,
// or the principal's role, allow it. p may be nil.
func (s *UserService) Activity(ctx context.Context, p *auth.Principal, userID uint) (*models.UserActivity, error) {
	user, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !auth.Can(p, auth.ActionRead, auth.ActivityResource(user)) {
		return nil, unauthorized()
	}
	return s.comments.Activity(ctx, userID)
}
