// Package service holds the business rules behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alvacus/internal/auth"
	"alvacus/internal/mailer"
	"alvacus/internal/models"
	"alvacus/internal/observability"
	"alvacus/internal/repository"
	"alvacus/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost for every stored password.
const PasswordCost = 12

// Session is the result of a successful sign-in: an access token for the
// response body and a refresh token for the jwt cookie.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// SessionIssuer mints a session for a stored user.
type SessionIssuer interface {
	IssueSession(ctx context.Context, u *models.User) (*Session, error)
}

// AuthConfig carries the settings AuthService needs from config.
type AuthConfig struct {
	ClientURL      string
	GoogleClientID string
}

type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenIssuer
	mail   mailer.Mailer
	cfg    AuthConfig
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenIssuer, mail mailer.Mailer, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		mail:   mail,
		cfg:    cfg,
		now:    time.Now,
	}
}

type LoginInput struct {
	Username string
	Email    string
	Password string
	IP       string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	IP       string
}

type ResetPasswordInput struct {
	Token    string
	Password string
	IP       string
}

// HashPassword hashes password at PasswordCost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hash), nil
}

func passwordMatches(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func unauthorized() error {
	return models.NewUnauthorizedError("Unauthorized")
}

// IssueSession signs an access and a refresh token for u.
func (s *AuthService) IssueSession(_ context.Context, u *models.User) (*Session, error) {
	access, err := s.tokens.IssueAccess(u)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.tokens.IssueRefresh(u)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

// recordIP stores the request origin. A failure does not fail the sign-in.
func (s *AuthService) recordIP(ctx context.Context, u *models.User, ip string) {
	if ip == "" || ip == u.UserIP {
		return
	}
	if err := s.users.UpdateFields(ctx, u.ID, map[string]any{"user_ip": ip}); err != nil {
		observability.LogAsyncOperationError(ctx, "record_user_ip", err, map[string]any{"user_id": u.ID})
		return
	}
	u.UserIP = ip
}

func (s *AuthService) signIn(ctx context.Context, u *models.User, method, ip string) (*Session, error) {
	s.recordIP(ctx, u, ip)
	session, err := s.IssueSession(ctx, u)
	if err != nil {
		return nil, err
	}
	observability.AuthAttempts.WithLabelValues(method, "success").Inc()
	return session, nil
}

func (s *AuthService) reject(method string, err error) error {
	observability.AuthAttempts.WithLabelValues(method, "failure").Inc()
	return err
}

// Login checks a username or email and password pair. The username is
// tried first.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if in.Password == "" {
		return nil, s.reject("password", models.NewValidationError("All fields are required"))
	}

	var user *models.User
	var err error
	if strings.TrimSpace(in.Username) != "" {
		if user, err = s.users.GetByUsername(ctx, in.Username); err != nil {
			return nil, err
		}
	}
	if user == nil && strings.TrimSpace(in.Email) != "" {
		if user, err = s.users.GetByEmail(ctx, in.Email); err != nil {
			return nil, err
		}
	}
	if user == nil || !passwordMatches(user.Password, in.Password) {
		return nil, s.reject("password", unauthorized())
	}

	return s.signIn(ctx, user, "password", in.IP)
}

// AccessLogin re-issues a session for the user named by a still-valid
// access token.
func (s *AuthService) AccessLogin(ctx context.Context, userToken, ip string) (*Session, error) {
	if userToken == "" {
		return nil, s.reject("access", models.NewValidationError("All fields are required"))
	}
	claims, err := s.tokens.ParseAccess(userToken)
	if err != nil {
		return nil, s.reject("access", models.NewUnauthorizedError("Authentication failed"))
	}
	id, err := auth.ParseID(claims.UserInfo.UserID)
	if err != nil {
		return nil, s.reject("access", unauthorized())
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, s.reject("access", unauthorized())
		}
		return nil, err
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, s.reject("access", models.NewUnauthorizedError("Authentication failed"))
	}

	return s.signIn(ctx, user, "access", ip)
}

// GoogleLogin signs in with a Google ID token, linking or creating the
// account as needed.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken, ip string) (*Session, error) {
	if idToken == "" {
		return nil, s.reject("google", models.NewValidationError("All fields are required"))
	}
	identity, err := auth.DecodeGoogleIDToken(idToken, s.cfg.GoogleClientID, s.now())
	if err != nil {
		return nil, s.reject("google", unauthorized())
	}

	user, err := s.users.GetByGoogleID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.signIn(ctx, user, "google", ip)
	}

	user, err = s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		subject := identity.Subject
		user.GoogleID = &subject
		user.Avatar = identity.Picture
		user.IsActivated = identity.EmailVerified
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return s.signIn(ctx, user, "google", ip)
	}

	username, err := s.uniqueUsername(ctx, identity.Name, identity.Email)
	if err != nil {
		return nil, err
	}
	subject := identity.Subject
	user = &models.User{
		Username:    username,
		Email:       identity.Email,
		GoogleID:    &subject,
		Slug:        username,
		Avatar:      identity.Picture,
		Role:        models.RoleUser,
		IsActivated: identity.EmailVerified,
		UserIP:      ip,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewUnprocessableError("User already exist")
		}
		return nil, err
	}
	return s.signIn(ctx, user, "google", ip)
}

// uniqueUsername derives a free username from a display name, falling back
// to the email's local part.
func (s *AuthService) uniqueUsername(ctx context.Context, name, email string) (string, error) {
	base := validation.SanitizeUsername(name)
	if base == "" {
		local, _, _ := strings.Cut(email, "@")
		base = validation.SanitizeUsername(local)
	}
	if base == "" {
		base = "user"
	}

	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		existing, err := s.users.GetByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	return "", models.NewUnprocessableError("User already exist")
}

// Register creates a local account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("All fields are required")
	}

	// Character check runs before any database access.
	if err := validation.ValidateUsername(username); err != nil {
		if errors.Is(err, validation.ErrInvalidCharacters) {
			return nil, models.NewInvalidCharactersError(err.Error())
		}
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	username = strings.ToLower(username)

	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewUnprocessableError("User already exist")
	}
	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewUnprocessableError("User already exist")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:    username,
		Email:       email,
		Password:    hash,
		Slug:        username,
		Role:        models.RoleUser,
		IsActivated: true,
		UserIP:      in.IP,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewUnprocessableError("User already exist")
		}
		return nil, err
	}

	session, err := s.IssueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	observability.AuthAttempts.WithLabelValues("register", "success").Inc()
	return session, nil
}

// Refresh mints a new access token for a user already resolved from the
// refresh cookie.
func (s *AuthService) Refresh(ctx context.Context, user *models.User, ip string) (string, error) {
	s.recordIP(ctx, user, ip)
	token, err := s.tokens.IssueAccess(user)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return token, nil
}

// ForgotPassword emails a reset link to the account owning email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return models.NewValidationError("All fields are required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", email).WithMessage("User not found")
	}

	token, err := s.tokens.IssuePurpose(user, auth.PurposeReset)
	if err != nil {
		return models.NewInternalError(err)
	}
	msg := mailer.Message{
		To:       user.Email,
		Subject:  "Alvacus password reset",
		Template: mailer.TemplateResetPassword,
		Data: map[string]any{
			"receiver": user.Username,
			"link":     fmt.Sprintf("%s/reset-password?t=%s", s.cfg.ClientURL, token),
		},
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ResetPassword redeems a reset token, stores the new password and signs
// the user in. Every token issued before the reset stops verifying.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (*Session, error) {
	if in.Token == "" || in.Password == "" {
		return nil, models.NewValidationError("All fields are required")
	}
	claims, err := s.tokens.ParsePurpose(in.Token, auth.PurposeReset)
	if err != nil {
		return nil, unauthorized()
	}
	id, err := auth.ParseID(claims.UserInfo.UserID)
	if err != nil {
		return nil, unauthorized()
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, unauthorized()
		}
		return nil, err
	}
	// A reset token is single use: redeeming it bumps the version it carries.
	if user.TokenVersion != claims.TokenVersion {
		return nil, unauthorized()
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err = s.users.SetPassword(ctx, id, hash)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, user, "reset", in.IP)
}
