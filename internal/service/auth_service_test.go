package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"alvacus/internal/auth"
	"alvacus/internal/mailer"
	"alvacus/internal/models"
	"alvacus/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(users repository.UserRepository, mail mailer.Mailer) (*AuthService, *auth.TokenIssuer) {
	issuer := testIssuer()
	if mail == nil {
		mail = &mailerStub{}
	}
	return NewAuthService(users, issuer, mail, AuthConfig{ClientURL: "http://localhost:3000"}), issuer
}

func TestAuthService_Register_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"missing username", RegisterInput{Email: "a@x.com", Password: "secret1"}, models.CodeValidation},
		{"missing email", RegisterInput{Username: "alice", Password: "secret1"}, models.CodeValidation},
		{"missing password", RegisterInput{Username: "alice", Email: "a@x.com"}, models.CodeValidation},
		{"invalid characters", RegisterInput{Username: "al ice!", Email: "a@x.com", Password: "secret1"}, models.CodeInvalidCharacters},
		{"invalid email", RegisterInput{Username: "alice", Email: "not-an-email", Password: "secret1"}, models.CodeValidation},
		{"short password", RegisterInput{Username: "alice", Email: "a@x.com", Password: "123"}, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := noopUserRepo()
			svc, _ := newAuthService(repo, nil)
			_, err := svc.Register(context.Background(), tt.in)
			assertAppError(t, err, tt.code)
			assert.Empty(t, repo.calls, "validation must fail before any repository access")
		})
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	t.Parallel()

	t.Run("username taken", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByUsernameFn = func(_ context.Context, name string) (*models.User, error) {
			assert.Equal(t, "alice", name)
			return &models.User{ID: 9, Username: "alice"}, nil
		}
		svc, _ := newAuthService(repo, nil)
		_, err := svc.Register(context.Background(), RegisterInput{Username: "Alice", Email: "a@x.com", Password: "secret1"})
		appErr := assertAppError(t, err, models.CodeUnprocessable)
		assert.Equal(t, "User already exist", appErr.Message)
	})

	t.Run("email taken after lowercasing", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			assert.Equal(t, "a@x.com", email)
			return &models.User{ID: 9}, nil
		}
		svc, _ := newAuthService(repo, nil)
		_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "A@X.com", Password: "secret1"})
		assertUnprocessableError(t, err)
	})

	t.Run("unique index race", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.createFn = func(context.Context, *models.User) error { return repository.ErrDuplicate }
		svc, _ := newAuthService(repo, nil)
		_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
		assertUnprocessableError(t, err)
	})
}

func TestAuthService_Register_Success(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	var created *models.User
	repo.createFn = func(_ context.Context, u *models.User) error {
		u.ID = 42
		created = u
		return nil
	}
	svc, issuer := newAuthService(repo, nil)

	session, err := svc.Register(context.Background(), RegisterInput{
		Username: "Alice_1",
		Email:    "Alice@Example.com",
		Password: "secret1",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "alice_1", created.Username)
	assert.Equal(t, "alice_1", created.Slug)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.True(t, created.IsActivated)
	assert.Equal(t, "10.0.0.1", created.UserIP)
	assert.False(t, created.Privacy.ShowComments)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("secret1")))
	cost, err := bcrypt.Cost([]byte(created.Password))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)

	claims, err := issuer.ParseAccess(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.SnapshotOf(created), claims.UserInfo)

	refresh, err := issuer.ParseRefresh(session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "42", refresh.UserID)
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	stored := func(t *testing.T) *models.User {
		return &models.User{ID: 7, Username: "alice", Email: "alice@x.com", Password: secretHash(t), Role: models.RoleUser}
	}

	t.Run("missing password", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthService(noopUserRepo(), nil)
		_, err := svc.Login(context.Background(), LoginInput{Username: "alice"})
		assertValidationError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthService(noopUserRepo(), nil)
		_, err := svc.Login(context.Background(), LoginInput{Username: "ghost", Password: "secret1"})
		appErr := assertAppError(t, err, models.CodeUnauthorized)
		assert.Equal(t, "Unauthorized", appErr.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		u := stored(t)
		repo := noopUserRepo()
		repo.getByUsernameFn = func(context.Context, string) (*models.User, error) { return u, nil }
		svc, _ := newAuthService(repo, nil)
		_, err := svc.Login(context.Background(), LoginInput{Username: "alice", Password: "wrong"})
		assertUnauthorizedError(t, err)
	})

	t.Run("federated account without password", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByUsernameFn = func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 3, Username: "g"}, nil
		}
		svc, _ := newAuthService(repo, nil)
		_, err := svc.Login(context.Background(), LoginInput{Username: "g", Password: "anything"})
		assertUnauthorizedError(t, err)
	})

	t.Run("falls back to email and records ip", func(t *testing.T) {
		t.Parallel()
		u := stored(t)
		repo := noopUserRepo()
		repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			assert.Equal(t, "alice@x.com", email)
			return u, nil
		}
		var fields map[string]any
		repo.updateFieldsFn = func(_ context.Context, id uint, f map[string]any) error {
			assert.Equal(t, uint(7), id)
			fields = f
			return nil
		}
		svc, issuer := newAuthService(repo, nil)

		session, err := svc.Login(context.Background(), LoginInput{Username: "nobody", Email: "alice@x.com", Password: "secret1", IP: "1.2.3.4"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"user_ip": "1.2.3.4"}, fields)
		assert.Equal(t, []string{"GetByUsername", "GetByEmail", "UpdateFields"}, repo.calls)

		claims, err := issuer.ParseAccess(session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "7", claims.UserInfo.UserID)
	})
}

func TestAuthService_AccessLogin(t *testing.T) {
	t.Parallel()

	u := &models.User{ID: 5, Username: "bob", Email: "b@x.com", Role: models.RoleUser, TokenVersion: 1}

	t.Run("valid token re-issues session", func(t *testing.T) {
		t.Parallel()
		svc, issuer := newAuthService(noopUserRepo().withUsers(u), nil)
		token, err := issuer.IssueAccess(u)
		require.NoError(t, err)

		session, err := svc.AccessLogin(context.Background(), token, "")
		require.NoError(t, err)
		assert.NotEmpty(t, session.RefreshToken)
	})

	t.Run("stale token version", func(t *testing.T) {
		t.Parallel()
		svc, issuer := newAuthService(noopUserRepo().withUsers(u), nil)
		old := *u
		old.TokenVersion = 0
		token, err := issuer.IssueAccess(&old)
		require.NoError(t, err)

		_, err = svc.AccessLogin(context.Background(), token, "")
		appErr := assertAppError(t, err, models.CodeUnauthorized)
		assert.Equal(t, "Authentication failed", appErr.Message)
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthService(noopUserRepo(), nil)
		_, err := svc.AccessLogin(context.Background(), "not-a-jwt", "")
		assertUnauthorizedError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthService(noopUserRepo(), nil)
		_, err := svc.AccessLogin(context.Background(), "", "")
		assertValidationError(t, err)
	})
}

func googleToken(t *testing.T, sub, email, name string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":            sub,
		"email":          email,
		"name":           name,
		"picture":        "https://example.com/p.png",
		"email_verified": true,
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	// Google signs with RS256; the payload is read without verification, so
	// any signature will do.
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unused"))
	require.NoError(t, err)
	return raw
}

func TestAuthService_GoogleLogin(t *testing.T) {
	t.Parallel()

	t.Run("existing google account", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByGoogleIDFn = func(_ context.Context, sub string) (*models.User, error) {
			assert.Equal(t, "g-1", sub)
			return &models.User{ID: 3, Username: "gina", Email: "g@x.com"}, nil
		}
		svc, _ := newAuthService(repo, nil)
		session, err := svc.GoogleLogin(context.Background(), googleToken(t, "g-1", "g@x.com", "Gina"), "")
		require.NoError(t, err)
		assert.Equal(t, uint(3), session.User.ID)
	})

	t.Run("links by email", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByEmailFn = func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 4, Username: "gina", Email: "g@x.com"}, nil
		}
		var updated *models.User
		repo.updateFn = func(_ context.Context, u *models.User) error {
			updated = u
			return nil
		}
		svc, _ := newAuthService(repo, nil)
		_, err := svc.GoogleLogin(context.Background(), googleToken(t, "g-2", "G@X.com", "Gina"), "")
		require.NoError(t, err)
		require.NotNil(t, updated)
		require.NotNil(t, updated.GoogleID)
		assert.Equal(t, "g-2", *updated.GoogleID)
		assert.Equal(t, "https://example.com/p.png", updated.Avatar)
		assert.True(t, updated.IsActivated)
	})

	t.Run("creates account with unique username", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByUsernameFn = func(_ context.Context, name string) (*models.User, error) {
			if name == "gina_lee" {
				return &models.User{ID: 1}, nil
			}
			return nil, nil
		}
		var created *models.User
		repo.createFn = func(_ context.Context, u *models.User) error {
			u.ID = 8
			created = u
			return nil
		}
		svc, _ := newAuthService(repo, nil)
		_, err := svc.GoogleLogin(context.Background(), googleToken(t, "g-3", "gina@x.com", "Gina Lee"), "9.9.9.9")
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.True(t, strings.HasPrefix(created.Username, "gina_lee_"), created.Username)
		assert.Empty(t, created.Password)
		assert.Equal(t, "gina@x.com", created.Email)
		assert.Equal(t, "9.9.9.9", created.UserIP)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthService(noopUserRepo(), nil)
		_, err := svc.GoogleLogin(context.Background(), "abc.def", "")
		assertUnauthorizedError(t, err)
	})
}

func TestAuthService_ForgotPassword(t *testing.T) {
	t.Parallel()

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthService(noopUserRepo(), nil)
		err := svc.ForgotPassword(context.Background(), "ghost@x.com")
		appErr := assertAppError(t, err, models.CodeNotFound)
		assert.Equal(t, "User not found", appErr.Message)
	})

	t.Run("sends reset link", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByEmailFn = func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 6, Username: "carol", Email: "c@x.com"}, nil
		}
		mail := &mailerStub{}
		svc, issuer := newAuthService(repo, mail)

		require.NoError(t, svc.ForgotPassword(context.Background(), "c@x.com"))
		msgs := mail.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "c@x.com", msgs[0].To)
		assert.Equal(t, mailer.TemplateResetPassword, msgs[0].Template)

		link, _ := msgs[0].Data["link"].(string)
		token, ok := strings.CutPrefix(link, "http://localhost:3000/reset-password?t=")
		require.True(t, ok, link)
		claims, err := issuer.ParsePurpose(token, auth.PurposeReset)
		require.NoError(t, err)
		assert.Equal(t, "6", claims.UserInfo.UserID)
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	t.Parallel()

	u := &models.User{ID: 6, Username: "carol", Email: "c@x.com", TokenVersion: 2}

	t.Run("stores new password and bumps version", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo().withUsers(u)
		var storedHash string
		repo.setPasswordFn = func(_ context.Context, id uint, hash string) (*models.User, error) {
			storedHash = hash
			next := *u
			next.Password = hash
			next.TokenVersion = u.TokenVersion + 1
			return &next, nil
		}
		svc, issuer := newAuthService(repo, nil)
		token, err := issuer.IssuePurpose(u, auth.PurposeReset)
		require.NoError(t, err)

		session, err := svc.ResetPassword(context.Background(), ResetPasswordInput{Token: token, Password: "newsecret"})
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("newsecret")))

		claims, err := issuer.ParseAccess(session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, 3, claims.TokenVersion)
	})

	t.Run("token already redeemed", func(t *testing.T) {
		t.Parallel()
		svc, issuer := newAuthService(noopUserRepo().withUsers(u), nil)
		old := *u
		old.TokenVersion = 1
		token, err := issuer.IssuePurpose(&old, auth.PurposeReset)
		require.NoError(t, err)

		_, err = svc.ResetPassword(context.Background(), ResetPasswordInput{Token: token, Password: "newsecret"})
		assertUnauthorizedError(t, err)
	})

	t.Run("activation token is not a reset token", func(t *testing.T) {
		t.Parallel()
		svc, issuer := newAuthService(noopUserRepo().withUsers(u), nil)
		token, err := issuer.IssuePurpose(u, auth.PurposeActivation)
		require.NoError(t, err)

		_, err = svc.ResetPassword(context.Background(), ResetPasswordInput{Token: token, Password: "newsecret"})
		assertUnauthorizedError(t, err)
	})
}
