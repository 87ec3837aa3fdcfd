package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"alvacus/internal/auth"
	"alvacus/internal/mailer"
	"alvacus/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_TokenSnapshotMatchesStoredUser(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	s := ts.register(t, "Alice")

	claims, err := ts.srv.tokens.ParseAccess(s.Access)
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, ts.db.First(&stored, s.ID).Error)
	assert.Equal(t, auth.SnapshotOf(&stored), claims.UserInfo)
	assert.Equal(t, "alice", claims.UserInfo.Username)
	assert.Equal(t, stored.TokenVersion, claims.TokenVersion)
	assert.Equal(t, "alice", stored.Slug)
	assert.NotEqual(t, "secret1", stored.Password)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       fiber.Map
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing fields",
			body:       fiber.Map{"username": "bob", "password": "secret1"},
			wantStatus: fiber.StatusBadRequest,
			wantError:  "All fields are required",
		},
		{
			name:       "special characters",
			body:       fiber.Map{"username": "bob smith!", "email": "bob@example.com", "password": "secret1"},
			wantStatus: fiber.StatusLocked,
			wantError:  "Special characters is not allowed in username",
		},
		{
			name:       "short password",
			body:       fiber.Map{"username": "bob", "email": "bob@example.com", "password": "123"},
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "password longer than bcrypt accepts",
			body:       fiber.Map{"username": "bob", "email": "bob@example.com", "password": strings.Repeat("p", 80)},
			wantStatus: fiber.StatusBadRequest,
			wantError:  "password must not exceed 72 bytes",
		},
		{
			name:       "invalid email",
			body:       fiber.Map{"username": "bob", "email": "not-an-email", "password": "secret1"},
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			resp, body := ts.do(t, http.MethodPost, "/api/auth/register", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			assert.Zero(t, ts.count(t, &models.User{}, ""), "nothing is written on rejection")
		})
	}
}

func TestRegister_DuplicateIsUnprocessable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.register(t, "alice")

	for _, body := range []fiber.Map{
		{"username": "ALICE", "email": "other@example.com", "password": "secret1"},
		{"username": "alice2", "email": "Alice@Example.com", "password": "secret1"},
	} {
		resp, out := ts.do(t, http.MethodPost, "/api/auth/register", body)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "User already exist", out["error"])
	}
	assert.Equal(t, int64(1), ts.count(t, &models.User{}, ""))
}

func TestRegister_ThenReadPublicProfile(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	s := ts.register(t, "carol")

	resp, me := ts.do(t, http.MethodGet, "/api/auth/me", nil, bearer(s.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	userID, _ := me["userId"].(string)
	assert.Equal(t, auth.FormatID(s.ID), userID)
	assert.Equal(t, models.RoleUser, me["role"])

	resp, profile := ts.do(t, http.MethodGet, "/api/user/"+userID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "carol", profile["username"])
	assert.Equal(t, float64(s.ID), profile["_id"])
	assert.Equal(t, []any{}, profile["followers"])
	assert.NotContains(t, profile, "email")
	assert.NotContains(t, profile, "password")
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.register(t, "dave")

	resp, body := ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"username": "dave", "password": "secret1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessionFrom(t, resp, body)
	assert.Greater(t, body["maxAge"], float64(time.Now().UnixMilli()))

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"email": "dave@example.com", "password": "secret1"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"username": "dave", "password": "wrong-one"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", body["error"])

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"username": "nobody", "password": "secret1"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAccessLogin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	s := ts.register(t, "erin")

	resp, body := ts.do(t, http.MethodPost, "/api/auth/access", fiber.Map{"userToken": s.Access})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessionFrom(t, resp, body)

	resp, body = ts.do(t, http.MethodPost, "/api/auth/access", fiber.Map{"userToken": "garbage"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authentication failed", body["error"])

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/access", fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGoogleLogin_MalformedToken(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodPost, "/api/auth/googleLogin", fiber.Map{"google_id_token": "not.a.jwt"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	s := ts.register(t, "frank")

	t.Run("valid cookie", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodGet, "/api/auth/refresh", nil, cookie(s.Refresh))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		claims, err := ts.srv.tokens.ParseAccess(body["accessToken"].(string))
		require.NoError(t, err)
		assert.Equal(t, "frank", claims.UserInfo.Username)
		assert.Positive(t, body["maxAge"])
	})

	t.Run("missing cookie", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodGet, "/api/auth/refresh", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, msgNoToken, body["error"])
	})

	t.Run("tampered cookie", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodGet, "/api/auth/refresh", nil, cookie(tamper(s.Refresh)))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, msgAuthFailed, body["error"])
	})

	t.Run("expired cookie", func(t *testing.T) {
		cfg := auth.TokenConfigFrom(testConfig())
		cfg.RefreshTTL = -time.Minute
		expired, err := auth.NewTokenIssuer(cfg).IssueRefresh(&models.User{ID: s.ID})
		require.NoError(t, err)

		resp, body := ts.do(t, http.MethodGet, "/api/auth/refresh", nil, cookie(expired))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, msgAuthFailed, body["error"])
	})

	t.Run("access token in cookie", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodGet, "/api/auth/refresh", nil, cookie(s.Access))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, withRedis())
	s := ts.register(t, "gina")

	resp, _ := ts.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/auth/logout", nil, cookie(s.Refresh))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Cookie cleared", body["message"])

	claims, err := ts.srv.tokens.ParseRefresh(s.Refresh)
	require.NoError(t, err)
	assert.True(t, ts.mr.Exists("blacklist:"+claims.ID))

	resp, body = ts.do(t, http.MethodGet, "/api/auth/refresh", nil, cookie(s.Refresh))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, msgAuthFailed, body["error"])
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	s := ts.register(t, "hank")

	resp, body := ts.do(t, http.MethodPost, "/api/auth/forgot-password", fiber.Map{"email": "nobody@example.com"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", body["error"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/forgot-password", fiber.Map{"email": "hank@example.com"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Email sent", body["message"])

	msgs := ts.mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, mailer.TemplateResetPassword, msgs[0].Template)
	link, _ := msgs[0].Data["link"].(string)
	require.True(t, strings.HasPrefix(link, "http://client.test/reset-password?t="), link)
	token := strings.TrimPrefix(link, "http://client.test/reset-password?t=")

	resp, body = ts.do(t, http.MethodPut, "/api/auth/reset-password", fiber.Map{"password": "newsecret", "t": token})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessionFrom(t, resp, body)

	t.Run("tokens issued before the reset stop verifying", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodGet, "/api/auth/me", nil, bearer(s.Access))
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		resp, _ = ts.do(t, http.MethodGet, "/api/auth/refresh", nil, cookie(s.Refresh))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("reset token is single use", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPut, "/api/auth/reset-password", fiber.Map{"password": "another1", "t": token})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"username": "hank", "password": "newsecret"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
