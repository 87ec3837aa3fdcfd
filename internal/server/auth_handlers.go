package server

import (
	"alvacus/internal/auth"
	"alvacus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with username or email and password. The refresh token is set in the jwt cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Login credentials"
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sess, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IP:       c.IP(),
	})
	if err != nil {
		return respond(c, err)
	}
	return s.setSession(c, fiber.StatusOK, sess)
}

// AccessLogin handles POST /api/auth/access
// @Summary Sign in with an access token
// @Description Exchange a still-valid access token for a fresh session.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{userToken=string} true "Access token"
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/access [post]
func (s *Server) AccessLogin(c *fiber.Ctx) error {
	var req struct {
		UserToken string `json:"userToken"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sess, err := s.authService.AccessLogin(c.UserContext(), req.UserToken, c.IP())
	if err != nil {
		return respond(c, err)
	}
	return s.setSession(c, fiber.StatusOK, sess)
}

// GoogleLogin handles POST /api/auth/googleLogin
// @Summary Sign in with Google
// @Description Sign in or register with a Google ID token.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{google_id_token=string} true "Google ID token"
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/googleLogin [post]
func (s *Server) GoogleLogin(c *fiber.Ctx) error {
	var req struct {
		IDToken string `json:"google_id_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sess, err := s.authService.GoogleLogin(c.UserContext(), req.IDToken, c.IP())
	if err != nil {
		return respond(c, err)
	}
	return s.setSession(c, fiber.StatusOK, sess)
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create a local account and sign it in.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Registration"
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 423 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sess, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IP:       c.IP(),
	})
	if err != nil {
		return respond(c, err)
	}
	return s.setSession(c, fiber.StatusOK, sess)
}

// Refresh handles GET /api/auth/refresh
// @Summary Refresh the access token
// @Description Mint a new access token from the jwt cookie. The refresh token itself is kept.
// @Tags auth
// @Produce json
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [get]
func (s *Server) Refresh(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user, err := s.userRepo.GetByID(ctx, principal(c).UserID)
	if err != nil {
		return respond(c, err)
	}
	token, err := s.authService.Refresh(ctx, user, c.IP())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"accessToken": token,
		"maxAge":      s.refreshExpiry(c),
	})
}

// refreshExpiry is the cookie's expiry in unix milliseconds, read back from
// the refresh token the gate already verified.
func (s *Server) refreshExpiry(c *fiber.Ctx) int64 {
	claims, err := s.tokens.ParseRefresh(c.Cookies(sessionCookie))
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.UnixMilli()
}

// Logout handles POST /api/auth/logout
// @Summary Log out
// @Description Revoke the refresh token and clear the jwt cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	raw := c.Cookies(sessionCookie)
	if raw == "" {
		return c.SendStatus(fiber.StatusNoContent)
	}

	ctx := c.UserContext()
	if claims, err := s.tokens.ParseRefresh(raw); err == nil && claims.ExpiresAt != nil {
		if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return respond(c, err)
		}
	}
	s.clearSession(c)
	return c.JSON(fiber.Map{"message": "Cookie cleared"})
}

// ForgotPassword handles POST /api/auth/forgot-password
// @Summary Request a password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Account email"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/forgot-password [post]
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	if err := s.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Email sent"})
}

// ResetPassword handles PUT /api/auth/reset-password
// @Summary Reset the password
// @Description Redeem a reset token and sign in with the new password.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{password=string,t=string} true "Reset token and new password"
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/reset-password [put]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
		Token    string `json:"t"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sess, err := s.authService.ResetPassword(c.UserContext(), service.ResetPasswordInput{
		Token:    req.Token,
		Password: req.Password,
		IP:       c.IP(),
	})
	if err != nil {
		return respond(c, err)
	}
	return s.setSession(c, fiber.StatusOK, sess)
}

// Me handles GET /api/auth/me
// @Summary Current principal
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{userId=string,role=string,profile=auth.UserInfo}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	p := principal(c)
	return c.JSON(fiber.Map{
		"userId":  auth.FormatID(p.UserID),
		"role":    p.Role,
		"profile": p.Profile,
	})
}
