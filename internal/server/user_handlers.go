package server

import (
	"alvacus/internal/models"
	"alvacus/internal/repository"
	"alvacus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/user
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param search query string false "Username filter"
// @Success 200 {object} object{users=[]models.PublicProfile,totalPages=int,count=int,currentPage=int}
// @Router /user [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page, err := s.userService.ListUsers(c.UserContext(), listQuery(c))
	if err != nil {
		return respond(c, err)
	}
	profiles := make([]models.PublicProfile, 0, len(page.Items))
	for i := range page.Items {
		profiles = append(profiles, page.Items[i].ToPublicProfile(nil))
	}
	return c.JSON(pageResponse("users", models.Page[models.PublicProfile]{
		Items:       profiles,
		Count:       page.Count,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
	}))
}

// GetUserProfile handles GET /api/user/:userId
// @Summary Public profile
// @Tags users
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} models.PublicProfile
// @Failure 401 {object} models.ErrorResponse
// @Router /user/{userId} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// GetUserActivity handles GET /api/user/:userId/comments
// @Summary User comment activity
// @Description Hidden unless the caller owns the account, is an admin, or the user enabled showComments.
// @Tags users
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} models.UserActivity
// @Failure 401 {object} models.ErrorResponse
// @Router /user/{userId}/comments [get]
func (s *Server) GetUserActivity(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	activity, err := s.userService.Activity(c.UserContext(), principal(c), userID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(activity)
}

// UpdateProfile handles PUT /api/user/edit/:userId
// @Summary Edit profile
// @Tags users
// @Accept json
// @Produce json
// @Param userId path int true "User ID"
// @Param request body object{username=string,email=string,avatar=string,profession=string,company=string} true "Profile fields"
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /user/edit/{userId} [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Avatar     string `json:"avatar"`
		Profession string `json:"profession"`
		Company    string `json:"company"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sess, err := s.userService.UpdateProfile(c.UserContext(), principal(c), service.UpdateProfileInput{
		UserID:     userID,
		Username:   req.Username,
		Email:      req.Email,
		Avatar:     req.Avatar,
		Profession: req.Profession,
		Company:    req.Company,
	})
	if err != nil {
		return respond(c, err)
	}
	return s.setSession(c, fiber.StatusOK, sess)
}

// ChangePassword handles PUT /api/user/change-password/:userId
// @Summary Change password
// @Description Re-issues the session. Every token issued before the change stops verifying.
// @Tags users
// @Accept json
// @Produce json
// @Param userId path int true "User ID"
// @Param request body object{oldPassword=string,password=string} true "Passwords"
// @Success 200 {object} object{accessToken=string,maxAge=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /user/change-password/{userId} [put]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req struct {
		OldPassword string `json:"oldPassword"`
		Password    string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sess, err := s.userService.ChangePassword(c.UserContext(), principal(c), service.ChangePasswordInput{
		UserID:      userID,
		OldPassword: req.OldPassword,
		Password:    req.Password,
	})
	if err != nil {
		return respond(c, err)
	}
	return s.setSession(c, fiber.StatusOK, sess)
}

// ChangePrivacy handles PUT /api/user/change-privacy/:userId
// @Summary Change privacy settings
// @Tags users
// @Accept json
// @Produce json
// @Param userId path int true "User ID"
// @Param request body object{privacySetting=models.PrivacySettings} true "Privacy settings"
// @Success 200 {object} object{privacySettings=models.PrivacySettings}
// @Failure 401 {object} models.ErrorResponse
// @Router /user/change-privacy/{userId} [put]
func (s *Server) ChangePrivacy(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req struct {
		PrivacySetting *models.PrivacySettings `json:"privacySetting"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	if req.PrivacySetting == nil {
		return respond(c, models.NewValidationError("All fields are required"))
	}

	settings, err := s.userService.ChangePrivacy(c.UserContext(), principal(c), userID, *req.PrivacySetting)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"privacySettings": settings})
}

// ResendActivation handles POST /api/user/activation/resend
// @Summary Resend the activation email
// @Tags users
// @Produce json
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /user/activation/resend [post]
func (s *Server) ResendActivation(c *fiber.Ctx) error {
	if err := s.userService.SendActivation(c.UserContext(), principal(c)); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Email sent"})
}

// Activate handles PUT /api/user/activation/:t
// @Summary Activate an account
// @Description t may be the raw token or "t=<token>".
// @Tags users
// @Produce json
// @Param t path string true "Activation token"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /user/activation/{t} [put]
func (s *Server) Activate(c *fiber.Ctx) error {
	if err := s.userService.Activate(c.UserContext(), c.Params("t")); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Account activated"})
}

// DeleteUser handles DELETE /api/user/delete/:userId
// @Summary Delete a user
// @Description Self or admin. deleteCalculators and deleteComments cascade authored content.
// @Tags users
// @Produce json
// @Param userId path int true "User ID"
// @Param deleteCalculators query bool false "Remove authored calculators"
// @Param deleteComments query bool false "Remove authored comments"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /user/delete/{userId} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	p := principal(c)
	opts := repository.DeleteUserOptions{
		Calculators: c.QueryBool("deleteCalculators"),
		Comments:    c.QueryBool("deleteComments"),
	}
	if err := s.userService.DeleteUser(c.UserContext(), p, userID, opts); err != nil {
		return respond(c, err)
	}
	if p.UserID == userID {
		s.clearSession(c)
	}
	return c.JSON(fiber.Map{"message": "User removed"})
}

// Follow handles POST /api/user/:userId/follow
// @Summary Follow a user
// @Tags users
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /user/{userId}/follow [post]
func (s *Server) Follow(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.userService.Follow(c.UserContext(), principal(c), userID); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Followed"})
}

// Unfollow handles POST /api/user/:userId/unfollow
// @Summary Unfollow a user
// @Tags users
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /user/{userId}/unfollow [post]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.userService.Unfollow(c.UserContext(), principal(c), userID); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Unfollowed"})
}

// GetNotifications handles GET /api/user/notifications
// @Summary Own notifications
// @Tags users
// @Produce json
// @Success 200 {object} object{notifications=[]models.Notification}
// @Router /user/notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	list, err := s.userService.Notifications(c.UserContext(), principal(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"notifications": list})
}

// MarkNotificationsRead handles PUT /api/user/notifications/read
// @Summary Mark all own notifications read
// @Tags users
// @Produce json
// @Success 200 {object} object{updated=int}
// @Router /user/notifications/read [put]
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	n, err := s.userService.MarkNotificationsRead(c.UserContext(), principal(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
