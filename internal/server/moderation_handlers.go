package server

import (
	"strconv"

	"alvacus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// looseID renders an identifier that clients send either as a JSON string
// or a number.
func looseID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// SubmitReport handles POST /api/report/submit
// @Summary Report a calculator
// @Description Blank reporter fields default to Anonymous. Admins are emailed on a best-effort basis.
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,subject=string,message=string,title=string,calculatorTitle=string,calculatorId=string} true "Report"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /report/submit [post]
func (s *Server) SubmitReport(c *fiber.Ctx) error {
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Subject         string `json:"subject"`
		Message         string `json:"message"`
		Title           string `json:"title"`
		CalculatorTitle string `json:"calculatorTitle"`
		CalculatorID    any    `json:"calculatorId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	_, err := s.moderationService.SubmitReport(c.UserContext(), service.ReportInput{
		Username:        req.Username,
		Email:           req.Email,
		Subject:         req.Subject,
		Message:         req.Message,
		Title:           req.Title,
		CalculatorTitle: req.CalculatorTitle,
		CalculatorID:    looseID(req.CalculatorID),
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "success"})
}

// SubmitCommentReport handles POST /api/report/comment-report
// @Summary Report a comment
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,title=string,calculatorId=string,commentId=string,commentContent=string,reportReasons=[]string} true "Report"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /report/comment-report [post]
func (s *Server) SubmitCommentReport(c *fiber.Ctx) error {
	var req struct {
		Username       string   `json:"username"`
		Email          string   `json:"email"`
		Title          string   `json:"title"`
		CalculatorID   any      `json:"calculatorId"`
		CommentID      any      `json:"commentId"`
		CommentContent string   `json:"commentContent"`
		ReportReasons  []string `json:"reportReasons"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	_, err := s.moderationService.SubmitCommentReport(c.UserContext(), service.CommentReportInput{
		Username:       req.Username,
		Email:          req.Email,
		Title:          req.Title,
		CalculatorID:   looseID(req.CalculatorID),
		CommentID:      looseID(req.CommentID),
		CommentContent: req.CommentContent,
		ReportReasons:  req.ReportReasons,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "success"})
}

// listReports handles GET /api/report and GET /api/report/unseen.
func (s *Server) listReports(seen bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := s.moderationService.ListReports(c.UserContext(), principal(c), seen, listQuery(c))
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(pageResponse("reports", page))
	}
}

// UpdateReport handles PATCH /api/report/update/:reportId
// @Summary Mark a report seen or unseen
// @Tags moderation
// @Accept json
// @Produce json
// @Param reportId path int true "Report ID"
// @Param request body object{isReportSeen=bool} true "Status"
// @Success 200 {object} models.Report
// @Failure 401 {object} models.ErrorResponse
// @Router /report/update/{reportId} [patch]
func (s *Server) UpdateReport(c *fiber.Ctx) error {
	id, err := parseID(c, "reportId")
	if err != nil {
		return nil
	}
	var req struct {
		IsReportSeen bool `json:"isReportSeen"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	report, err := s.moderationService.SetReportSeen(c.UserContext(), principal(c), id, req.IsReportSeen)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(report)
}

// DeleteReport handles DELETE /api/report/:reportId
// @Summary Delete a report
// @Tags moderation
// @Produce json
// @Param reportId path int true "Report ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /report/{reportId} [delete]
func (s *Server) DeleteReport(c *fiber.Ctx) error {
	id, err := parseID(c, "reportId")
	if err != nil {
		return nil
	}
	if err := s.moderationService.DeleteReport(c.UserContext(), principal(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Report deleted"})
}

// SubmitContact handles POST /api/contact
// @Summary Send a contact message
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,subject=string,message=string} true "Message"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /contact [post]
func (s *Server) SubmitContact(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Subject  string `json:"subject"`
		Message  string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	_, err := s.moderationService.SubmitContact(c.UserContext(), service.ContactInput{
		Username: req.Username,
		Email:    req.Email,
		Subject:  req.Subject,
		Message:  req.Message,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "success"})
}

// listContacts handles GET /api/contact and GET /api/contact/unseen.
func (s *Server) listContacts(seen bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := s.moderationService.ListContacts(c.UserContext(), principal(c), seen, listQuery(c))
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(pageResponse("contacts", page))
	}
}

// UpdateContact handles PATCH /api/contact/update/:contactId
// @Summary Mark a contact message seen or unseen
// @Tags moderation
// @Accept json
// @Produce json
// @Param contactId path int true "Contact ID"
// @Param request body object{isContactSeen=bool} true "Status"
// @Success 200 {object} models.Contact
// @Failure 401 {object} models.ErrorResponse
// @Router /contact/update/{contactId} [patch]
func (s *Server) UpdateContact(c *fiber.Ctx) error {
	id, err := parseID(c, "contactId")
	if err != nil {
		return nil
	}
	var req struct {
		IsContactSeen bool `json:"isContactSeen"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	contact, err := s.moderationService.SetContactSeen(c.UserContext(), principal(c), id, req.IsContactSeen)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(contact)
}

// DeleteContact handles DELETE /api/contact/:id
// @Summary Delete a contact message
// @Tags moderation
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /contact/{id} [delete]
func (s *Server) DeleteContact(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.moderationService.DeleteContact(c.UserContext(), principal(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Contact deleted"})
}
