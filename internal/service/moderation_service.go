package service

import (
	"context"
	"strings"

	"alvacus/internal/auth"
	"alvacus/internal/mailer"
	"alvacus/internal/models"
	"alvacus/internal/observability"
	"alvacus/internal/repository"
)

// ModerationService handles reports and contact messages, and the admin
// queues that review them.
type ModerationService struct {
	reports    repository.ReportRepository
	contacts   repository.ContactRepository
	users      repository.UserRepository
	mail       mailer.Mailer
	adminEmail string
}

func NewModerationService(
	reports repository.ReportRepository,
	contacts repository.ContactRepository,
	users repository.UserRepository,
	mail mailer.Mailer,
	adminEmail string,
) *ModerationService {
	return &ModerationService{
		reports:    reports,
		contacts:   contacts,
		users:      users,
		mail:       mail,
		adminEmail: adminEmail,
	}
}

type ReportInput struct {
	Username        string
	Email           string
	Subject         string
	Message         string
	Title           string
	CalculatorTitle string
	CalculatorID    string
}

type CommentReportInput struct {
	Username       string
	Email          string
	Title          string
	CalculatorID   string
	CommentID      string
	CommentContent string
	ReportReasons  []string
}

type ContactInput struct {
	Username string
	Email    string
	Subject  string
	Message  string
}

func orAnonymous(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return models.Anonymous
	}
	return s
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// adminRecipients is ADMIN_EMAIL when configured, otherwise every admin
// account.
func (s *ModerationService) adminRecipients(ctx context.Context) []string {
	if s.adminEmail != "" {
		return []string{s.adminEmail}
	}
	admins, err := s.users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "list_admins", err, nil)
		return nil
	}
	emails := make([]string, 0, len(admins))
	for _, a := range admins {
		emails = append(emails, a.Email)
	}
	return emails
}

// notifyAdmins emails every admin recipient. Failures are logged only.
func (s *ModerationService) notifyAdmins(ctx context.Context, subject, template string, data map[string]any) {
	for _, to := range s.adminRecipients(ctx) {
		data["receiver"] = "Admin"
		msg := mailer.Message{To: to, Subject: subject, Template: template, Data: data}
		if err := s.mail.Send(ctx, msg); err != nil {
			observability.LogAsyncOperationError(ctx, "admin_email", err, map[string]any{"template": template})
		}
	}
}

func (s *ModerationService) SubmitReport(ctx context.Context, in ReportInput) (*models.Report, error) {
	if blank(in.Subject, in.Message, in.Title) {
		return nil, models.NewValidationError("All fields are required")
	}
	report := &models.Report{
		Username:        orAnonymous(in.Username),
		Email:           orAnonymous(in.Email),
		Subject:         in.Subject,
		Message:         in.Message,
		Title:           in.Title,
		CalculatorTitle: in.CalculatorTitle,
		CalculatorID:    orAnonymous(in.CalculatorID),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, "Alvacus report", mailer.TemplateReport, map[string]any{
		"calculatorTitle":  report.Title,
		"calculatorId":     report.CalculatorID,
		"reporterUsername": report.Username,
		"reporterEmail":    report.Email,
		"subject":          report.Subject,
		"message":          report.Message,
	})
	return report, nil
}

func (s *ModerationService) SubmitCommentReport(ctx context.Context, in CommentReportInput) (*models.Report, error) {
	if len(in.ReportReasons) == 0 || blank(in.CommentContent, in.Title) {
		return nil, models.NewValidationError("All fields are required")
	}
	report := &models.Report{
		Username:             orAnonymous(in.Username),
		Email:                orAnonymous(in.Email),
		Title:                in.Title,
		CalculatorID:         orAnonymous(in.CalculatorID),
		CommentID:            orAnonymous(in.CommentID),
		CommentContent:       in.CommentContent,
		CommentReportReasons: in.ReportReasons,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, "Alvacus comment report", mailer.TemplateCommentReport, map[string]any{
		"calculatorTitle":  report.Title,
		"commentId":        report.CommentID,
		"commentContent":   report.CommentContent,
		"reporterUsername": report.Username,
		"reporterEmail":    report.Email,
		"reportReasons":    report.CommentReportReasons,
	})
	return report, nil
}

func (s *ModerationService) SubmitContact(ctx context.Context, in ContactInput) (*models.Contact, error) {
	if blank(in.Username, in.Email, in.Subject, in.Message) {
		return nil, models.NewValidationError("All fields are required")
	}
	contact := &models.Contact{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.TrimSpace(in.Email),
		Subject:  in.Subject,
		Message:  in.Message,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, "Alvacus contact", mailer.TemplateContact, map[string]any{
		"username": contact.Username,
		"email":    contact.Email,
		"subject":  contact.Subject,
		"message":  contact.Message,
	})
	return contact, nil
}

func (s *ModerationService) guard(p *auth.Principal, kind auth.Kind, action auth.Action) error {
	if !auth.Can(p, action, auth.ModerationResource(kind)) {
		return unauthorized()
	}
	return nil
}

func (s *ModerationService) ListReports(ctx context.Context, p *auth.Principal, seen bool, q repository.ListQuery) (models.Page[models.Report], error) {
	if err := s.guard(p, auth.KindReport, auth.ActionRead); err != nil {
		return models.Page[models.Report]{}, err
	}
	q = q.Normalized()
	reports, count, err := s.reports.List(ctx, seen, q)
	if err != nil {
		return models.Page[models.Report]{}, err
	}
	return models.NewPage(reports, count, q.Page, q.Limit), nil
}

func (s *ModerationService) SetReportSeen(ctx context.Context, p *auth.Principal, id uint, seen bool) (*models.Report, error) {
	if err := s.guard(p, auth.KindReport, auth.ActionUpdate); err != nil {
		return nil, err
	}
	return s.reports.SetSeen(ctx, id, seen)
}

func (s *ModerationService) DeleteReport(ctx context.Context, p *auth.Principal, id uint) error {
	if err := s.guard(p, auth.KindReport, auth.ActionDelete); err != nil {
		return err
	}
	return s.reports.Delete(ctx, id)
}

func (s *ModerationService) ListContacts(ctx context.Context, p *auth.Principal, seen bool, q repository.ListQuery) (models.Page[models.Contact], error) {
	if err := s.guard(p, auth.KindContact, auth.ActionRead); err != nil {
		return models.Page[models.Contact]{}, err
	}
	q = q.Normalized()
	contacts, count, err := s.contacts.List(ctx, seen, q)
	if err != nil {
		return models.Page[models.Contact]{}, err
	}
	return models.NewPage(contacts, count, q.Page, q.Limit), nil
}

func (s *ModerationService) SetContactSeen(ctx context.Context, p *auth.Principal, id uint, seen bool) (*models.Contact, error) {
	if err := s.guard(p, auth.KindContact, auth.ActionUpdate); err != nil {
		return nil, err
	}
	return s.contacts.SetSeen(ctx, id, seen)
}

func (s *ModerationService) DeleteContact(ctx context.Context, p *auth.Principal, id uint) error {
	if err := s.guard(p, auth.KindContact, auth.ActionDelete); err != nil {
		return err
	}
	return s.contacts.Delete(ctx, id)
}
