// Package mailer renders the HTML email templates and delivers them over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"alvacus/internal/config"
	"alvacus/internal/middleware"
	"alvacus/internal/observability"

	"github.com/wneessen/go-mail"
)

// Template names.
const (
	TemplateActivation    = "activation.html"
	TemplateResetPassword = "reset-password.html"
	TemplateReport        = "report.html"
	TemplateCommentReport = "comment-report.html"
	TemplateContact       = "contact.html"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Message is one outgoing email.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Render executes the named template with data.
func Render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// New returns an SMTP mailer, or a logging mailer when SMTP_HOST is empty.
func New(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return &logMailer{}
	}
	return &smtpMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
}

type smtpMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	body, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, body)

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		observability.MailDeliveries.WithLabelValues(msg.Template, "error").Inc()
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		observability.MailDeliveries.WithLabelValues(msg.Template, "error").Inc()
		return fmt.Errorf("send %s: %w", msg.Template, err)
	}

	observability.MailDeliveries.WithLabelValues(msg.Template, "sent").Inc()
	return nil
}

type logMailer struct{}

func (logMailer) Send(ctx context.Context, msg Message) error {
	if _, err := Render(msg.Template, msg.Data); err != nil {
		return err
	}
	observability.MailDeliveries.WithLabelValues(msg.Template, "dropped").Inc()
	middleware.Logger.InfoContext(ctx, "SMTP not configured, email dropped",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.Template),
	)
	return nil
}
