// Package email sends workflow notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

const appName = "Security Risk Assessment"

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// AppURL is the frontend base used for links in messages.
	AppURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email with a plain text fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody, textBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-sra"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// NotificationData feeds the shared notification template.
type NotificationData struct {
	AppName   string
	Heading   string
	Intro     string
	Quote     string
	Link      string
	LinkLabel string
}

func (s *Service) assessmentLink(assessmentID int64) string {
	return fmt.Sprintf("%s/assessments/%d", strings.TrimRight(s.config.AppURL, "/"), assessmentID)
}

func (s *Service) notify(to, subject string, data NotificationData) error {
	data.AppName = appName
	html, err := renderTemplate(notificationTemplate, data)
	if err != nil {
		return fmt.Errorf("render notification template: %w", err)
	}
	text := data.Intro
	if data.Quote != "" {
		text += "\r\n\r\n" + data.Quote
	}
	text += "\r\n\r\n" + data.Link
	return s.SendHTMLEmail([]string{to}, subject, html, text)
}

// NotifyThreadOpened tells the owner an approver asked about a question.
func (s *Service) NotifyThreadOpened(to, title string, assessmentID int64, question, body string) error {
	return s.notify(to, fmt.Sprintf("Clarification requested: %s", title), NotificationData{
		Heading:   "Clarification requested",
		Intro:     fmt.Sprintf("An approver opened a clarification on \"%s\" for %s. You can edit that answer and resubmit.", question, title),
		Quote:     body,
		Link:      s.assessmentLink(assessmentID),
		LinkLabel: "Open assessment",
	})
}

func (s *Service) NotifyComment(to, title string, assessmentID int64, author, body string) error {
	return s.notify(to, fmt.Sprintf("New comment on %s", title), NotificationData{
		Heading:   "New comment",
		Intro:     fmt.Sprintf("%s replied in a clarification thread on %s.", author, title),
		Quote:     body,
		Link:      s.assessmentLink(assessmentID),
		LinkLabel: "View thread",
	})
}

func (s *Service) NotifyStatusChanged(to, title string, assessmentID int64, status string) error {
	label := strings.ReplaceAll(status, "_", " ")
	return s.notify(to, fmt.Sprintf("%s is now %s", title, label), NotificationData{
		Heading:   "Assessment status changed",
		Intro:     fmt.Sprintf("The status of %s changed to %s.", title, label),
		Link:      s.assessmentLink(assessmentID),
		LinkLabel: "Open assessment",
	})
}

// NotifySubmitted tells the approver a screening is waiting for review.
func (s *Service) NotifySubmitted(to, title string, assessmentID int64, owner string) error {
	return s.notify(to, fmt.Sprintf("Review requested: %s", title), NotificationData{
		Heading:   "Review requested",
		Intro:     fmt.Sprintf("%s submitted %s for approval.", owner, title),
		Link:      s.assessmentLink(assessmentID),
		LinkLabel: "Review assessment",
	})
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const notificationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Heading}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .quote { background: #f5f5f5; border-left: 3px solid #0066cc; padding: 12px; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>{{.Heading}}</h2>

    <p>{{.Intro}}</p>
    {{if .Quote}}<div class="quote">{{.Quote}}</div>{{end}}

    <p>
        <a href="{{.Link}}" class="button">{{.LinkLabel}}</a>
    </p>

    <div class="footer">
        <p>You are receiving this because you own or review this assessment.</p>
    </div>
</body>
</html>`
