package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/quotedprintable"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Mailer delivers one HTML email and returns the provider's message ID when
// it has one.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// Config selects and configures the delivery provider.
type Config struct {
	Provider string // "smtp" or "resend"

	FromEmail string
	FromName  string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string

	ResendAPIKey  string
	ResendBaseURL string // override for tests; defaults to the public API
}

// New builds the configured Mailer.
func New(cfg Config) (Mailer, error) {
	switch cfg.Provider {
	case "resend":
		base := cfg.ResendBaseURL
		if base == "" {
			base = "https://api.resend.com"
		}
		return &resendMailer{
			baseURL: base,
			apiKey:  cfg.ResendAPIKey,
			from:    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
			http:    &http.Client{Timeout: 30 * time.Second},
		}, nil
	case "smtp", "":
		return &smtpMailer{
			addr:      cfg.SMTPHost + ":" + cfg.SMTPPort,
			host:      cfg.SMTPHost,
			user:      cfg.SMTPUser,
			pass:      cfg.SMTPPass,
			fromEmail: cfg.FromEmail,
			fromName:  cfg.FromName,
		}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

type smtpMailer struct {
	addr      string
	host      string
	user      string
	pass      string
	fromEmail string
	fromName  string
}

// Send implements Mailer over plain SMTP with STARTTLS negotiated by the
// server. net/smtp.SendMail has no context hook, so cancellation only gates
// entry.
func (m *smtpMailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %q <%s>\r\n", m.fromName, m.fromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	msg.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&msg)
	if _, err := qp.Write([]byte(htmlBody)); err != nil {
		return "", fmt.Errorf("encode email body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return "", fmt.Errorf("encode email body: %w", err)
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	if err := smtp.SendMail(m.addr, auth, m.fromEmail, []string{to}, msg.Bytes()); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	log.Debug().Str("to", to).Str("provider", "smtp").Msg("email sent")
	return "", nil
}

type resendMailer struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// Send implements Mailer against a Resend-compatible HTTPS API.
func (m *resendMailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	body, _ := json.Marshal(resendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(resp.Body)
	var parsed resendResponse
	_ = json.Unmarshal(respBytes, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(string(respBytes))
		}
		return "", fmt.Errorf("resend send: status %d: %s", resp.StatusCode, msg)
	}
	if parsed.ID == "" {
		return "", errors.New("resend send: response missing message id")
	}
	log.Debug().Str("to", to).Str("provider", "resend").Str("message_id", parsed.ID).Msg("email sent")
	return parsed.ID, nil
}
