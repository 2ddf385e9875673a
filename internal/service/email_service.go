package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/sportfabrik/bonuscard/internal/config"
	"github.com/sportfabrik/bonuscard/internal/logger"

	"github.com/google/uuid"
)

// OutboundEmail is a fully rendered message ready for transport.
type OutboundEmail struct {
	To       string
	Subject  string
	BodyText string
	BodyHTML string
}

// Mailer delivers rendered emails. Implementations are injected into
// the delivery worker and the health check.
type Mailer interface {
	Send(email OutboundEmail) (messageID string, err error)
	Verify() error
}

// NewMailer selects the transport for the given configuration. Dry-run
// mode logs instead of dialing, which is the development default.
func NewMailer(cfg *config.EmailConfig) Mailer {
	if cfg != nil && cfg.DryRun {
		return &DryRunMailer{}
	}
	return NewSMTPMailer(cfg)
}

// DryRunMailer fabricates message ids without touching the network.
type DryRunMailer struct{}

// Send logs the message and returns a synthetic id.
func (m *DryRunMailer) Send(email OutboundEmail) (string, error) {
	messageID := fmt.Sprintf("dry-run-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
	logger.Infow("email_dry_run",
		"to", email.To,
		"subject", email.Subject,
		"message_id", messageID,
	)
	return messageID, nil
}

// Verify always succeeds for the dry-run transport.
func (m *DryRunMailer) Verify() error {
	return nil
}

// SMTPMailer sends mail over SMTP with SSL, StartTLS or plain
// connections per configuration.
type SMTPMailer struct {
	cfg *config.EmailConfig
}

// NewSMTPMailer creates an SMTP transport.
func NewSMTPMailer(cfg *config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one message and returns the generated Message-ID.
func (m *SMTPMailer) Send(email OutboundEmail) (string, error) {
	if m.cfg == nil || !m.cfg.Enabled {
		return "", ErrEmailServiceDisabled
	}
	if m.cfg.Host == "" || m.cfg.Port == 0 || m.cfg.From == "" {
		return "", ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(email.To); err != nil {
		return "", ErrInvalidEmail
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host)
	from := buildFromAddress(m.cfg.From, m.cfg.FromName)
	msg := buildEmailMessage(from, email.To, email.Subject, messageID, email.BodyText, email.BodyHTML)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" || m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var err error
	switch {
	case m.cfg.UseSSL:
		err = sendMailWithSSL(addr, auth, m.cfg.Host, m.cfg.From, []string{email.To}, []byte(msg))
	case m.cfg.UseTLS:
		err = sendMailWithStartTLS(addr, auth, m.cfg.Host, m.cfg.From, []string{email.To}, []byte(msg))
	default:
		err = sendMailPlain(addr, auth, m.cfg.Host, m.cfg.From, []string{email.To}, []byte(msg))
	}
	if err != nil {
		return "", normalizeEmailSendError(err)
	}
	return messageID, nil
}

// Verify opens and closes a connection to the configured server.
func (m *SMTPMailer) Verify() error {
	if m.cfg == nil || !m.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if m.cfg.Host == "" || m.cfg.Port == 0 {
		return ErrEmailServiceNotConfigured
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if m.cfg.UseSSL {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
		if err != nil {
			return err
		}
		defer conn.Close()
		client, err := smtp.NewClient(conn, m.cfg.Host)
		if err != nil {
			return err
		}
		return client.Quit()
	}
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()
	if m.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return err
		}
	}
	return client.Quit()
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

// buildEmailMessage assembles a multipart/alternative MIME message, or
// a plain text one when no HTML body is present.
func buildEmailMessage(from, to, subject, messageID, bodyText, bodyHTML string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if strings.TrimSpace(bodyHTML) == "" {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(bodyText)
		return buf.String()
	}

	boundary := strings.ReplaceAll(uuid.NewString(), "-", "")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	buf.WriteString("\r\n")
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(bodyText)
	buf.WriteString("\r\n")
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(bodyHTML)
	buf.WriteString("\r\n")
	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return buf.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return ErrEmailRecipientRejected
	}
	return err
}

// isEmailRecipientRejected matches the server messages that mean the
// mailbox does not exist, so retries are pointless.
func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	directKeywords := []string{
		"no such recipient",
		"no such user",
		"recipient not found",
		"recipient address rejected",
		"invalid recipient",
		"user unknown",
		"unknown user",
		"unknown mailbox",
		"mailbox unavailable",
	}
	for _, keyword := range directKeywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		hints := []string{"recipient", "user", "mailbox", "address", "rcpt"}
		for _, hint := range hints {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
