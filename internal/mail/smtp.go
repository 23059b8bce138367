package mail

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/storefront-auth/internal/infrastructure/config"
)

// implicitTLSPort is the SMTPS port; every other port uses STARTTLS when
// the server offers it.
const implicitTLSPort = 465

// SMTPMailer sends verification codes through an SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	subject  string

	// dial is replaced in tests.
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewSMTPMailer creates an SMTPMailer from the mail configuration.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if cfg.SMTP.Host == "" || cfg.SMTP.Port == 0 {
		return nil, errors.New("mail: smtp host and port are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.SMTP.Username
	}
	if from == "" {
		return nil, errors.New("mail: a from address is required")
	}

	m := &SMTPMailer{
		host:     cfg.SMTP.Host,
		port:     cfg.SMTP.Port,
		username: cfg.SMTP.Username,
		password: cfg.SMTP.Password,
		from:     from,
		fromName: cfg.FromName,
		subject:  cfg.Subject,
	}
	var d net.Dialer
	m.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}
	return m, nil
}

// SendVerificationCode implements auth.Mailer.
func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	msg, err := m.buildMessage(to, code)
	if err != nil {
		return err
	}
	if err := m.send(ctx, to, msg); err != nil {
		return fmt.Errorf("sending verification mail: %w", err)
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	conn, err := m.dial(ctx, addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		//nolint:errcheck // best effort; the write fails loudly if the conn is gone
		conn.SetDeadline(deadline)
	}
	if m.port == implicitTLSPort {
		conn = tls.Client(conn, &tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12})
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if m.port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}); err != nil {
				return err
			}
		}
	}
	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return err
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

var htmlBody = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<p>Use the code below to verify your email address.</p>
<p style="font-size: 24px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
<p>This code expires in 2 minutes. If you did not request it, ignore this email.</p>
</body>
</html>
`))

// buildMessage renders a multipart/alternative message with a text and an
// HTML part.
func (m *SMTPMailer) buildMessage(to, code string) ([]byte, error) {
	if strings.ContainsAny(to, "\r\n") {
		return nil, errors.New("mail: invalid recipient")
	}

	var html strings.Builder
	if err := htmlBody.Execute(&html, struct{ Code string }{code}); err != nil {
		return nil, fmt.Errorf("rendering verification mail: %w", err)
	}

	boundaryBytes := make([]byte, 12)
	if _, err := rand.Read(boundaryBytes); err != nil {
		return nil, fmt.Errorf("generating mime boundary: %w", err)
	}
	boundary := "storefront-" + hex.EncodeToString(boundaryBytes)

	fromHeader := m.from
	if m.fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}

	var sb strings.Builder
	sb.WriteString("From: " + fromHeader + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + m.subject + "\r\n")
	sb.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n")
	sb.WriteString("\r\n")

	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	sb.WriteString("Your verification code is " + code + ".\r\n")
	sb.WriteString("It expires in 2 minutes.\r\n\r\n")

	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	sb.WriteString(strings.ReplaceAll(html.String(), "\n", "\r\n"))
	sb.WriteString("\r\n--" + boundary + "--\r\n")

	return []byte(sb.String()), nil
}
