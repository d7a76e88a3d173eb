// Package smtp delivers scheduled email to an SMTP relay using go-mail.
package smtp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/iuprojects/lcnotes/internal/services/mailer/domain"
)

const (
	headerMessageID = mail.Header("X-Lcnotes-Message-Id")
	headerTriggerID = mail.Header("X-Lcnotes-Trigger-Id")
)

// TLS policy names accepted in configuration.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// Config describes the SMTP relay.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSPolicy string
	Timeout   time.Duration
}

type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Sender sends each message over a fresh SMTP session.
type Sender struct {
	client dialer
}

// New builds a go-mail client for cfg. Credentials enable PLAIN auth.
func New(cfg Config) (*Sender, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	policy, err := parseTLSPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{mail.WithTLSPortPolicy(policy)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if username := strings.TrimSpace(cfg.Username); username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return NewWithDialer(client), nil
}

// NewWithDialer wraps an existing go-mail client.
func NewWithDialer(client dialer) *Sender {
	return &Sender{client: client}
}

// Name implements domain.Sender.
func (s *Sender) Name() string { return "smtp" }

// Send implements domain.Sender. Address errors are permanent; relay and
// network failures are not.
func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	if s == nil || s.client == nil {
		return domain.ErrSenderNotConfigured
	}
	m, err := BuildMsg(msg)
	if err != nil {
		return domain.Permanent(err)
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// BuildMsg converts a domain message into a plain-text go-mail message.
func BuildMsg(msg domain.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	if msg.ID != "" {
		m.SetGenHeader(headerMessageID, msg.ID)
	}
	if msg.TriggerID != "" {
		m.SetGenHeader(headerTriggerID, msg.TriggerID)
	}
	m.SetBodyString(mail.TypeTextPlain, msg.BodyText)
	return m, nil
}

func parseTLSPolicy(raw string) (mail.TLSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", TLSMandatory:
		return mail.TLSMandatory, nil
	case TLSOpportunistic:
		return mail.TLSOpportunistic, nil
	case TLSNone:
		return mail.NoTLS, nil
	default:
		return mail.TLSMandatory, fmt.Errorf("unknown smtp tls policy %q", raw)
	}
}
