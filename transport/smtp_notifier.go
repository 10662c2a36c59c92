package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/usufslc/aggie-auth/core"
	"github.com/wneessen/go-mail"
)

const KindSMTP = "smtp"

const (
	DefaultSMTPHost    = "mail.linux.usu.edu"
	DefaultSMTPPort    = 587
	defaultSMTPTimeout = 15 * time.Second
)

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	RequireTLS bool
	Timeout    time.Duration
}

// MailSender is the subset of *mail.Client used to hand messages to a server.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPNotifier struct {
	config SMTPConfig
	sender MailSender
}

// NewSMTPNotifier builds a go-mail client for the configured relay. Plain
// auth is used whenever a username is set.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	cfg = normalizeSMTPConfig(cfg)
	if cfg.From == "" {
		return nil, fmt.Errorf("transport: smtp from address is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.RequireTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: new smtp client: %w", err)
	}
	return NewSMTPNotifierWithSender(cfg, client)
}

func NewSMTPNotifierWithSender(cfg SMTPConfig, sender MailSender) (*SMTPNotifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("transport: smtp sender is required")
	}
	cfg = normalizeSMTPConfig(cfg)
	if cfg.From == "" {
		return nil, fmt.Errorf("transport: smtp from address is required")
	}
	return &SMTPNotifier{config: cfg, sender: sender}, nil
}

func (*SMTPNotifier) Kind() string {
	return KindSMTP
}

func (n *SMTPNotifier) Notify(ctx context.Context, notification core.Notification) (core.DeliveryReceipt, error) {
	if n == nil || n.sender == nil {
		return core.DeliveryReceipt{}, transportError(
			"transport: smtp notifier is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindSMTP},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	msg, messageID, err := n.buildMessage(notification)
	if err != nil {
		return core.DeliveryReceipt{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: build smtp message",
			http.StatusBadRequest,
			map[string]any{"adapter": KindSMTP},
		)
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return core.DeliveryReceipt{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: send smtp message",
			http.StatusBadGateway,
			map[string]any{"adapter": KindSMTP, "host": n.config.Host},
		)
	}
	return core.DeliveryReceipt{MessageID: messageID, Accepted: true}, nil
}

func (n *SMTPNotifier) buildMessage(notification core.Notification) (*mail.Msg, string, error) {
	recipient := strings.TrimSpace(notification.Recipient)
	if recipient == "" {
		return nil, "", fmt.Errorf("transport: notification recipient is required")
	}
	msg := mail.NewMsg()
	if err := msg.From(n.config.From); err != nil {
		return nil, "", err
	}
	if err := msg.To(recipient); err != nil {
		return nil, "", err
	}
	msg.Subject(notification.Subject)

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), messageIDDomain(n.config.From))
	msg.SetMessageIDWithValue(messageID)
	msg.SetDate()

	text := notification.TextBody
	if strings.TrimSpace(text) == "" {
		text = notification.Link
	}
	msg.SetBodyString(mail.TypeTextPlain, text)
	if strings.TrimSpace(notification.HTMLBody) != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, notification.HTMLBody)
	}
	return msg, messageID, nil
}

func normalizeSMTPConfig(cfg SMTPConfig) SMTPConfig {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.From = strings.TrimSpace(cfg.From)
	return cfg
}

func messageIDDomain(from string) string {
	address := from
	if start := strings.LastIndex(address, "<"); start >= 0 {
		address = strings.TrimSuffix(address[start+1:], ">")
	}
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
