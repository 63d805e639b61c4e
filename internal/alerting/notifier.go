package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wneessen/go-mail"
)

// Alert carries the context of one fired threshold crossing.
type Alert struct {
	ID         uuid.UUID
	Ticker     string
	Price      decimal.Decimal
	Threshold  decimal.Decimal
	Recipient  string
	CapturedAt time.Time
}

// Subject renders the notification subject line.
func (a Alert) Subject() string {
	return fmt.Sprintf("Stock Alert: %s exceeded threshold", a.Ticker)
}

// Body renders the notification body.
func (a Alert) Body() string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf(
		"The price of %s is now %s, which is above your threshold of %s.\n",
		a.Ticker, a.Price.StringFixed(2), a.Threshold.StringFixed(2),
	))
	b.WriteString(fmt.Sprintf("Captured: %s UTC\n", a.CapturedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Event: %s\n", a.ID))
	return b.String()
}

// Notifier delivers an alert to its recipient.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// SMTPOptions parameterise the mail notifier.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
	Timeout  time.Duration
}

// SMTPNotifier sends alert mail over authenticated SMTP.
type SMTPNotifier struct {
	opts   SMTPOptions
	logger zerolog.Logger
}

// NewSMTPNotifier constructs an SMTP-backed notifier.
func NewSMTPNotifier(opts SMTPOptions, logger zerolog.Logger) *SMTPNotifier {
	if opts.Port <= 0 {
		opts.Port = 465
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &SMTPNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "alert_smtp").Logger(),
	}
}

// Send composes and delivers one alert message.
func (n *SMTPNotifier) Send(ctx context.Context, alert Alert) error {
	msg := mail.NewMsg()
	if err := msg.From(n.opts.Sender); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(alert.Recipient); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(alert.Subject())
	msg.SetBodyString(mail.TypeTextPlain, alert.Body())

	client, err := mail.NewClient(n.opts.Host,
		mail.WithPort(n.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.opts.Username),
		mail.WithPassword(n.opts.Password),
		mail.WithSSLPort(false),
		mail.WithTimeout(n.opts.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}

	n.logger.Info().
		Str("ticker", alert.Ticker).
		Str("recipient", alert.Recipient).
		Msg("alert mail delivered")
	return nil
}

var _ Notifier = (*SMTPNotifier)(nil)
