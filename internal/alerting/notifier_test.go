package alerting

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestAlertSubject(t *testing.T) {
	alert := Alert{Ticker: "RELIANCE"}
	want := "Stock Alert: RELIANCE exceeded threshold"
	if got := alert.Subject(); got != want {
		t.Fatalf("subject = %q, want %q", got, want)
	}
}

func TestAlertBody(t *testing.T) {
	alert := Alert{
		ID:         uuid.New(),
		Ticker:     "INFY",
		Price:      decimal.NewFromFloat(1234.5),
		Threshold:  decimal.NewFromInt(1000),
		Recipient:  "ops@example.com",
		CapturedAt: time.Date(2025, 11, 3, 10, 30, 0, 0, time.UTC),
	}

	body := alert.Body()
	for _, fragment := range []string{
		"The price of INFY is now 1234.50",
		"above your threshold of 1000.00",
		"2025-11-03T10:30:00Z",
		alert.ID.String(),
	} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("body missing %q:\n%s", fragment, body)
		}
	}
}

func TestNewSMTPNotifierDefaults(t *testing.T) {
	n := NewSMTPNotifier(SMTPOptions{Host: "smtp.example.com"}, nopLogger())
	if n.opts.Port != 465 {
		t.Fatalf("default port = %d, want 465", n.opts.Port)
	}
	if n.opts.Timeout <= 0 {
		t.Fatal("default timeout should be positive")
	}
}
