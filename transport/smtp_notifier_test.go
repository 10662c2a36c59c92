package transport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"
)

type recordingSender struct {
	messages []*mail.Msg
	err      error
}

func (s *recordingSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, messages...)
	return nil
}

func TestSMTPNotifier_SendsMessage(t *testing.T) {
	sender := &recordingSender{}
	notifier, err := NewSMTPNotifierWithSender(SMTPConfig{From: "FSLC <fslc@usu.example.edu>"}, sender)
	if err != nil {
		t.Fatalf("new smtp notifier: %v", err)
	}

	receipt, err := notifier.Notify(context.Background(), testNotification())
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !receipt.Accepted {
		t.Fatalf("expected accepted receipt")
	}
	if !strings.HasSuffix(receipt.MessageID, "@usu.example.edu") {
		t.Fatalf("expected message id scoped to sender domain, got %q", receipt.MessageID)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.messages))
	}
	recipients, err := sender.messages[0].GetRecipients()
	if err != nil {
		t.Fatalf("get recipients: %v", err)
	}
	if len(recipients) != 1 || recipients[0] != "a01234567@example.edu" {
		t.Fatalf("unexpected recipients %v", recipients)
	}
}

func TestSMTPNotifier_SendFailureIsDeliveryError(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	notifier, err := NewSMTPNotifierWithSender(SMTPConfig{From: "fslc@example.edu"}, sender)
	if err != nil {
		t.Fatalf("new smtp notifier: %v", err)
	}
	if _, err := notifier.Notify(context.Background(), testNotification()); err == nil {
		t.Fatalf("expected send failure")
	}
}

func TestNewSMTPNotifier_RequiresFromAddress(t *testing.T) {
	if _, err := NewSMTPNotifierWithSender(SMTPConfig{}, &recordingSender{}); err == nil {
		t.Fatalf("expected missing from address error")
	}
	if _, err := NewSMTPNotifierWithSender(SMTPConfig{From: "fslc@example.edu"}, nil); err == nil {
		t.Fatalf("expected missing sender error")
	}
}

func TestMessageIDDomain(t *testing.T) {
	cases := map[string]string{
		"fslc@usu.edu":        "usu.edu",
		"FSLC <fslc@usu.edu>": "usu.edu",
		"no-domain":           "localhost",
		"trailing@":           "localhost",
	}
	for from, want := range cases {
		if got := messageIDDomain(from); got != want {
			t.Fatalf("messageIDDomain(%q) = %q, want %q", from, got, want)
		}
	}
}
