package transport

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/usufslc/aggie-auth/core"
)

const KindLog = "log"

// LogNotifier writes the confirmation link to the logger instead of sending
// mail. It is meant for local development.
type LogNotifier struct {
	logger core.Logger
}

func NewLogNotifier(logger core.Logger) *LogNotifier {
	return &LogNotifier{logger: glog.Ensure(logger)}
}

func (*LogNotifier) Kind() string {
	return KindLog
}

func (n *LogNotifier) Notify(ctx context.Context, notification core.Notification) (core.DeliveryReceipt, error) {
	if n == nil {
		return core.DeliveryReceipt{}, fmt.Errorf("transport: log notifier is nil")
	}
	logger := glog.Ensure(n.logger)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	messageID := uuid.NewString()
	logger.Info("verification notification",
		"message_id", messageID,
		"recipient", notification.Recipient,
		"subject", notification.Subject,
		"link", notification.Link,
	)
	return core.DeliveryReceipt{MessageID: messageID, Accepted: true}, nil
}

// UnconfiguredNotifier fails every delivery with the reason it was built with.
type UnconfiguredNotifier struct {
	kind   string
	reason string
}

func NewUnconfiguredNotifier(kind string, reason string) *UnconfiguredNotifier {
	return &UnconfiguredNotifier{
		kind:   normalizeKind(kind),
		reason: strings.TrimSpace(reason),
	}
}

func (n *UnconfiguredNotifier) Kind() string {
	if n == nil {
		return ""
	}
	return n.kind
}

func (n *UnconfiguredNotifier) Notify(context.Context, core.Notification) (core.DeliveryReceipt, error) {
	if n == nil {
		return core.DeliveryReceipt{}, fmt.Errorf("transport: notifier is nil")
	}
	if n.reason != "" {
		return core.DeliveryReceipt{}, fmt.Errorf("transport: %s notifier is not configured: %s", n.kind, n.reason)
	}
	return core.DeliveryReceipt{}, fmt.Errorf("transport: %s notifier is not configured", n.kind)
}
