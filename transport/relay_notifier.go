package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/usufslc/aggie-auth/core"
)

const KindRelay = "relay"

const defaultRelayClientTimeout = 30 * time.Second
const defaultRelayResponseBodyLimit int64 = 1 << 20 // 1 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RelayNotifier posts notifications as JSON to an HTTP mail relay. A 429 or
// 5xx response is reported as a rejected receipt so the caller may retry.
type RelayNotifier struct {
	Endpoint             string
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

type relayPayload struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	HTML           string `json:"html"`
	Text           string `json:"text"`
	IdentityHandle string `json:"identity_handle,omitempty"`
	Link           string `json:"link,omitempty"`
}

type relayResponse struct {
	MessageID string `json:"message_id"`
}

func NewRelayNotifier(endpoint string, client HTTPDoer) *RelayNotifier {
	if client == nil {
		client = &http.Client{Timeout: defaultRelayClientTimeout}
	}
	return &RelayNotifier{
		Endpoint:             strings.TrimSpace(endpoint),
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRelayResponseBodyLimit,
	}
}

func (*RelayNotifier) Kind() string {
	return KindRelay
}

func (n *RelayNotifier) Notify(ctx context.Context, notification core.Notification) (core.DeliveryReceipt, error) {
	if n == nil || n.Client == nil {
		return core.DeliveryReceipt{}, transportError(
			"transport: relay notifier requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindRelay},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	parsedURL, err := url.Parse(strings.TrimSpace(n.Endpoint))
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return core.DeliveryReceipt{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid relay endpoint",
			http.StatusBadRequest,
			map[string]any{"adapter": KindRelay, "url": strings.TrimSpace(n.Endpoint)},
		)
	}
	if strings.TrimSpace(notification.Recipient) == "" {
		return core.DeliveryReceipt{}, transportError(
			"transport: notification recipient is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindRelay},
		)
	}

	body, err := json.Marshal(relayPayload{
		To:             notification.Recipient,
		Subject:        notification.Subject,
		HTML:           notification.HTMLBody,
		Text:           notification.TextBody,
		IdentityHandle: notification.IdentityHandle,
		Link:           notification.Link,
	})
	if err != nil {
		return core.DeliveryReceipt{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: encode relay payload",
			http.StatusInternalServerError,
			map[string]any{"adapter": KindRelay},
		)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURL.String(), bytes.NewReader(body))
	if err != nil {
		return core.DeliveryReceipt{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create relay request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindRelay, "url": parsedURL.String()},
		)
	}
	for key, value := range n.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpRes, err := n.Client.Do(httpReq)
	if err != nil {
		return core.DeliveryReceipt{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute relay request",
			http.StatusBadGateway,
			map[string]any{"adapter": KindRelay, "url": parsedURL.String()},
		)
	}
	defer httpRes.Body.Close()

	limit := n.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultRelayResponseBodyLimit
	}
	responseBody, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return core.DeliveryReceipt{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read relay response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindRelay, "status_code": httpRes.StatusCode},
		)
	}
	if int64(len(responseBody)) > limit {
		return core.DeliveryReceipt{}, transportError(
			fmt.Sprintf("transport: relay response body exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"adapter": KindRelay, "status_code": httpRes.StatusCode, "response_limit_b": limit},
		)
	}

	switch {
	case httpRes.StatusCode == http.StatusTooManyRequests || httpRes.StatusCode >= http.StatusInternalServerError:
		return core.DeliveryReceipt{Accepted: false}, nil
	case httpRes.StatusCode >= http.StatusBadRequest:
		return core.DeliveryReceipt{}, transportError(
			fmt.Sprintf("transport: relay rejected notification with status %d", httpRes.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"adapter": KindRelay, "status_code": httpRes.StatusCode},
		)
	}

	receipt := core.DeliveryReceipt{Accepted: true}
	var decoded relayResponse
	if len(bytes.TrimSpace(responseBody)) > 0 && json.Unmarshal(responseBody, &decoded) == nil {
		receipt.MessageID = strings.TrimSpace(decoded.MessageID)
	}
	return receipt, nil
}
