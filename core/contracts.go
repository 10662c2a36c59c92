package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var (
	ErrAPICredentialNotFound = errors.New("core: api credential not found")
	ErrVerificationNotFound  = errors.New("core: verification credential not found")
)

type APICredentialStore interface {
	Create(ctx context.Context, credential APICredential) (APICredential, error)
	Get(ctx context.Context, token string) (APICredential, error)
	Update(ctx context.Context, credential APICredential) (APICredential, error)
	Delete(ctx context.Context, token string) error
}

type VerificationStore interface {
	Create(ctx context.Context, verification VerificationCredential) (VerificationCredential, error)
	Get(ctx context.Context, token string) (VerificationCredential, error)
	// MarkConfirmed sets confirmed_at = at only when the record is unconfirmed
	// and expires after at, in a single conditional write. It reports whether
	// a row was changed.
	MarkConfirmed(ctx context.Context, token string, at time.Time) (bool, error)
	Delete(ctx context.Context, token string) error
	HasConfirmed(ctx context.Context, apiToken string) (bool, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier hands a notification to an out-of-band transport. A receipt with
// Accepted=false is a soft failure that may be retried.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) (DeliveryReceipt, error)
}

type NotifierFunc func(ctx context.Context, notification Notification) (DeliveryReceipt, error)

func (f NotifierFunc) Notify(ctx context.Context, notification Notification) (DeliveryReceipt, error) {
	return f(ctx, notification)
}

type TokenGenerator func() (string, error)

type Clock func() time.Time

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// CredentialBroker is the operation surface consumed by command, query and
// HTTP adapters.
type CredentialBroker interface {
	Authorize(ctx context.Context, bearer string) (APICredential, error)
	RequestVerification(ctx context.Context, bearer string, identityHandle string) (IssuedVerification, error)
	BootstrapSelfVerification(ctx context.Context, identityHandle string) (IssuedVerification, error)
	AcknowledgeBootstrap(ctx context.Context, apiToken string) string
	Confirm(ctx context.Context, token string) (Confirmation, error)
	DeleteVerification(ctx context.Context, bearer string, token string) error
	GetAPICredential(ctx context.Context, bearer string) (APICredential, error)
	UpdateAPICredential(ctx context.Context, bearer string, in UpdateAPICredentialInput) (APICredential, error)
	DeleteAPICredential(ctx context.Context, bearer string) error
	PurgeExpiredVerifications(ctx context.Context, grace time.Duration) (int64, error)

	// For variants act on a credential the caller already authorized.
	RequestVerificationFor(ctx context.Context, owner APICredential, identityHandle string) (IssuedVerification, error)
	DeleteVerificationFor(ctx context.Context, requester APICredential, token string) error
	UpdateAPICredentialFor(ctx context.Context, credential APICredential, in UpdateAPICredentialInput) (APICredential, error)
	DeleteAPICredentialFor(ctx context.Context, credential APICredential) error
}
