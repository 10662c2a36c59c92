// Package aggieauth is the root of the credential broker. It re-exports the
// core service constructor and options for callers that only need the
// broker, and embeds the SQL schema.
package aggieauth

import "github.com/usufslc/aggie-auth/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type APICredential = core.APICredential

type VerificationCredential = core.VerificationCredential

type Confirmation = core.Confirmation

type IssuedVerification = core.IssuedVerification

type Notifier = core.Notifier

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithPersistenceClient  = core.WithPersistenceClient
	WithRepositoryFactory  = core.WithRepositoryFactory
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithAPICredentialStore = core.WithAPICredentialStore
	WithVerificationStore  = core.WithVerificationStore
	WithNotifier           = core.WithNotifier
	WithClock              = core.WithClock
	WithTokenGenerator     = core.WithTokenGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
