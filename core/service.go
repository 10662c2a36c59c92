package core

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/usufslc/aggie-auth/retry"
)

type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	persistenceClient  any
	repositoryFactory  RepositoryStoreFactory
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	apiCredentials     APICredentialStore
	verifications      VerificationStore
	notifier           Notifier
	clock              Clock
	tokenGenerator     TokenGenerator
	sleep              retry.SleepFunc
	backoff            retry.Backoff
	notificationLayout *template.Template
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	PersistenceClient  any
	RepositoryFactory  RepositoryStoreFactory
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	APICredentialStore APICredentialStore
	VerificationStore  VerificationStore
	Notifier           Notifier
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("aggie-auth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("aggie-auth"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = utcNow
	}
	if builder.tokenGenerator == nil {
		builder.tokenGenerator = RandomUUIDToken
	}
	if builder.sleep == nil {
		builder.sleep = retry.Wait
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.apiCredentialStore == nil || builder.verificationStore == nil) && builder.repositoryFactory != nil {
		stores, buildErr := builder.repositoryFactory.BuildStores(builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if stores != nil {
			if builder.apiCredentialStore == nil {
				builder.apiCredentialStore = stores.APICredentialStore()
			}
			if builder.verificationStore == nil {
				builder.verificationStore = stores.VerificationStore()
			}
		}
	}

	layout, err := parseNotificationLayout()
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		apiCredentials:    builder.apiCredentialStore,
		verifications:     builder.verificationStore,
		notifier:          builder.notifier,
		clock:             builder.clock,
		tokenGenerator:    builder.tokenGenerator,
		sleep:             builder.sleep,
		backoff: retry.Backoff{
			Base:      finalConfig.Delivery.BaseDelay(),
			Exponent:  finalConfig.Delivery.Exponent,
			Factor:    finalConfig.Delivery.Factor,
			JitterMax: finalConfig.Delivery.JitterMax(),
			Rand:      builder.jitterSource,
		},
		notificationLayout: layout,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorFactory:       s.errorFactory,
		ErrorMapper:        s.errorMapper,
		PersistenceClient:  s.persistenceClient,
		RepositoryFactory:  s.repositoryFactory,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		APICredentialStore: s.apiCredentials,
		VerificationStore:  s.verifications,
		Notifier:           s.notifier,
	}
}

func (s *Service) requireStores() error {
	if s == nil || s.apiCredentials == nil || s.verifications == nil {
		return s.mapError(fmt.Errorf("core: credential stores are required"))
	}
	return nil
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return utcNow()
	}
	return s.clock().UTC()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func tokenPrefix(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
