package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
	"github.com/usufslc/aggie-auth/core"
)

type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	apiCredentialStore core.APICredentialStore
	verificationStore  *VerificationStore
}

type FactoryOption func(*RepositoryFactory)

// WithAPICredentialCache puts a read-through cache in front of the api
// credential store built by the factory.
func WithAPICredentialCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		if f != nil {
			f.cache = cacheService
		}
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.apiCredentialStore != nil && f.verificationStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) APICredentialStore() core.APICredentialStore {
	if f == nil {
		return nil
	}
	return f.apiCredentialStore
}

func (f *RepositoryFactory) VerificationStore() core.VerificationStore {
	if f == nil || f.verificationStore == nil {
		return nil
	}
	return f.verificationStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	apiCredentialStore, err := NewAPICredentialStore(f.db)
	if err != nil {
		return err
	}
	f.apiCredentialStore = apiCredentialStore
	if f.cache != nil {
		cached, cacheErr := NewCachedAPICredentialStore(apiCredentialStore, f.cache)
		if cacheErr != nil {
			return cacheErr
		}
		f.apiCredentialStore = cached
	}

	verificationStore, err := NewVerificationStore(f.db)
	if err != nil {
		return err
	}
	f.verificationStore = verificationStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
