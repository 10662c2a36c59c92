package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/usufslc/aggie-auth/core"
)

const apiCredentialCacheKeyPrefix = "aggie-auth::api_credential::v1"

// CachedAPICredentialStore fronts an APICredentialStore with a read-through
// cache. Writes go to the base store first and then evict the cached entry.
type CachedAPICredentialStore struct {
	base  core.APICredentialStore
	cache repositorycache.CacheService
}

func NewCachedAPICredentialStore(
	base core.APICredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedAPICredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base api credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: api credential cache service is required")
	}
	return &CachedAPICredentialStore{base: base, cache: cacheService}, nil
}

// APICredentialCacheKey returns aggie-auth::api_credential::v1::<token> with
// the token lower-cased and URL-path escaped.
func APICredentialCacheKey(token string) (string, error) {
	normalized := normalizeToken(token)
	if normalized == "" {
		return "", fmt.Errorf("sqlstore: api credential token is required")
	}
	return strings.Join([]string{apiCredentialCacheKeyPrefix, url.PathEscape(normalized)}, "::"), nil
}

func (s *CachedAPICredentialStore) Create(ctx context.Context, in core.APICredential) (core.APICredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.APICredential{}, fmt.Errorf("sqlstore: cached api credential store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.APICredential{}, err
	}
	if err := s.evict(ctx, created.Token); err != nil {
		return core.APICredential{}, err
	}
	return created, nil
}

func (s *CachedAPICredentialStore) Get(ctx context.Context, token string) (core.APICredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.APICredential{}, fmt.Errorf("sqlstore: cached api credential store is not configured")
	}
	cacheKey, err := APICredentialCacheKey(token)
	if err != nil {
		return core.APICredential{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.APICredential, error) {
		return s.base.Get(ctx, normalizeToken(token))
	})
}

func (s *CachedAPICredentialStore) Update(ctx context.Context, in core.APICredential) (core.APICredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.APICredential{}, fmt.Errorf("sqlstore: cached api credential store is not configured")
	}
	updated, err := s.base.Update(ctx, in)
	if err != nil {
		return core.APICredential{}, err
	}
	if err := s.evict(ctx, in.Token); err != nil {
		return core.APICredential{}, err
	}
	return updated, nil
}

func (s *CachedAPICredentialStore) Delete(ctx context.Context, token string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached api credential store is not configured")
	}
	if err := s.base.Delete(ctx, token); err != nil {
		return err
	}
	return s.evict(ctx, token)
}

func (s *CachedAPICredentialStore) evict(ctx context.Context, token string) error {
	cacheKey, err := APICredentialCacheKey(token)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
