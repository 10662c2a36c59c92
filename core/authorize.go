package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Authorize resolves a bearer token to its API credential. Malformed and
// unknown tokens both fail with an unauthorized error carrying the bearer
// challenge.
func (s *Service) Authorize(ctx context.Context, bearer string) (credential APICredential, err error) {
	startedAt := time.Now().UTC()
	bearer = strings.ToLower(strings.TrimSpace(bearer))
	fields := map[string]any{"api_token": tokenPrefix(bearer)}
	defer func() {
		s.observeOperation(ctx, startedAt, "authorize", err, fields)
	}()

	if !IsBearerToken(bearer) {
		err = UnauthorizedError("api token invalid or no longer exists")
		return APICredential{}, err
	}
	if s == nil || s.apiCredentials == nil {
		err = s.mapError(errors.New("core: api credential store is required"))
		return APICredential{}, err
	}
	credential, err = s.apiCredentials.Get(ctx, bearer)
	if err != nil {
		if errors.Is(err, ErrAPICredentialNotFound) {
			err = UnauthorizedError("api token invalid or no longer exists")
			return APICredential{}, err
		}
		err = s.mapError(err)
		return APICredential{}, err
	}
	return credential, nil
}
