package core

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
)

const (
	descriptionMinLength = 12
	descriptionMaxLength = 64
)

func (s *Service) GetAPICredential(ctx context.Context, bearer string) (APICredential, error) {
	return s.Authorize(ctx, bearer)
}

// UpdateAPICredential applies caller-mutable fields after policy checks.
// Dev scoping and the restricted identity are not caller-mutable.
func (s *Service) UpdateAPICredential(ctx context.Context, bearer string, in UpdateAPICredentialInput) (APICredential, error) {
	credential, err := s.Authorize(ctx, bearer)
	if err != nil {
		return APICredential{}, err
	}
	return s.UpdateAPICredentialFor(ctx, credential, in)
}

func (s *Service) UpdateAPICredentialFor(ctx context.Context, credential APICredential, in UpdateAPICredentialInput) (updated APICredential, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"api_token": tokenPrefix(credential.Token)}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_api_credential", err, fields)
	}()

	if err = s.ValidateAPICredentialUpdate(in); err != nil {
		return APICredential{}, err
	}

	credential.CallbackURI = strings.TrimSpace(in.CallbackURI)
	credential.Description = strings.TrimSpace(in.Description)
	credential.WantsElevated = in.WantsElevated
	credential.ExpirationSeconds = in.ExpirationSeconds
	credential.UpdatedAt = s.now()

	updated, err = s.apiCredentials.Update(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrAPICredentialNotFound) {
			err = NotFoundError("api credential not found")
			return APICredential{}, err
		}
		err = s.mapError(err)
		return APICredential{}, err
	}
	return updated, nil
}

func (s *Service) ValidateAPICredentialUpdate(in UpdateAPICredentialInput) error {
	var problems []goerrors.FieldError
	if !callbackSchemePattern.MatchString(strings.TrimSpace(in.CallbackURI)) {
		problems = append(problems, fieldError("callback", "must start with http:// or https://"))
	}
	length := utf8.RuneCountInString(strings.TrimSpace(in.Description))
	if length < descriptionMinLength || length > descriptionMaxLength {
		problems = append(problems, fieldError("description", "must be between 12 and 64 characters"))
	}
	minSeconds, maxSeconds := s.expirationBounds()
	if in.ExpirationSeconds < minSeconds || in.ExpirationSeconds > maxSeconds {
		problems = append(problems, fieldError("token_expiration_sec", "must be within the allowed expiration window"))
	}
	if len(problems) > 0 {
		return ValidationError("api credential update is invalid", problems...)
	}
	return nil
}

func (s *Service) DeleteAPICredential(ctx context.Context, bearer string) error {
	credential, err := s.Authorize(ctx, bearer)
	if err != nil {
		return err
	}
	return s.DeleteAPICredentialFor(ctx, credential)
}

func (s *Service) DeleteAPICredentialFor(ctx context.Context, credential APICredential) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"api_token": tokenPrefix(credential.Token)}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_api_credential", err, fields)
	}()

	if err = s.apiCredentials.Delete(ctx, credential.Token); err != nil {
		if errors.Is(err, ErrAPICredentialNotFound) {
			err = NotFoundError("api credential not found")
			return err
		}
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) expirationBounds() (int, int) {
	defaults := DefaultConfig().Expiration
	if s == nil {
		return defaults.MinSeconds, defaults.MaxSeconds
	}
	minSeconds := s.config.Expiration.MinSeconds
	if minSeconds <= 0 {
		minSeconds = defaults.MinSeconds
	}
	maxSeconds := s.config.Expiration.MaxSeconds
	if maxSeconds < minSeconds {
		maxSeconds = defaults.MaxSeconds
	}
	return minSeconds, maxSeconds
}
