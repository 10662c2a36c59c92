package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Issue persists a fresh verification credential for handle under owner.
// Delivery is composed separately.
func (s *Service) Issue(ctx context.Context, owner APICredential, identityHandle string) (verification VerificationCredential, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"api_token":       tokenPrefix(owner.Token),
		"identity_handle": identityHandle,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue", err, fields)
	}()

	if err = s.requireStores(); err != nil {
		return VerificationCredential{}, err
	}
	handle, normalizeErr := NormalizeIdentityHandle(identityHandle)
	if normalizeErr != nil {
		err = ValidationError("identity handle is invalid", fieldError("anumber", normalizeErr.Error()))
		return VerificationCredential{}, err
	}
	if strings.TrimSpace(owner.Token) == "" {
		err = s.mapError(fmt.Errorf("core: owning api credential is required"))
		return VerificationCredential{}, err
	}
	if owner.ExpirationSeconds <= 0 {
		err = ValidationError("api credential expiration is invalid", fieldError("token_expiration_sec", "must be positive"))
		return VerificationCredential{}, err
	}

	token, genErr := s.tokenGenerator()
	if genErr != nil {
		err = s.mapError(fmt.Errorf("core: generate verification token: %w", genErr))
		return VerificationCredential{}, err
	}
	now := s.now()
	verification, err = s.verifications.Create(ctx, VerificationCredential{
		Token:          token,
		APIToken:       owner.Token,
		IdentityHandle: handle,
		ExpiresAt:      now.Add(owner.ExpirationWindow()),
		CreatedAt:      now,
	})
	if err != nil {
		err = s.mapError(err)
		return VerificationCredential{}, err
	}
	fields["verification_token"] = tokenPrefix(verification.Token)
	return verification, nil
}

// Confirm consumes a verification credential. The state check and the write
// happen in one conditional update; a lost race reports AlreadyConsumed.
func (s *Service) Confirm(ctx context.Context, token string) (confirmation Confirmation, err error) {
	startedAt := time.Now().UTC()
	token = strings.ToLower(strings.TrimSpace(token))
	fields := map[string]any{"verification_token": tokenPrefix(token)}
	defer func() {
		s.observeOperation(ctx, startedAt, "confirm", err, fields)
	}()

	if err = s.requireStores(); err != nil {
		return Confirmation{}, err
	}
	if !IsBearerToken(token) {
		err = NotFoundError("verification credential not found")
		return Confirmation{}, err
	}

	now := s.now()
	updated, err := s.verifications.MarkConfirmed(ctx, token, now)
	if err != nil {
		return Confirmation{}, err
	}

	verification, getErr := s.verifications.Get(ctx, token)
	if getErr != nil {
		if errors.Is(getErr, ErrVerificationNotFound) {
			err = NotFoundError("verification credential not found")
			return Confirmation{}, err
		}
		err = getErr
		return Confirmation{}, err
	}
	fields["api_token"] = tokenPrefix(verification.APIToken)
	fields["identity_handle"] = verification.IdentityHandle

	if !updated {
		switch verification.State(now) {
		case VerificationStateConfirmed:
			err = AlreadyConsumedError("verification credential already consumed")
		default:
			err = ExpiredError("verification credential expired")
		}
		return Confirmation{}, err
	}

	owner, ownerErr := s.apiCredentials.Get(ctx, verification.APIToken)
	if ownerErr != nil {
		if errors.Is(ownerErr, ErrAPICredentialNotFound) {
			err = NotFoundError("api credential not found")
			return Confirmation{}, err
		}
		err = ownerErr
		return Confirmation{}, err
	}
	return Confirmation{APICredential: owner, Verification: verification}, nil
}

// DeleteVerification removes a verification credential owned by the bearer.
func (s *Service) DeleteVerification(ctx context.Context, bearer string, token string) error {
	requester, err := s.Authorize(ctx, bearer)
	if err != nil {
		return err
	}
	return s.DeleteVerificationFor(ctx, requester, token)
}

func (s *Service) DeleteVerificationFor(ctx context.Context, requester APICredential, token string) (err error) {
	startedAt := time.Now().UTC()
	token = strings.ToLower(strings.TrimSpace(token))
	fields := map[string]any{
		"api_token":          tokenPrefix(requester.Token),
		"verification_token": tokenPrefix(token),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_verification", err, fields)
	}()

	if err = s.requireStores(); err != nil {
		return err
	}
	if !IsBearerToken(token) {
		err = NotFoundError("verification credential not found")
		return err
	}
	verification, err := s.verifications.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			err = NotFoundError("verification credential not found")
			return err
		}
		err = s.mapError(err)
		return err
	}
	if verification.APIToken != requester.Token {
		err = ForbiddenError("cannot delete a verification credential issued to another api credential")
		return err
	}
	if err = s.verifications.Delete(ctx, verification.Token); err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			err = NotFoundError("verification credential not found")
			return err
		}
		err = s.mapError(err)
		return err
	}
	return nil
}

// PurgeExpiredVerifications deletes unconfirmed verification credentials that
// expired more than grace ago.
func (s *Service) PurgeExpiredVerifications(ctx context.Context, grace time.Duration) (removed int64, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"grace_seconds": int64(grace / time.Second)}
	defer func() {
		fields["removed"] = removed
		s.observeOperation(ctx, startedAt, "purge_expired", err, fields)
	}()

	if err = s.requireStores(); err != nil {
		return 0, err
	}
	if grace < 0 {
		grace = 0
	}
	removed, err = s.verifications.DeleteExpiredBefore(ctx, s.now().Add(-grace))
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return removed, nil
}
