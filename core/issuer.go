package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/usufslc/aggie-auth/retry"
)

// RequestVerification issues a verification credential for identityHandle on
// behalf of the bearer and delivers the confirmation link. When delivery runs
// out of attempts the credential stays issued and is left to expire.
func (s *Service) RequestVerification(ctx context.Context, bearer string, identityHandle string) (IssuedVerification, error) {
	owner, err := s.Authorize(ctx, bearer)
	if err != nil {
		return IssuedVerification{}, err
	}
	return s.RequestVerificationFor(ctx, owner, identityHandle)
}

// RequestVerificationFor is RequestVerification for an already authorized owner.
func (s *Service) RequestVerificationFor(ctx context.Context, owner APICredential, identityHandle string) (issued IssuedVerification, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"api_token":       tokenPrefix(owner.Token),
		"identity_handle": identityHandle,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "request_verification", err, fields)
	}()

	handle, normalizeErr := NormalizeIdentityHandle(identityHandle)
	if normalizeErr != nil {
		err = ValidationError("identity handle is invalid", fieldError("anumber", normalizeErr.Error()))
		return IssuedVerification{}, err
	}
	fields["identity_handle"] = handle
	if !owner.Permits(handle) {
		err = ForbiddenError("cannot authorize given a-number with token")
		return IssuedVerification{}, err
	}

	verification, err := s.Issue(ctx, owner, handle)
	if err != nil {
		return IssuedVerification{}, err
	}
	fields["verification_token"] = tokenPrefix(verification.Token)

	attempts, err := s.deliver(ctx, owner, verification)
	fields["delivery_attempts"] = attempts
	if err != nil {
		return IssuedVerification{}, err
	}
	return IssuedVerification{Token: verification.Token, ExpiresAt: verification.ExpiresAt}, nil
}

func (s *Service) deliver(ctx context.Context, owner APICredential, verification VerificationCredential) (int, error) {
	if s.notifier == nil {
		return 0, DeliveryFailedError(nil, "no notification transport configured")
	}
	notification, err := s.composeNotification(owner, verification)
	if err != nil {
		return 0, s.mapError(err)
	}

	outcome, err := retry.Until(ctx, retry.Config[DeliveryReceipt]{
		MaxAttempts: s.config.Delivery.MaxAttempts,
		Accept:      func(receipt DeliveryReceipt) bool { return receipt.Accepted },
		Delay:       s.backoff.Delay,
		Sleep:       s.sleep,
		OnFailure: func(attempt int, attemptErr error) {
			fields := map[string]any{
				"attempt":            attempt + 1,
				"max_attempts":       s.config.Delivery.MaxAttempts,
				"verification_token": tokenPrefix(verification.Token),
			}
			if attemptErr != nil {
				fields["error"] = attemptErr.Error()
			}
			s.logWarn(ctx, "notification delivery attempt failed", fields)
		},
	}, func(ctx context.Context, _ int) (DeliveryReceipt, error) {
		return s.notifier.Notify(ctx, notification)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return outcome.Attempts, DeliveryFailedError(err, "notification delivery interrupted")
		}
		return outcome.Attempts, DeliveryFailedError(err, "failed sending verification notification")
	}
	return outcome.Attempts, nil
}

// BootstrapSelfVerification registers a dev credential restricted to
// identityHandle whose callback is the acknowledgment endpoint, then requests
// verification with it.
func (s *Service) BootstrapSelfVerification(ctx context.Context, identityHandle string) (issued IssuedVerification, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"identity_handle": identityHandle}
	defer func() {
		s.observeOperation(ctx, startedAt, "bootstrap", err, fields)
	}()

	if err = s.requireStores(); err != nil {
		return IssuedVerification{}, err
	}
	handle, normalizeErr := NormalizeIdentityHandle(identityHandle)
	if normalizeErr != nil {
		err = ValidationError("identity handle is invalid", fieldError("anumber", normalizeErr.Error()))
		return IssuedVerification{}, err
	}
	fields["identity_handle"] = handle

	token, genErr := s.tokenGenerator()
	if genErr != nil {
		err = s.mapError(fmt.Errorf("core: generate api token: %w", genErr))
		return IssuedVerification{}, err
	}
	now := s.now()
	owner, err := s.apiCredentials.Create(ctx, APICredential{
		Token:              token,
		IsDev:              true,
		RestrictedIdentity: handle,
		CallbackURI:        AcknowledgementURI(s.config.APIHost, token),
		ExpirationSeconds:  s.config.Expiration.BootstrapSeconds,
		Description:        BootstrapDescription,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		err = s.mapError(err)
		return IssuedVerification{}, err
	}
	fields["api_token"] = tokenPrefix(owner.Token)

	issued, err = s.RequestVerificationFor(ctx, owner, handle)
	return issued, err
}

// AcknowledgeBootstrap closes the bootstrap loop: a credential that still
// points at its acknowledgment URL and has a confirmed verification gets the
// default callback. It always returns apiToken; failures are only logged.
func (s *Service) AcknowledgeBootstrap(ctx context.Context, apiToken string) string {
	startedAt := time.Now().UTC()
	normalized := strings.ToLower(strings.TrimSpace(apiToken))
	fields := map[string]any{"api_token": tokenPrefix(normalized)}
	downgraded := false
	var err error
	defer func() {
		fields["downgraded"] = downgraded
		s.observeOperation(ctx, startedAt, "acknowledge_bootstrap", err, fields)
	}()

	if err = s.requireStores(); err != nil {
		return apiToken
	}
	if !IsBearerToken(normalized) {
		return apiToken
	}
	credential, getErr := s.apiCredentials.Get(ctx, normalized)
	if getErr != nil {
		if !errors.Is(getErr, ErrAPICredentialNotFound) {
			err = getErr
		}
		return apiToken
	}
	if credential.CallbackURI != AcknowledgementURI(s.config.APIHost, credential.Token) {
		return apiToken
	}
	confirmed, confirmedErr := s.verifications.HasConfirmed(ctx, credential.Token)
	if confirmedErr != nil {
		err = confirmedErr
		return apiToken
	}
	if !confirmed {
		return apiToken
	}

	credential.CallbackURI = s.config.DefaultCallback
	credential.UpdatedAt = s.now()
	if _, err = s.apiCredentials.Update(ctx, credential); err != nil {
		return apiToken
	}
	downgraded = true
	return apiToken
}
