package sqlstore

import (
	"strings"
	"time"

	"github.com/usufslc/aggie-auth/core"
)

func newAPICredentialRecord(in core.APICredential, now time.Time) *apiCredentialRecord {
	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		createdAt = now
	}
	updatedAt := in.UpdatedAt.UTC()
	if in.UpdatedAt.IsZero() {
		updatedAt = createdAt
	}
	return &apiCredentialRecord{
		Token:              normalizeToken(in.Token),
		IsDev:              in.IsDev,
		WantsElevated:      in.WantsElevated,
		RestrictedIdentity: optionalIdentity(in.RestrictedIdentity),
		CallbackURI:        strings.TrimSpace(in.CallbackURI),
		ExpirationSeconds:  in.ExpirationSeconds,
		Description:        strings.TrimSpace(in.Description),
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}
}

func (r *apiCredentialRecord) toDomain() core.APICredential {
	if r == nil {
		return core.APICredential{}
	}
	restricted := ""
	if r.RestrictedIdentity != nil {
		restricted = *r.RestrictedIdentity
	}
	return core.APICredential{
		Token:              r.Token,
		IsDev:              r.IsDev,
		WantsElevated:      r.WantsElevated,
		RestrictedIdentity: restricted,
		CallbackURI:        r.CallbackURI,
		ExpirationSeconds:  r.ExpirationSeconds,
		Description:        r.Description,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func newVerificationRecord(in core.VerificationCredential, now time.Time) *verificationRecord {
	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		createdAt = now
	}
	return &verificationRecord{
		Token:          normalizeToken(in.Token),
		APIToken:       normalizeToken(in.APIToken),
		IdentityHandle: strings.ToLower(strings.TrimSpace(in.IdentityHandle)),
		ExpiresAt:      in.ExpiresAt.UTC(),
		ConfirmedAt:    cloneTimePointer(in.ConfirmedAt),
		CreatedAt:      createdAt,
	}
}

func (r *verificationRecord) toDomain() core.VerificationCredential {
	if r == nil {
		return core.VerificationCredential{}
	}
	return core.VerificationCredential{
		Token:          r.Token,
		APIToken:       r.APIToken,
		IdentityHandle: r.IdentityHandle,
		ExpiresAt:      r.ExpiresAt.UTC(),
		ConfirmedAt:    cloneTimePointer(r.ConfirmedAt),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

func optionalIdentity(handle string) *string {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if handle == "" {
		return nil
	}
	return &handle
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
