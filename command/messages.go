package command

import (
	"strings"

	"github.com/usufslc/aggie-auth/core"
)

const (
	TypeRequestVerification       = "aggie_auth.command.verification.request"
	TypeBootstrapSelfVerification = "aggie_auth.command.verification.bootstrap"
	TypeAcknowledgeBootstrap      = "aggie_auth.command.api_credential.acknowledge"
	TypeConfirmVerification       = "aggie_auth.command.verification.confirm"
	TypeDeleteVerification        = "aggie_auth.command.verification.delete"
	TypeUpdateAPICredential       = "aggie_auth.command.api_credential.update"
	TypeDeleteAPICredential       = "aggie_auth.command.api_credential.delete"
	TypePurgeExpired              = "aggie_auth.command.verification.purge_expired"
)

// RequestVerificationMessage carries Requester when the bearer was already
// authorized upstream.
type RequestVerificationMessage struct {
	Bearer         string
	Requester      *core.APICredential
	IdentityHandle string
}

func (RequestVerificationMessage) Type() string { return TypeRequestVerification }

func (m RequestVerificationMessage) Validate() error {
	if err := validateBearer(m.Bearer); err != nil {
		return err
	}
	return validateIdentityHandle(m.IdentityHandle)
}

type BootstrapSelfVerificationMessage struct {
	IdentityHandle string
}

func (BootstrapSelfVerificationMessage) Type() string { return TypeBootstrapSelfVerification }

func (m BootstrapSelfVerificationMessage) Validate() error {
	return validateIdentityHandle(m.IdentityHandle)
}

type AcknowledgeBootstrapMessage struct {
	APIToken string
}

func (AcknowledgeBootstrapMessage) Type() string { return TypeAcknowledgeBootstrap }

func (m AcknowledgeBootstrapMessage) Validate() error {
	if strings.TrimSpace(m.APIToken) == "" {
		return commandValidationError("api_token", "api token is required")
	}
	return nil
}

type ConfirmVerificationMessage struct {
	Token string
}

func (ConfirmVerificationMessage) Type() string { return TypeConfirmVerification }

func (m ConfirmVerificationMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "verification token is required")
	}
	return nil
}

type DeleteVerificationMessage struct {
	Bearer    string
	Requester *core.APICredential
	Token     string
}

func (DeleteVerificationMessage) Type() string { return TypeDeleteVerification }

func (m DeleteVerificationMessage) Validate() error {
	if err := validateBearer(m.Bearer); err != nil {
		return err
	}
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "verification token is required")
	}
	return nil
}

type UpdateAPICredentialMessage struct {
	Bearer    string
	Requester *core.APICredential
	Input     core.UpdateAPICredentialInput
}

func (UpdateAPICredentialMessage) Type() string { return TypeUpdateAPICredential }

func (m UpdateAPICredentialMessage) Validate() error {
	return validateBearer(m.Bearer)
}

type DeleteAPICredentialMessage struct {
	Bearer    string
	Requester *core.APICredential
}

func (DeleteAPICredentialMessage) Type() string { return TypeDeleteAPICredential }

func (m DeleteAPICredentialMessage) Validate() error {
	return validateBearer(m.Bearer)
}

type PurgeExpiredMessage struct {
	GraceSeconds int
}

func (PurgeExpiredMessage) Type() string { return TypePurgeExpired }

func (m PurgeExpiredMessage) Validate() error {
	if m.GraceSeconds < 0 {
		return commandValidationError("grace_seconds", "must be >= 0")
	}
	return nil
}

func validateBearer(bearer string) error {
	if strings.TrimSpace(bearer) == "" {
		return commandValidationError("bearer", "bearer token is required")
	}
	return nil
}

func validateIdentityHandle(handle string) error {
	if _, err := core.NormalizeIdentityHandle(handle); err != nil {
		return core.FieldValidationError("command: identity handle is invalid", "anumber", err.Error())
	}
	return nil
}
