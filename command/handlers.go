package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/usufslc/aggie-auth/core"
)

type MutatingService interface {
	RequestVerification(ctx context.Context, bearer string, identityHandle string) (core.IssuedVerification, error)
	BootstrapSelfVerification(ctx context.Context, identityHandle string) (core.IssuedVerification, error)
	AcknowledgeBootstrap(ctx context.Context, apiToken string) string
	Confirm(ctx context.Context, token string) (core.Confirmation, error)
	DeleteVerification(ctx context.Context, bearer string, token string) error
	UpdateAPICredential(ctx context.Context, bearer string, in core.UpdateAPICredentialInput) (core.APICredential, error)
	DeleteAPICredential(ctx context.Context, bearer string) error
	PurgeExpiredVerifications(ctx context.Context, grace time.Duration) (int64, error)

	RequestVerificationFor(ctx context.Context, owner core.APICredential, identityHandle string) (core.IssuedVerification, error)
	DeleteVerificationFor(ctx context.Context, requester core.APICredential, token string) error
	UpdateAPICredentialFor(ctx context.Context, credential core.APICredential, in core.UpdateAPICredentialInput) (core.APICredential, error)
	DeleteAPICredentialFor(ctx context.Context, credential core.APICredential) error
}

type RequestVerificationCommand struct {
	service MutatingService
}

func NewRequestVerificationCommand(service MutatingService) *RequestVerificationCommand {
	return &RequestVerificationCommand{service: service}
}

func (c *RequestVerificationCommand) Execute(ctx context.Context, msg RequestVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	var out core.IssuedVerification
	var err error
	if msg.Requester != nil {
		out, err = c.service.RequestVerificationFor(ctx, *msg.Requester, msg.IdentityHandle)
	} else {
		out, err = c.service.RequestVerification(ctx, msg.Bearer, msg.IdentityHandle)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type BootstrapSelfVerificationCommand struct {
	service MutatingService
}

func NewBootstrapSelfVerificationCommand(service MutatingService) *BootstrapSelfVerificationCommand {
	return &BootstrapSelfVerificationCommand{service: service}
}

func (c *BootstrapSelfVerificationCommand) Execute(ctx context.Context, msg BootstrapSelfVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: bootstrap service is required")
	}
	out, err := c.service.BootstrapSelfVerification(ctx, msg.IdentityHandle)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// AcknowledgeBootstrapCommand never fails once wired; the stored result is
// the token echoed back by the service.
type AcknowledgeBootstrapCommand struct {
	service MutatingService
}

func NewAcknowledgeBootstrapCommand(service MutatingService) *AcknowledgeBootstrapCommand {
	return &AcknowledgeBootstrapCommand{service: service}
}

func (c *AcknowledgeBootstrapCommand) Execute(ctx context.Context, msg AcknowledgeBootstrapMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: acknowledge service is required")
	}
	storeResult(ctx, c.service.AcknowledgeBootstrap(ctx, msg.APIToken))
	return nil
}

type ConfirmVerificationCommand struct {
	service MutatingService
}

func NewConfirmVerificationCommand(service MutatingService) *ConfirmVerificationCommand {
	return &ConfirmVerificationCommand{service: service}
}

func (c *ConfirmVerificationCommand) Execute(ctx context.Context, msg ConfirmVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: confirm service is required")
	}
	out, err := c.service.Confirm(ctx, msg.Token)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteVerificationCommand struct {
	service MutatingService
}

func NewDeleteVerificationCommand(service MutatingService) *DeleteVerificationCommand {
	return &DeleteVerificationCommand{service: service}
}

func (c *DeleteVerificationCommand) Execute(ctx context.Context, msg DeleteVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	if msg.Requester != nil {
		return c.service.DeleteVerificationFor(ctx, *msg.Requester, msg.Token)
	}
	return c.service.DeleteVerification(ctx, msg.Bearer, msg.Token)
}

type UpdateAPICredentialCommand struct {
	service MutatingService
}

func NewUpdateAPICredentialCommand(service MutatingService) *UpdateAPICredentialCommand {
	return &UpdateAPICredentialCommand{service: service}
}

func (c *UpdateAPICredentialCommand) Execute(ctx context.Context, msg UpdateAPICredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: api credential service is required")
	}
	var out core.APICredential
	var err error
	if msg.Requester != nil {
		out, err = c.service.UpdateAPICredentialFor(ctx, *msg.Requester, msg.Input)
	} else {
		out, err = c.service.UpdateAPICredential(ctx, msg.Bearer, msg.Input)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteAPICredentialCommand struct {
	service MutatingService
}

func NewDeleteAPICredentialCommand(service MutatingService) *DeleteAPICredentialCommand {
	return &DeleteAPICredentialCommand{service: service}
}

func (c *DeleteAPICredentialCommand) Execute(ctx context.Context, msg DeleteAPICredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: api credential service is required")
	}
	if msg.Requester != nil {
		return c.service.DeleteAPICredentialFor(ctx, *msg.Requester)
	}
	return c.service.DeleteAPICredential(ctx, msg.Bearer)
}

type PurgeExpiredCommand struct {
	service MutatingService
}

func NewPurgeExpiredCommand(service MutatingService) *PurgeExpiredCommand {
	return &PurgeExpiredCommand{service: service}
}

func (c *PurgeExpiredCommand) Execute(ctx context.Context, msg PurgeExpiredMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: purge service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	purged, err := c.service.PurgeExpiredVerifications(ctx, time.Duration(msg.GraceSeconds)*time.Second)
	if err != nil {
		return err
	}
	storeResult(ctx, purged)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
