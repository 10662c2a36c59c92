package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/usufslc/aggie-auth/core"
)

var (
	_ gocmd.Commander[RequestVerificationMessage]       = (*RequestVerificationCommand)(nil)
	_ gocmd.Commander[BootstrapSelfVerificationMessage] = (*BootstrapSelfVerificationCommand)(nil)
	_ gocmd.Commander[AcknowledgeBootstrapMessage]      = (*AcknowledgeBootstrapCommand)(nil)
	_ gocmd.Commander[ConfirmVerificationMessage]       = (*ConfirmVerificationCommand)(nil)
	_ gocmd.Commander[DeleteVerificationMessage]        = (*DeleteVerificationCommand)(nil)
	_ gocmd.Commander[UpdateAPICredentialMessage]       = (*UpdateAPICredentialCommand)(nil)
	_ gocmd.Commander[DeleteAPICredentialMessage]       = (*DeleteAPICredentialCommand)(nil)
	_ gocmd.Commander[PurgeExpiredMessage]              = (*PurgeExpiredCommand)(nil)

	_ MutatingService = core.CredentialBroker(nil)
)
