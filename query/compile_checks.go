package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/usufslc/aggie-auth/core"
)

var (
	_ gocmd.Querier[GetAPICredentialMessage, core.APICredential] = (*GetAPICredentialQuery)(nil)
	_ gocmd.Querier[AuthorizeMessage, core.APICredential]        = (*AuthorizeQuery)(nil)

	_ APICredentialReader = core.CredentialBroker(nil)
	_ Authorizer          = core.CredentialBroker(nil)
)
