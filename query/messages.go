package query

import (
	"strings"

	"github.com/usufslc/aggie-auth/core"
)

const (
	TypeGetAPICredential = "aggie_auth.query.api_credential.get"
	TypeAuthorize        = "aggie_auth.query.api_credential.authorize"
)

type GetAPICredentialMessage struct {
	Bearer    string
	Requester *core.APICredential
}

func (GetAPICredentialMessage) Type() string { return TypeGetAPICredential }

func (m GetAPICredentialMessage) Validate() error {
	if strings.TrimSpace(m.Bearer) == "" {
		return queryValidationError("bearer", "bearer token is required")
	}
	return nil
}

// AuthorizeMessage checks a bearer token and, when IdentityHandle is set,
// whether the credential may act for that handle.
type AuthorizeMessage struct {
	Bearer         string
	IdentityHandle string
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if strings.TrimSpace(m.Bearer) == "" {
		return queryValidationError("bearer", "bearer token is required")
	}
	return nil
}
