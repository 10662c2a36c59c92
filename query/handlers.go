package query

import (
	"context"

	"github.com/usufslc/aggie-auth/core"
)

type APICredentialReader interface {
	GetAPICredential(ctx context.Context, bearer string) (core.APICredential, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, bearer string) (core.APICredential, error)
}

type GetAPICredentialQuery struct {
	reader APICredentialReader
}

func NewGetAPICredentialQuery(reader APICredentialReader) *GetAPICredentialQuery {
	return &GetAPICredentialQuery{reader: reader}
}

func (q *GetAPICredentialQuery) Query(ctx context.Context, msg GetAPICredentialMessage) (core.APICredential, error) {
	if q == nil || q.reader == nil {
		return core.APICredential{}, queryDependencyError("query: api credential reader is required")
	}
	if msg.Requester != nil {
		return *msg.Requester, nil
	}
	return q.reader.GetAPICredential(ctx, msg.Bearer)
}

type AuthorizeQuery struct {
	authorizer Authorizer
}

func NewAuthorizeQuery(authorizer Authorizer) *AuthorizeQuery {
	return &AuthorizeQuery{authorizer: authorizer}
}

func (q *AuthorizeQuery) Query(ctx context.Context, msg AuthorizeMessage) (core.APICredential, error) {
	if q == nil || q.authorizer == nil {
		return core.APICredential{}, queryDependencyError("query: authorizer is required")
	}
	credential, err := q.authorizer.Authorize(ctx, msg.Bearer)
	if err != nil {
		return core.APICredential{}, err
	}
	if msg.IdentityHandle == "" {
		return credential, nil
	}
	handle, err := core.NormalizeIdentityHandle(msg.IdentityHandle)
	if err != nil {
		return core.APICredential{}, queryValidationError("identity_handle", "must be an a-number")
	}
	if !credential.Permits(handle) {
		return core.APICredential{}, core.ForbiddenError("cannot authorize given a-number with token")
	}
	return credential, nil
}
