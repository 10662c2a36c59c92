package query

import (
	"context"
	"testing"

	"github.com/usufslc/aggie-auth/core"
)

const testBearer = "11111111-1111-4111-8111-111111111111"

type stubBroker struct {
	credential core.APICredential
	err        error
	calls      int
}

func (s *stubBroker) GetAPICredential(_ context.Context, bearer string) (core.APICredential, error) {
	s.calls++
	if s.err != nil {
		return core.APICredential{}, s.err
	}
	out := s.credential
	out.Token = bearer
	return out, nil
}

func (s *stubBroker) Authorize(ctx context.Context, bearer string) (core.APICredential, error) {
	return s.GetAPICredential(ctx, bearer)
}

func TestGetAPICredentialQuery_QueryDelegates(t *testing.T) {
	reader := &stubBroker{credential: core.APICredential{CallbackURI: "https://app.example.test/cb"}}
	result, err := NewGetAPICredentialQuery(reader).Query(context.Background(), GetAPICredentialMessage{Bearer: testBearer})
	if err != nil {
		t.Fatalf("query api credential: %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("expected reader invocation, got %d", reader.calls)
	}
	if result.Token != testBearer || result.CallbackURI != "https://app.example.test/cb" {
		t.Fatalf("unexpected api credential result: %#v", result)
	}
}

func TestGetAPICredentialQuery_ReturnsRequesterWithoutReading(t *testing.T) {
	reader := &stubBroker{}
	requester := &core.APICredential{Token: testBearer, Description: "authorized upstream"}
	result, err := NewGetAPICredentialQuery(reader).Query(context.Background(), GetAPICredentialMessage{
		Bearer:    testBearer,
		Requester: requester,
	})
	if err != nil {
		t.Fatalf("query api credential: %v", err)
	}
	if reader.calls != 0 {
		t.Fatalf("expected no reader invocation, got %d", reader.calls)
	}
	if result.Description != "authorized upstream" {
		t.Fatalf("unexpected api credential result: %#v", result)
	}
}

func TestAuthorizeQuery_ChecksIdentityScope(t *testing.T) {
	restricted := &stubBroker{credential: core.APICredential{IsDev: true, RestrictedIdentity: "a01234567"}}
	q := NewAuthorizeQuery(restricted)

	if _, err := q.Query(context.Background(), AuthorizeMessage{Bearer: testBearer}); err != nil {
		t.Fatalf("authorize without handle: %v", err)
	}
	if _, err := q.Query(context.Background(), AuthorizeMessage{Bearer: testBearer, IdentityHandle: "A01234567"}); err != nil {
		t.Fatalf("authorize own handle: %v", err)
	}
	_, err := q.Query(context.Background(), AuthorizeMessage{Bearer: testBearer, IdentityHandle: "a07654321"})
	if !core.HasTextCode(err, core.ErrorForbidden) {
		t.Fatalf("expected forbidden for foreign handle, got %v", err)
	}
	_, err = q.Query(context.Background(), AuthorizeMessage{Bearer: testBearer, IdentityHandle: "nope"})
	if !core.HasTextCode(err, core.ErrorValidationFailed) {
		t.Fatalf("expected validation failure for malformed handle, got %v", err)
	}
}

func TestAuthorizeQuery_PropagatesAuthorizeError(t *testing.T) {
	broker := &stubBroker{err: core.UnauthorizedError("api token invalid or no longer exists")}
	_, err := NewAuthorizeQuery(broker).Query(context.Background(), AuthorizeMessage{Bearer: testBearer, IdentityHandle: "a01234567"})
	if !core.HasTextCode(err, core.ErrorUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestMessages_Type(t *testing.T) {
	if (GetAPICredentialMessage{}).Type() != TypeGetAPICredential {
		t.Fatalf("unexpected get api credential type")
	}
	if (AuthorizeMessage{}).Type() != TypeAuthorize {
		t.Fatalf("unexpected authorize type")
	}
	if err := (AuthorizeMessage{Bearer: testBearer}).Validate(); err != nil {
		t.Fatalf("expected valid authorize message, got %v", err)
	}
}
