package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/usufslc/aggie-auth/core"
)

const (
	testBearer = "11111111-1111-4111-8111-111111111111"
	testToken  = "22222222-2222-4222-8222-222222222222"
)

type stubMutatingService struct {
	requestFn   func(ctx context.Context, bearer string, handle string) (core.IssuedVerification, error)
	bootstrapFn func(ctx context.Context, handle string) (core.IssuedVerification, error)
	ackFn       func(ctx context.Context, apiToken string) string
	confirmFn   func(ctx context.Context, token string) (core.Confirmation, error)
	deleteVerFn func(ctx context.Context, bearer string, token string) error
	updateFn    func(ctx context.Context, bearer string, in core.UpdateAPICredentialInput) (core.APICredential, error)
	deleteAPIFn func(ctx context.Context, bearer string) error
	purgeFn     func(ctx context.Context, grace time.Duration) (int64, error)

	requestForFn   func(ctx context.Context, owner core.APICredential, handle string) (core.IssuedVerification, error)
	deleteVerForFn func(ctx context.Context, requester core.APICredential, token string) error
	updateForFn    func(ctx context.Context, credential core.APICredential, in core.UpdateAPICredentialInput) (core.APICredential, error)
	deleteAPIForFn func(ctx context.Context, credential core.APICredential) error
}

func (s stubMutatingService) RequestVerification(ctx context.Context, bearer string, handle string) (core.IssuedVerification, error) {
	if s.requestFn == nil {
		return core.IssuedVerification{}, nil
	}
	return s.requestFn(ctx, bearer, handle)
}

func (s stubMutatingService) BootstrapSelfVerification(ctx context.Context, handle string) (core.IssuedVerification, error) {
	if s.bootstrapFn == nil {
		return core.IssuedVerification{}, nil
	}
	return s.bootstrapFn(ctx, handle)
}

func (s stubMutatingService) AcknowledgeBootstrap(ctx context.Context, apiToken string) string {
	if s.ackFn == nil {
		return apiToken
	}
	return s.ackFn(ctx, apiToken)
}

func (s stubMutatingService) Confirm(ctx context.Context, token string) (core.Confirmation, error) {
	if s.confirmFn == nil {
		return core.Confirmation{}, nil
	}
	return s.confirmFn(ctx, token)
}

func (s stubMutatingService) DeleteVerification(ctx context.Context, bearer string, token string) error {
	if s.deleteVerFn == nil {
		return nil
	}
	return s.deleteVerFn(ctx, bearer, token)
}

func (s stubMutatingService) UpdateAPICredential(ctx context.Context, bearer string, in core.UpdateAPICredentialInput) (core.APICredential, error) {
	if s.updateFn == nil {
		return core.APICredential{}, nil
	}
	return s.updateFn(ctx, bearer, in)
}

func (s stubMutatingService) DeleteAPICredential(ctx context.Context, bearer string) error {
	if s.deleteAPIFn == nil {
		return nil
	}
	return s.deleteAPIFn(ctx, bearer)
}

func (s stubMutatingService) PurgeExpiredVerifications(ctx context.Context, grace time.Duration) (int64, error) {
	if s.purgeFn == nil {
		return 0, nil
	}
	return s.purgeFn(ctx, grace)
}

func (s stubMutatingService) RequestVerificationFor(ctx context.Context, owner core.APICredential, handle string) (core.IssuedVerification, error) {
	if s.requestForFn == nil {
		return core.IssuedVerification{}, nil
	}
	return s.requestForFn(ctx, owner, handle)
}

func (s stubMutatingService) DeleteVerificationFor(ctx context.Context, requester core.APICredential, token string) error {
	if s.deleteVerForFn == nil {
		return nil
	}
	return s.deleteVerForFn(ctx, requester, token)
}

func (s stubMutatingService) UpdateAPICredentialFor(ctx context.Context, credential core.APICredential, in core.UpdateAPICredentialInput) (core.APICredential, error) {
	if s.updateForFn == nil {
		return core.APICredential{}, nil
	}
	return s.updateForFn(ctx, credential, in)
}

func (s stubMutatingService) DeleteAPICredentialFor(ctx context.Context, credential core.APICredential) error {
	if s.deleteAPIForFn == nil {
		return nil
	}
	return s.deleteAPIForFn(ctx, credential)
}

func TestRequestVerificationCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.IssuedVerification{Token: testToken, ExpiresAt: time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)}
	called := false
	svc := stubMutatingService{
		requestFn: func(_ context.Context, bearer string, handle string) (core.IssuedVerification, error) {
			called = true
			if bearer != testBearer || handle != "a01234567" {
				t.Fatalf("unexpected request payload: %q %q", bearer, handle)
			}
			return expected, nil
		},
	}

	cmd := NewRequestVerificationCommand(svc)
	collector := gocmd.NewResult[core.IssuedVerification]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, RequestVerificationMessage{Bearer: testBearer, IdentityHandle: "a01234567"}); err != nil {
		t.Fatalf("execute request verification: %v", err)
	}
	if !called {
		t.Fatalf("expected request verification invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Token != expected.Token || !result.ExpiresAt.Equal(expected.ExpiresAt) {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("bootstrap", func(t *testing.T) {
		svc := stubMutatingService{
			bootstrapFn: func(_ context.Context, handle string) (core.IssuedVerification, error) {
				if handle != "A01234567" {
					t.Fatalf("unexpected handle %q", handle)
				}
				return core.IssuedVerification{Token: testToken}, nil
			},
		}
		collector := gocmd.NewResult[core.IssuedVerification]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewBootstrapSelfVerificationCommand(svc).Execute(ctx, BootstrapSelfVerificationMessage{IdentityHandle: "A01234567"}); err != nil {
			t.Fatalf("execute bootstrap: %v", err)
		}
		if result, ok := collector.Load(); !ok || result.Token != testToken {
			t.Fatalf("unexpected bootstrap result %#v", result)
		}
	})

	t.Run("acknowledge", func(t *testing.T) {
		collector := gocmd.NewResult[string]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewAcknowledgeBootstrapCommand(stubMutatingService{}).Execute(ctx, AcknowledgeBootstrapMessage{APIToken: testBearer}); err != nil {
			t.Fatalf("execute acknowledge: %v", err)
		}
		if result, ok := collector.Load(); !ok || result != testBearer {
			t.Fatalf("expected echoed token, got %q", result)
		}
	})

	t.Run("confirm", func(t *testing.T) {
		svc := stubMutatingService{
			confirmFn: func(_ context.Context, token string) (core.Confirmation, error) {
				return core.Confirmation{
					APICredential: core.APICredential{Token: testBearer},
					Verification:  core.VerificationCredential{Token: token},
				}, nil
			},
		}
		collector := gocmd.NewResult[core.Confirmation]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewConfirmVerificationCommand(svc).Execute(ctx, ConfirmVerificationMessage{Token: testToken}); err != nil {
			t.Fatalf("execute confirm: %v", err)
		}
		result, ok := collector.Load()
		if !ok || result.Verification.Token != testToken || result.APICredential.Token != testBearer {
			t.Fatalf("unexpected confirm result %#v", result)
		}
	})

	t.Run("delete verification", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			deleteVerFn: func(_ context.Context, bearer string, token string) error {
				called = true
				if bearer != testBearer || token != testToken {
					t.Fatalf("unexpected delete payload %q %q", bearer, token)
				}
				return nil
			},
		}
		if err := NewDeleteVerificationCommand(svc).Execute(context.Background(), DeleteVerificationMessage{Bearer: testBearer, Token: testToken}); err != nil {
			t.Fatalf("execute delete verification: %v", err)
		}
		if !called {
			t.Fatalf("expected delete verification invocation")
		}
	})

	t.Run("update api credential", func(t *testing.T) {
		svc := stubMutatingService{
			updateFn: func(_ context.Context, bearer string, in core.UpdateAPICredentialInput) (core.APICredential, error) {
				if in.CallbackURI != "https://app.example.test/cb" {
					t.Fatalf("unexpected update input %#v", in)
				}
				return core.APICredential{Token: bearer, CallbackURI: in.CallbackURI}, nil
			},
		}
		collector := gocmd.NewResult[core.APICredential]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := NewUpdateAPICredentialCommand(svc).Execute(ctx, UpdateAPICredentialMessage{
			Bearer: testBearer,
			Input:  core.UpdateAPICredentialInput{CallbackURI: "https://app.example.test/cb"},
		})
		if err != nil {
			t.Fatalf("execute update: %v", err)
		}
		if result, ok := collector.Load(); !ok || result.CallbackURI != "https://app.example.test/cb" {
			t.Fatalf("unexpected update result %#v", result)
		}
	})

	t.Run("delete api credential", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			deleteAPIFn: func(_ context.Context, bearer string) error {
				called = bearer == testBearer
				return nil
			},
		}
		if err := NewDeleteAPICredentialCommand(svc).Execute(context.Background(), DeleteAPICredentialMessage{Bearer: testBearer}); err != nil {
			t.Fatalf("execute delete api credential: %v", err)
		}
		if !called {
			t.Fatalf("expected delete api credential invocation")
		}
	})

	t.Run("purge expired", func(t *testing.T) {
		svc := stubMutatingService{
			purgeFn: func(_ context.Context, grace time.Duration) (int64, error) {
				if grace != 90*time.Second {
					t.Fatalf("unexpected grace %s", grace)
				}
				return 3, nil
			},
		}
		collector := gocmd.NewResult[int64]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewPurgeExpiredCommand(svc).Execute(ctx, PurgeExpiredMessage{GraceSeconds: 90}); err != nil {
			t.Fatalf("execute purge: %v", err)
		}
		if result, ok := collector.Load(); !ok || result != 3 {
			t.Fatalf("expected 3 purged, got %d", result)
		}
	})
}

func TestMutationCommands_UseRequesterWithoutReauthorizing(t *testing.T) {
	requester := &core.APICredential{Token: testBearer, Description: "authorized upstream"}
	var calls []string
	rejectBearer := func(name string) {
		t.Fatalf("%s re-authorized the bearer", name)
	}
	svc := stubMutatingService{
		requestFn: func(context.Context, string, string) (core.IssuedVerification, error) {
			rejectBearer("request verification")
			return core.IssuedVerification{}, nil
		},
		deleteVerFn: func(context.Context, string, string) error {
			rejectBearer("delete verification")
			return nil
		},
		updateFn: func(context.Context, string, core.UpdateAPICredentialInput) (core.APICredential, error) {
			rejectBearer("update api credential")
			return core.APICredential{}, nil
		},
		deleteAPIFn: func(context.Context, string) error {
			rejectBearer("delete api credential")
			return nil
		},
		requestForFn: func(_ context.Context, owner core.APICredential, handle string) (core.IssuedVerification, error) {
			calls = append(calls, "request:"+owner.Description+":"+handle)
			return core.IssuedVerification{Token: testToken}, nil
		},
		deleteVerForFn: func(_ context.Context, requester core.APICredential, token string) error {
			calls = append(calls, "delete_verification:"+requester.Description+":"+token)
			return nil
		},
		updateForFn: func(_ context.Context, credential core.APICredential, in core.UpdateAPICredentialInput) (core.APICredential, error) {
			calls = append(calls, "update:"+credential.Description)
			credential.CallbackURI = in.CallbackURI
			return credential, nil
		},
		deleteAPIForFn: func(_ context.Context, credential core.APICredential) error {
			calls = append(calls, "delete_api_credential:"+credential.Description)
			return nil
		},
	}

	ctx := context.Background()
	issued := gocmd.NewResult[core.IssuedVerification]()
	if err := NewRequestVerificationCommand(svc).Execute(gocmd.ContextWithResult(ctx, issued), RequestVerificationMessage{
		Bearer:         testBearer,
		Requester:      requester,
		IdentityHandle: "a01234567",
	}); err != nil {
		t.Fatalf("execute request verification: %v", err)
	}
	if result, ok := issued.Load(); !ok || result.Token != testToken {
		t.Fatalf("unexpected request result %#v", result)
	}
	if err := NewDeleteVerificationCommand(svc).Execute(ctx, DeleteVerificationMessage{
		Bearer:    testBearer,
		Requester: requester,
		Token:     testToken,
	}); err != nil {
		t.Fatalf("execute delete verification: %v", err)
	}
	updated := gocmd.NewResult[core.APICredential]()
	if err := NewUpdateAPICredentialCommand(svc).Execute(gocmd.ContextWithResult(ctx, updated), UpdateAPICredentialMessage{
		Bearer:    testBearer,
		Requester: requester,
		Input:     core.UpdateAPICredentialInput{CallbackURI: "https://app.example.test/cb"},
	}); err != nil {
		t.Fatalf("execute update: %v", err)
	}
	if result, ok := updated.Load(); !ok || result.CallbackURI != "https://app.example.test/cb" {
		t.Fatalf("unexpected update result %#v", result)
	}
	if err := NewDeleteAPICredentialCommand(svc).Execute(ctx, DeleteAPICredentialMessage{
		Bearer:    testBearer,
		Requester: requester,
	}); err != nil {
		t.Fatalf("execute delete api credential: %v", err)
	}

	expected := []string{
		"request:authorized upstream:a01234567",
		"delete_verification:authorized upstream:" + testToken,
		"update:authorized upstream",
		"delete_api_credential:authorized upstream",
	}
	if len(calls) != len(expected) {
		t.Fatalf("expected %d requester calls, got %v", len(expected), calls)
	}
	for i := range expected {
		if calls[i] != expected[i] {
			t.Fatalf("call %d: expected %q, got %q", i, expected[i], calls[i])
		}
	}
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	serviceErr := core.ForbiddenError("cannot authorize given a-number with token")
	svc := stubMutatingService{
		requestFn: func(context.Context, string, string) (core.IssuedVerification, error) {
			return core.IssuedVerification{}, serviceErr
		},
	}
	collector := gocmd.NewResult[core.IssuedVerification]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewRequestVerificationCommand(svc).Execute(ctx, RequestVerificationMessage{Bearer: testBearer, IdentityHandle: "a01234567"})
	if !errors.Is(err, serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no result on failure")
	}
}

func TestMessages_TypeAndValidate(t *testing.T) {
	cases := []struct {
		name    string
		typ     string
		wantTyp string
		err     error
		wantErr bool
	}{
		{"request ok", RequestVerificationMessage{}.Type(), TypeRequestVerification, RequestVerificationMessage{Bearer: testBearer, IdentityHandle: "A01234567"}.Validate(), false},
		{"request bad handle", RequestVerificationMessage{}.Type(), TypeRequestVerification, RequestVerificationMessage{Bearer: testBearer, IdentityHandle: "b01234567"}.Validate(), true},
		{"request missing bearer", RequestVerificationMessage{}.Type(), TypeRequestVerification, RequestVerificationMessage{IdentityHandle: "a01234567"}.Validate(), true},
		{"bootstrap bad handle", BootstrapSelfVerificationMessage{}.Type(), TypeBootstrapSelfVerification, BootstrapSelfVerificationMessage{IdentityHandle: "a0123"}.Validate(), true},
		{"ack missing token", AcknowledgeBootstrapMessage{}.Type(), TypeAcknowledgeBootstrap, AcknowledgeBootstrapMessage{}.Validate(), true},
		{"confirm missing token", ConfirmVerificationMessage{}.Type(), TypeConfirmVerification, ConfirmVerificationMessage{}.Validate(), true},
		{"delete verification ok", DeleteVerificationMessage{}.Type(), TypeDeleteVerification, DeleteVerificationMessage{Bearer: testBearer, Token: testToken}.Validate(), false},
		{"update missing bearer", UpdateAPICredentialMessage{}.Type(), TypeUpdateAPICredential, UpdateAPICredentialMessage{}.Validate(), true},
		{"delete api missing bearer", DeleteAPICredentialMessage{}.Type(), TypeDeleteAPICredential, DeleteAPICredentialMessage{}.Validate(), true},
		{"purge negative grace", PurgeExpiredMessage{}.Type(), TypePurgeExpired, PurgeExpiredMessage{GraceSeconds: -1}.Validate(), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.typ != tc.wantTyp {
				t.Fatalf("expected type %q, got %q", tc.wantTyp, tc.typ)
			}
			if (tc.err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, tc.err)
			}
		})
	}
}
