package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestAuthorize_ResolvesKnownBearer(t *testing.T) {
	fixture := newBrokerFixture(t)
	fixture.seedAPICredential(t, APICredential{})

	credential, err := fixture.svc.Authorize(context.Background(), " "+testAPIToken+" ")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if credential.Token != testAPIToken {
		t.Fatalf("expected %q, got %q", testAPIToken, credential.Token)
	}
}

func TestAuthorize_RejectsWithChallenge(t *testing.T) {
	fixture := newBrokerFixture(t)
	fixture.seedAPICredential(t, APICredential{})

	cases := map[string]string{
		"empty":       "",
		"not uuid":    "letmein",
		"uuid v1":     "11111111-1111-1111-8111-111111111111",
		"bad variant": "11111111-1111-4111-7111-111111111111",
		"unknown":     testOtherAPIToken,
	}
	for name, bearer := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fixture.svc.Authorize(context.Background(), bearer)
			var richErr *goerrors.Error
			if !goerrors.As(err, &richErr) {
				t.Fatalf("expected go-errors type, got %T", err)
			}
			if richErr.TextCode != ErrorUnauthorized || richErr.Code != 401 {
				t.Fatalf("expected unauthorized 401, got %q/%d", richErr.TextCode, richErr.Code)
			}
			if richErr.Metadata[MetadataWWWAuthenticate] != BearerChallenge {
				t.Fatalf("expected bearer challenge metadata, got %#v", richErr.Metadata)
			}
		})
	}
}

func TestAuthorize_StoreFailureIsNotUnauthorized(t *testing.T) {
	fixture := newBrokerFixture(t)
	fixture.apiStore.getErr = errors.New("database is locked")

	_, err := fixture.svc.Authorize(context.Background(), testAPIToken)
	if err == nil || HasTextCode(err, ErrorUnauthorized) {
		t.Fatalf("expected storage failure to surface, got %v", err)
	}
}

func TestIsBearerToken(t *testing.T) {
	if !IsBearerToken("3F2504E0-4F89-41D3-9A0C-0305E82C3301") {
		t.Fatalf("uppercase v4 uuid should be accepted")
	}
	if IsBearerToken("3F2504E0-4F89-11D3-9A0C-0305E82C3301") {
		t.Fatalf("v1 uuid should be rejected")
	}
}
