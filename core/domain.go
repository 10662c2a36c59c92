package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidIdentityHandle = errors.New("core: invalid identity handle")
	ErrInvalidBearerToken    = errors.New("core: invalid bearer token")
)

var (
	identityHandlePattern = regexp.MustCompile(`(?i)^a[0-9]{8}$`)
	bearerTokenPattern    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	callbackSchemePattern = regexp.MustCompile(`(?i)^(http|https)://`)
)

// NormalizeIdentityHandle trims and lower-cases a handle and checks its shape.
func NormalizeIdentityHandle(handle string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(handle))
	if !identityHandlePattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentityHandle, handle)
	}
	return normalized, nil
}

func IsBearerToken(token string) bool {
	return bearerTokenPattern.MatchString(strings.TrimSpace(token))
}

type APICredential struct {
	Token              string
	IsDev              bool
	WantsElevated      bool
	RestrictedIdentity string
	CallbackURI        string
	ExpirationSeconds  int
	Description        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Permits reports whether the credential may request verification of handle.
// Dev credentials are pinned to their restricted identity.
func (c APICredential) Permits(handle string) bool {
	if !c.IsDev {
		return true
	}
	restricted := strings.ToLower(strings.TrimSpace(c.RestrictedIdentity))
	return restricted != "" && restricted == strings.ToLower(strings.TrimSpace(handle))
}

func (c APICredential) ExpirationWindow() time.Duration {
	return time.Duration(c.ExpirationSeconds) * time.Second
}

type VerificationState string

const (
	VerificationStateIssued    VerificationState = "issued"
	VerificationStateConfirmed VerificationState = "confirmed"
	VerificationStateExpired   VerificationState = "expired"
)

type VerificationCredential struct {
	Token          string
	APIToken       string
	IdentityHandle string
	ExpiresAt      time.Time
	ConfirmedAt    *time.Time
	CreatedAt      time.Time
}

// State derives the lifecycle state at now. A confirmed credential never
// reports expired.
func (v VerificationCredential) State(now time.Time) VerificationState {
	if v.ConfirmedAt != nil {
		return VerificationStateConfirmed
	}
	if !now.Before(v.ExpiresAt) {
		return VerificationStateExpired
	}
	return VerificationStateIssued
}

func (v VerificationCredential) Confirmable(now time.Time) bool {
	return v.State(now) == VerificationStateIssued
}

type Confirmation struct {
	APICredential APICredential
	Verification  VerificationCredential
}

type IssuedVerification struct {
	Token     string
	ExpiresAt time.Time
}

type UpdateAPICredentialInput struct {
	CallbackURI       string
	Description       string
	WantsElevated     bool
	ExpirationSeconds int
}

type Notification struct {
	Recipient      string
	Subject        string
	HTMLBody       string
	TextBody       string
	IdentityHandle string
	Link           string
}

type DeliveryReceipt struct {
	MessageID string
	Accepted  bool
}
