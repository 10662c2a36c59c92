package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type apiCredentialRecord struct {
	bun.BaseModel `bun:"table:api_credentials,alias:ac"`

	Token              string    `bun:"token,pk"`
	IsDev              bool      `bun:"is_dev,notnull"`
	WantsElevated      bool      `bun:"wants_elevated,notnull"`
	RestrictedIdentity *string   `bun:"restricted_identity"`
	CallbackURI        string    `bun:"callback_uri,notnull"`
	ExpirationSeconds  int       `bun:"expiration_seconds,notnull"`
	Description        string    `bun:"description,notnull"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type verificationRecord struct {
	bun.BaseModel `bun:"table:verification_credentials,alias:vc"`

	Token          string     `bun:"token,pk"`
	APIToken       string     `bun:"api_token,notnull"`
	IdentityHandle string     `bun:"identity_handle,notnull"`
	ExpiresAt      time.Time  `bun:"expires_at,notnull"`
	ConfirmedAt    *time.Time `bun:"confirmed_at"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
