package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func apiCredentialHandlers() repository.ModelHandlers[*apiCredentialRecord] {
	return repository.ModelHandlers[*apiCredentialRecord]{
		NewRecord: func() *apiCredentialRecord {
			return &apiCredentialRecord{}
		},
		GetID: func(record *apiCredentialRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.Token)
		},
		SetID: func(record *apiCredentialRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.Token = id.String()
		},
		GetIdentifier: func() string {
			return "token"
		},
		GetIdentifierValue: func(record *apiCredentialRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Token)
		},
	}
}

func verificationHandlers() repository.ModelHandlers[*verificationRecord] {
	return repository.ModelHandlers[*verificationRecord]{
		NewRecord: func() *verificationRecord {
			return &verificationRecord{}
		},
		GetID: func(record *verificationRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.Token)
		},
		SetID: func(record *verificationRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.Token = id.String()
		},
		GetIdentifier: func() string {
			return "token"
		},
		GetIdentifierValue: func(record *verificationRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Token)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
