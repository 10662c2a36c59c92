package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/usufslc/aggie-auth/core"
)

type APICredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*apiCredentialRecord]
}

func NewAPICredentialStore(db *bun.DB) (*APICredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*apiCredentialRecord](db, apiCredentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid api credential repository wiring: %w", err)
		}
	}
	return &APICredentialStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *APICredentialStore) Create(ctx context.Context, in core.APICredential) (core.APICredential, error) {
	if s == nil || s.repo == nil {
		return core.APICredential{}, fmt.Errorf("sqlstore: api credential store is not configured")
	}
	if !core.IsBearerToken(in.Token) {
		return core.APICredential{}, fmt.Errorf("sqlstore: api credential token is invalid")
	}
	record := newAPICredentialRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.APICredential{}, err
	}
	return created.toDomain(), nil
}

func (s *APICredentialStore) Get(ctx context.Context, token string) (core.APICredential, error) {
	if s == nil || s.db == nil {
		return core.APICredential{}, fmt.Errorf("sqlstore: api credential store is not configured")
	}
	record, err := s.load(ctx, s.db, normalizeToken(token))
	if err != nil {
		return core.APICredential{}, err
	}
	return record.toDomain(), nil
}

// Update rewrites the mutable settings of an existing credential. IsDev and
// RestrictedIdentity are never changed after creation.
func (s *APICredentialStore) Update(ctx context.Context, in core.APICredential) (core.APICredential, error) {
	if s == nil || s.db == nil {
		return core.APICredential{}, fmt.Errorf("sqlstore: api credential store is not configured")
	}
	token := normalizeToken(in.Token)
	now := time.Now().UTC()

	var updated *apiCredentialRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, updateErr := tx.NewUpdate().
			Model((*apiCredentialRecord)(nil)).
			Set("callback_uri = ?", in.CallbackURI).
			Set("description = ?", in.Description).
			Set("wants_elevated = ?", in.WantsElevated).
			Set("expiration_seconds = ?", in.ExpirationSeconds).
			Set("updated_at = ?", now).
			Where("token = ?", token).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: token %q", core.ErrAPICredentialNotFound, token)
		}
		record, loadErr := s.load(ctx, tx, token)
		if loadErr != nil {
			return loadErr
		}
		updated = record
		return nil
	})
	if err != nil {
		return core.APICredential{}, err
	}
	return updated.toDomain(), nil
}

func (s *APICredentialStore) Delete(ctx context.Context, token string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: api credential store is not configured")
	}
	token = normalizeToken(token)
	res, err := s.db.NewDelete().
		Model((*apiCredentialRecord)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: token %q", core.ErrAPICredentialNotFound, token)
	}
	return nil
}

func (s *APICredentialStore) load(ctx context.Context, db bun.IDB, token string) (*apiCredentialRecord, error) {
	record := &apiCredentialRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: token %q", core.ErrAPICredentialNotFound, token)
		}
		return nil, err
	}
	return record, nil
}
