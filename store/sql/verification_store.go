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

type VerificationStore struct {
	db   *bun.DB
	repo repository.Repository[*verificationRecord]
}

func NewVerificationStore(db *bun.DB) (*VerificationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*verificationRecord](db, verificationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid verification repository wiring: %w", err)
		}
	}
	return &VerificationStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *VerificationStore) Create(ctx context.Context, in core.VerificationCredential) (core.VerificationCredential, error) {
	if s == nil || s.repo == nil {
		return core.VerificationCredential{}, fmt.Errorf("sqlstore: verification store is not configured")
	}
	if !core.IsBearerToken(in.Token) || !core.IsBearerToken(in.APIToken) {
		return core.VerificationCredential{}, fmt.Errorf("sqlstore: verification token and api token are required")
	}
	if in.ExpiresAt.IsZero() {
		return core.VerificationCredential{}, fmt.Errorf("sqlstore: verification expiry is required")
	}
	record := newVerificationRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.VerificationCredential{}, err
	}
	return created.toDomain(), nil
}

func (s *VerificationStore) Get(ctx context.Context, token string) (core.VerificationCredential, error) {
	if s == nil || s.db == nil {
		return core.VerificationCredential{}, fmt.Errorf("sqlstore: verification store is not configured")
	}
	token = normalizeToken(token)
	record := &verificationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.VerificationCredential{}, fmt.Errorf("%w: token %q", core.ErrVerificationNotFound, token)
		}
		return core.VerificationCredential{}, err
	}
	return record.toDomain(), nil
}

// MarkConfirmed is a single conditional write so that concurrent confirmations
// of the same token produce exactly one winner.
func (s *VerificationStore) MarkConfirmed(ctx context.Context, token string, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: verification store is not configured")
	}
	at = at.UTC()
	res, err := s.db.NewUpdate().
		Model((*verificationRecord)(nil)).
		Set("confirmed_at = ?", at).
		Where("token = ?", normalizeToken(token)).
		Where("confirmed_at IS NULL").
		Where("expires_at > ?", at).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *VerificationStore) Delete(ctx context.Context, token string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: verification store is not configured")
	}
	token = normalizeToken(token)
	res, err := s.db.NewDelete().
		Model((*verificationRecord)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: token %q", core.ErrVerificationNotFound, token)
	}
	return nil
}

func (s *VerificationStore) HasConfirmed(ctx context.Context, apiToken string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: verification store is not configured")
	}
	return s.db.NewSelect().
		Model((*verificationRecord)(nil)).
		Where("?TableAlias.api_token = ?", normalizeToken(apiToken)).
		Where("?TableAlias.confirmed_at IS NOT NULL").
		Exists(ctx)
}

func (s *VerificationStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: verification store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*verificationRecord)(nil)).
		Where("confirmed_at IS NULL").
		Where("expires_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
