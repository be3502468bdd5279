package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"accountopen/internal/kyc/domain"
	"accountopen/internal/kyc/models"
)

// PostgresStore persists verifications in the kyc_verifications table with
// component results as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectVerification = `
	SELECT id, application_id, provider, provider_verification_id, status, confidence,
		   next_step, results, failure_reason, request_id, verified_at, created_at, updated_at
	FROM kyc_verifications
`

func (s *PostgresStore) Save(ctx context.Context, v *models.Verification) error {
	results, err := encodeResults(v.Results)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO kyc_verifications (
			id, application_id, provider, provider_verification_id, status, confidence,
			next_step, results, failure_reason, request_id, verified_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		v.ID,
		v.ApplicationID,
		v.Provider,
		v.ProviderVerificationID,
		string(v.Status),
		v.Confidence,
		string(v.NextStep),
		results,
		v.FailureReason,
		v.RequestID,
		v.VerifiedAt,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("verification %s: %w", v.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("save verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, v *models.Verification) error {
	results, err := encodeResults(v.Results)
	if err != nil {
		return err
	}
	query := `
		UPDATE kyc_verifications
		SET provider = $2, provider_verification_id = $3, status = $4, confidence = $5,
			next_step = $6, results = $7, failure_reason = $8, verified_at = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		v.ID,
		v.Provider,
		v.ProviderVerificationID,
		string(v.Status),
		v.Confidence,
		string(v.NextStep),
		results,
		v.FailureReason,
		v.VerifiedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Verification, error) {
	v, err := scanVerification(s.db.QueryRowContext(ctx, selectVerification+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find verification by id: %w", err)
	}
	return v, nil
}

// FindLatestByApplication orders by created_at, then updated_at, then id, all
// descending, matching InMemoryStore.
func (s *PostgresStore) FindLatestByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Verification, error) {
	v, err := scanVerification(s.db.QueryRowContext(ctx, selectVerification+`
		WHERE application_id = $1
		ORDER BY created_at DESC, updated_at DESC, id DESC
		LIMIT 1
	`, applicationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find latest verification: %w", err)
	}
	return v, nil
}

func scanVerification(row *sql.Row) (*models.Verification, error) {
	var (
		v          models.Verification
		status     string
		nextStep   string
		results    []byte
		verifiedAt sql.NullTime
	)
	err := row.Scan(
		&v.ID,
		&v.ApplicationID,
		&v.Provider,
		&v.ProviderVerificationID,
		&status,
		&v.Confidence,
		&nextStep,
		&results,
		&v.FailureReason,
		&v.RequestID,
		&verifiedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = domain.Status(status)
	v.NextStep = models.NextStep(nextStep)
	if verifiedAt.Valid {
		at := verifiedAt.Time
		v.VerifiedAt = &at
	}
	if len(results) > 0 {
		var decoded domain.VerificationResults
		if err := json.Unmarshal(results, &decoded); err != nil {
			return nil, fmt.Errorf("decode verification results: %w", err)
		}
		v.Results = &decoded
	}
	return &v, nil
}

// encodeResults returns nil for a pending record so the column stays NULL.
func encodeResults(results *domain.VerificationResults) (any, error) {
	if results == nil {
		return nil, nil
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode verification results: %w", err)
	}
	return string(payload), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
