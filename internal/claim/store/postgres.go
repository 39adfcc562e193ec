package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"covera/internal/claim/models"
	id "covera/pkg/domain"
	"covera/pkg/platform/sentinel"
	"covera/pkg/platform/tx"
)

// Schema creates the claims table. Applied at startup and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS claims (
	policy_id BIGINT      NOT NULL,
	claim_id  INT         NOT NULL,
	claimant  TEXT        NOT NULL,
	amount    BIGINT      NOT NULL,
	settled   BOOLEAN     NOT NULL DEFAULT FALSE,
	filed_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (policy_id, claim_id)
);
`

const uniqueViolation = "23505"

// PostgresStore persists claims in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed claim store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q prefers a context-carried transaction so callers can scope several
// store calls to one commit.
func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// EnsureSchema applies the claim schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply claim schema: %w", err)
	}
	return nil
}

// CreateIfFirst inserts the claim as index zero of the policy's claim list.
// Any existing claim row for the policy makes the insert fail with
// ErrAlreadyUsed; concurrent racers are resolved by the primary key.
func (s *PostgresStore) CreateIfFirst(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claims (policy_id, claim_id, claimant, amount, settled, filed_at)
		SELECT $1, 0, $2, $3, FALSE, $4
		WHERE NOT EXISTS (SELECT 1 FROM claims WHERE policy_id = $1)
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		int64(claim.PolicyID),
		claim.Claimant.String(),
		int64(claim.Amount),
		claim.FiledAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	if inserted == 0 {
		return sentinel.ErrAlreadyUsed
	}
	claim.ID = 0
	return nil
}

func (s *PostgresStore) ListByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Claim, error) {
	query := `
		SELECT policy_id, claim_id, claimant, amount, settled, filed_at
		FROM claims
		WHERE policy_id = $1
		ORDER BY claim_id ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, int64(policyID))
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	out := []*models.Claim{}
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error) {
	query := `
		SELECT policy_id, claim_id, claimant, amount, settled, filed_at
		FROM claims
		WHERE policy_id = $1 AND claim_id = $2
	`
	claim, err := scanClaim(s.q(ctx).QueryRowContext(ctx, query, int64(policyID), int(claimID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return claim, nil
}

// Execute locks the claim row, runs validate, applies mutate, and persists
// the result in one transaction. Settlement transfers run inside the
// validate callback, so a failed transfer rolls the whole settlement back.
func (s *PostgresStore) Execute(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID,
	validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT policy_id, claim_id, claimant, amount, settled, filed_at
		FROM claims
		WHERE policy_id = $1 AND claim_id = $2
		FOR UPDATE
	`
	claim, err := scanClaim(tx.QueryRowContext(ctx, query, int64(policyID), int(claimID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock claim: %w", err)
	}

	if err := validate(claim); err != nil {
		return nil, err
	}
	mutate(claim)

	update := `
		UPDATE claims
		SET settled = $3
		WHERE policy_id = $1 AND claim_id = $2
	`
	if _, err := tx.ExecContext(ctx, update, int64(claim.PolicyID), int(claim.ID), claim.Settled); err != nil {
		return nil, fmt.Errorf("update claim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim update: %w", err)
	}
	return claim, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		c        models.Claim
		policyID int64
		claimID  int
		claimant string
		amount   int64
	)
	err := row.Scan(&policyID, &claimID, &claimant, &amount, &c.Settled, &c.FiledAt)
	if err != nil {
		return nil, err
	}
	c.PolicyID = id.PolicyID(policyID)
	c.ID = id.ClaimID(claimID)
	c.Claimant = id.PrincipalID(claimant)
	c.Amount = id.Units(amount)
	return &c, nil
}
