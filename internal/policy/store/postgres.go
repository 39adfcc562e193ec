package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"covera/internal/policy/models"
	id "covera/pkg/domain"
	"covera/pkg/platform/sentinel"
	"covera/pkg/platform/tx"
)

// Schema creates the policy tables. Applied at startup and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS policies (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT        NOT NULL,
	description     TEXT        NOT NULL,
	coverage_amount BIGINT      NOT NULL,
	premium         BIGINT      NOT NULL,
	holder          TEXT        NOT NULL,
	creator         TEXT        NOT NULL,
	deleted         BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_purchases (
	principal    TEXT        NOT NULL,
	policy_id    BIGINT      NOT NULL REFERENCES policies (id),
	purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (principal, policy_id)
);
`

const uniqueViolation = "23505"

// PostgresStore persists policies and purchases in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed policy store.
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

// EnsureSchema applies the policy schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply policy schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (name, description, coverage_amount, premium, holder, creator, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		RETURNING id
	`
	var assigned int64
	err := s.q(ctx).QueryRowContext(ctx, query,
		policy.Name,
		policy.Description,
		int64(policy.CoverageAmount),
		int64(policy.Premium),
		policy.Holder.String(),
		policy.Creator.String(),
		policy.CreatedAt,
	).Scan(&assigned)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	policy.ID = id.PolicyID(assigned)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	query := `
		SELECT id, name, description, coverage_amount, premium, holder, creator, deleted, created_at
		FROM policies
		WHERE id = $1
	`
	policy, err := scanPolicy(s.q(ctx).QueryRowContext(ctx, query, int64(policyID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return policy, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Policy, error) {
	query := `
		SELECT id, name, description, coverage_amount, premium, holder, creator, deleted, created_at
		FROM policies
		WHERE NOT deleted
		ORDER BY id ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active policies: %w", err)
	}
	defer rows.Close()

	var out []*models.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return out, nil
}

// Execute locks the policy row, runs validate, applies mutate, and persists
// the result in one transaction. Mutate runs only if validate returns nil.
func (s *PostgresStore) Execute(ctx context.Context, policyID id.PolicyID,
	validate func(*models.Policy) error, mutate func(*models.Policy)) (*models.Policy, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT id, name, description, coverage_amount, premium, holder, creator, deleted, created_at
		FROM policies
		WHERE id = $1
		FOR UPDATE
	`
	policy, err := scanPolicy(tx.QueryRowContext(ctx, query, int64(policyID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock policy: %w", err)
	}

	if err := validate(policy); err != nil {
		return nil, err
	}
	mutate(policy)

	update := `
		UPDATE policies
		SET name = $2, description = $3, coverage_amount = $4, premium = $5, deleted = $6
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		int64(policy.ID),
		policy.Name,
		policy.Description,
		int64(policy.CoverageAmount),
		int64(policy.Premium),
		policy.Deleted,
	); err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit policy update: %w", err)
	}
	return policy, nil
}

func (s *PostgresStore) TotalPolicies(ctx context.Context) (int64, error) {
	// Ids are sequential and never reused, so the max id is the count of
	// policies ever created.
	var total int64
	err := s.q(ctx).QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM policies`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count policies: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) AddPurchase(ctx context.Context, principal id.PrincipalID, policyID id.PolicyID) error {
	query := `INSERT INTO policy_purchases (principal, policy_id) VALUES ($1, $2)`
	_, err := s.q(ctx).ExecContext(ctx, query, principal.String(), int64(policyID))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPurchases(ctx context.Context, principal id.PrincipalID) ([]id.PolicyID, error) {
	query := `
		SELECT policy_id
		FROM policy_purchases
		WHERE principal = $1
		ORDER BY purchased_at ASC, policy_id ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, principal.String())
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []id.PolicyID
	for rows.Next() {
		var policyID int64
		if err := rows.Scan(&policyID); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, id.PolicyID(policyID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*models.Policy, error) {
	var (
		p        models.Policy
		policyID int64
		coverage int64
		premium  int64
		holder   string
		creator  string
	)
	err := row.Scan(&policyID, &p.Name, &p.Description, &coverage, &premium, &holder, &creator, &p.Deleted, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.PolicyID(policyID)
	p.CoverageAmount = id.Units(coverage)
	p.Premium = id.Units(premium)
	p.Holder = id.PrincipalID(holder)
	p.Creator = id.PrincipalID(creator)
	return &p, nil
}
