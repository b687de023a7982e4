package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Repository persists accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateAccount inserts a new account row.
func (r *Repository) CreateAccount(ctx context.Context, acct Account, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password, roll_number, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, acct.ID, acct.Email, passwordHash, acct.RollNumber, acct.Role, acct.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "accounts_email_key") {
		return ErrEmailTaken
	}
	return err
}

// GetByEmail returns the account and its password hash, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password, roll_number, role, created_at
		FROM accounts WHERE email = $1
	`, email)
	var acct Account
	var hash string
	if err := row.Scan(&acct.ID, &acct.Email, &hash, &acct.RollNumber, &acct.Role, &acct.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &acct, hash, nil
}

// GetByID returns an account, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, roll_number, role, created_at
		FROM accounts WHERE id = $1
	`, id)
	var acct Account
	if err := row.Scan(&acct.ID, &acct.Email, &acct.RollNumber, &acct.Role, &acct.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &acct, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, account_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, accountID, expiresAt)
	return err
}

// GetRefreshToken looks up a stored refresh token.
func (r *Repository) GetRefreshToken(ctx context.Context, token string) (string, time.Time, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT account_id, expires_at, revoked FROM refresh_tokens WHERE token = $1
	`, token)
	var accountID string
	var expiresAt time.Time
	var revoked bool
	if err := row.Scan(&accountID, &expiresAt, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, err
	}
	return accountID, expiresAt, revoked, nil
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// CreateWallet provisions the account's wallet at zero balance.
func (r *Repository) CreateWallet(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	return err
}
