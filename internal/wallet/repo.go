package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists wallets and ledger entries in Postgres. Mutations run
// in a single transaction holding a row lock on the wallet, which serializes
// concurrent credits/debits on the same account.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Credit applies an earn inside one transaction.
func (r *Repository) Credit(ctx context.Context, accountID string, amount int64, source string) error {
	return r.mutate(ctx, accountID, func(tx *sql.Tx, current, lifetime int64) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE wallets
			SET current_points = $2, lifetime_points = $3, updated_at = NOW()
			WHERE account_id = $1
		`, accountID, current+amount, lifetime+amount)
		if err != nil {
			return err
		}
		return r.appendEntry(ctx, tx, accountID, Earned, amount, source)
	})
}

// Debit applies a spend inside one transaction. The guard runs against the
// locked row, so two concurrent debits cannot both pass it.
func (r *Repository) Debit(ctx context.Context, accountID string, amount int64, source string) error {
	return r.mutate(ctx, accountID, func(tx *sql.Tx, current, lifetime int64) error {
		if amount > current {
			return ErrInsufficientFunds
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE wallets
			SET current_points = $2, updated_at = NOW()
			WHERE account_id = $1
		`, accountID, current-amount)
		if err != nil {
			return err
		}
		return r.appendEntry(ctx, tx, accountID, Spent, amount, source)
	})
}

// mutate locks the wallet row, hands the balances to fn, and commits.
func (r *Repository) mutate(ctx context.Context, accountID string, fn func(tx *sql.Tx, current, lifetime int64) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT current_points, lifetime_points FROM wallets
		WHERE account_id = $1
		FOR UPDATE
	`, accountID)
	var current, lifetime int64
	if err := row.Scan(&current, &lifetime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWalletNotFound
		}
		return err
	}

	if err := fn(tx, current, lifetime); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) appendEntry(ctx context.Context, tx *sql.Tx, accountID string, typ EntryType, amount int64, source string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, type, amount, source, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.NewString(), accountID, typ, amount, source)
	return err
}

// Get returns the wallet, or nil when absent.
func (r *Repository) Get(ctx context.Context, accountID string) (*Wallet, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT account_id, current_points, lifetime_points, updated_at
		FROM wallets WHERE account_id = $1
	`, accountID)
	var w Wallet
	if err := row.Scan(&w.AccountID, &w.CurrentPoints, &w.LifetimePoints, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// History returns ledger entries newest first.
func (r *Repository) History(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, type, amount, source, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &e.Amount, &e.Source, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
