package wallet

import (
	"context"
	"errors"
	"time"

	"universe/internal/metrics"
)

// EntryType tags a ledger entry.
type EntryType string

const (
	Earned EntryType = "Earned"
	Spent  EntryType = "Spent"
)

// Wallet is an account's point balance. CurrentPoints is spendable and never
// negative; LifetimePoints only ever grows.
type Wallet struct {
	AccountID      string    `json:"account_id"`
	CurrentPoints  int64     `json:"current_points"`
	LifetimePoints int64     `json:"lifetime_points"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Entry is an immutable ledger record. Entries are append-only: the sum of
// Earned amounts minus the sum of Spent amounts equals CurrentPoints.
type Entry struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Type      EntryType `json:"type"`
	Amount    int64     `json:"amount"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient points")
	ErrBadAmount         = errors.New("amount must be positive")
)

// Store performs the atomic balance mutations. Implementations must make the
// read-guard-write-append sequence indivisible with respect to concurrent
// calls on the same wallet; the Postgres repository takes a row lock for the
// duration of the transaction.
type Store interface {
	Credit(ctx context.Context, accountID string, amount int64, source string) error
	Debit(ctx context.Context, accountID string, amount int64, source string) error
	Get(ctx context.Context, accountID string) (*Wallet, error)
	History(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

// Ledger is the single mutation path for wallets. No other component writes
// balances directly.
type Ledger struct {
	store Store
}

// NewLedger creates the ledger engine.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Credit adds amount to the wallet's current and lifetime totals and appends
// an Earned entry.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount int64, source string) error {
	if amount <= 0 {
		return ErrBadAmount
	}
	if err := l.store.Credit(ctx, accountID, amount, source); err != nil {
		return err
	}
	metrics.PointsEarned.Add(float64(amount))
	return nil
}

// Debit removes amount from the wallet's current balance and appends a Spent
// entry. Lifetime points are untouched. Fails with ErrInsufficientFunds when
// the balance cannot cover the amount.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount int64, source string) error {
	if amount <= 0 {
		return ErrBadAmount
	}
	if err := l.store.Debit(ctx, accountID, amount, source); err != nil {
		return err
	}
	metrics.PointsSpent.Add(float64(amount))
	return nil
}

// Balance returns the wallet.
func (l *Ledger) Balance(ctx context.Context, accountID string) (*Wallet, error) {
	w, err := l.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

// History returns the most recent ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.store.History(ctx, accountID, limit)
}
