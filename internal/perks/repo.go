package perks

import (
	"context"
	"database/sql"
)

// Repository persists vouchers in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveVoucher writes a voucher.
func (r *Repository) SaveVoucher(ctx context.Context, v Voucher) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vouchers (ticket_id, account_id, perk_id, name, description, type, redeemed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.TicketID, v.AccountID, v.PerkID, v.Name, v.Description, v.Type, v.RedeemedAt, v.ExpiresAt)
	return err
}

// VouchersByAccount returns an account's vouchers, newest first.
func (r *Repository) VouchersByAccount(ctx context.Context, accountID string) ([]Voucher, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticket_id, account_id, perk_id, name, description, type, redeemed_at, expires_at
		FROM vouchers
		WHERE account_id = $1
		ORDER BY redeemed_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.TicketID, &v.AccountID, &v.PerkID, &v.Name, &v.Description, &v.Type, &v.RedeemedAt, &v.ExpiresAt); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}
