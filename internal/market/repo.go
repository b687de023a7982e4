package market

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists listings and requests in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const listingCols = `id, item_name, description, lending_price, owner_id, owner_email, owner_roll_number, category, status, COALESCE(borrower_id, ''), created_at`

// CreateListing writes a new listing.
func (r *Repository) CreateListing(ctx context.Context, l Listing) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listings (id, item_name, description, lending_price, owner_id, owner_email, owner_roll_number, category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.ItemName, l.Description, l.LendingPrice, l.OwnerID, l.OwnerEmail, l.OwnerRollNumber, l.Category, l.Status, l.CreatedAt)
	return err
}

// GetListing returns a listing, or nil when absent.
func (r *Repository) GetListing(ctx context.Context, id string) (*Listing, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listingCols+` FROM listings WHERE id = $1`, id)
	var l Listing
	if err := scanListing(row.Scan, &l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// Listings returns all listings, newest first.
func (r *Repository) Listings(ctx context.Context) ([]Listing, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+listingCols+` FROM listings ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

// ListingsByOwner returns an owner's listings, newest first.
func (r *Repository) ListingsByOwner(ctx context.Context, ownerID string) ([]Listing, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+listingCols+` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

// MarkBorrowed flips an available listing to borrowed. Returns false when
// the listing was no longer available.
func (r *Repository) MarkBorrowed(ctx context.Context, id, borrowerID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET status = $3, borrower_id = $2
		WHERE id = $1 AND status = $4
	`, id, borrowerID, StatusBorrowed, StatusAvailable)
	return oneRow(res, err)
}

// MarkReturned flips a borrowed listing back to available and clears the
// borrower.
func (r *Repository) MarkReturned(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET status = $2, borrower_id = NULL
		WHERE id = $1 AND status = $3
	`, id, StatusAvailable, StatusBorrowed)
	return oneRow(res, err)
}

// MarkUnavailable withdraws an available listing.
func (r *Repository) MarkUnavailable(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET status = $2
		WHERE id = $1 AND status = $3
	`, id, StatusUnavailable, StatusAvailable)
	return oneRow(res, err)
}

const requestCols = `id, item_name, description, offering_price, requester_id, requester_email, requester_roll_number, category, status, created_at`

// CreateRequest writes a new request.
func (r *Repository) CreateRequest(ctx context.Context, req Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO requests (id, item_name, description, offering_price, requester_id, requester_email, requester_roll_number, category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, req.ID, req.ItemName, req.Description, req.OfferingPrice, req.RequesterID, req.RequesterEmail, req.RequesterRollNumber, req.Category, req.Status, req.CreatedAt)
	return err
}

// GetRequest returns a request, or nil when absent.
func (r *Repository) GetRequest(ctx context.Context, id string) (*Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id = $1`, id)
	var req Request
	err := row.Scan(&req.ID, &req.ItemName, &req.Description, &req.OfferingPrice, &req.RequesterID, &req.RequesterEmail, &req.RequesterRollNumber, &req.Category, &req.Status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Requests returns all requests, newest first.
func (r *Repository) Requests(ctx context.Context) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestCols+` FROM requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// RequestsByRequester returns an account's requests, newest first.
func (r *Repository) RequestsByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestCols+` FROM requests WHERE requester_id = $1 ORDER BY created_at DESC`, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// SetRequestStatus transitions a request from one status to another.
func (r *Repository) SetRequestStatus(ctx context.Context, id, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE requests SET status = $3 WHERE id = $1 AND status = $2
	`, id, from, to)
	return oneRow(res, err)
}

func oneRow(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanListing(scan func(dest ...any) error, l *Listing) error {
	return scan(&l.ID, &l.ItemName, &l.Description, &l.LendingPrice, &l.OwnerID, &l.OwnerEmail, &l.OwnerRollNumber, &l.Category, &l.Status, &l.BorrowerID, &l.CreatedAt)
}

func collectListings(rows *sql.Rows) ([]Listing, error) {
	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := scanListing(rows.Scan, &l); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func collectRequests(rows *sql.Rows) ([]Request, error) {
	var requests []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.ItemName, &req.Description, &req.OfferingPrice, &req.RequesterID, &req.RequesterEmail, &req.RequesterRollNumber, &req.Category, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
