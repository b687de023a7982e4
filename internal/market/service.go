package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"universe/internal/metrics"
)

// Listing statuses form a closed set: available -> borrowed -> available
// (return), or available -> unavailable (owner withdrawal).
const (
	StatusAvailable   = "available"
	StatusBorrowed    = "borrowed"
	StatusUnavailable = "unavailable"
)

// Request statuses.
const (
	RequestActive    = "active"
	RequestFulfilled = "fulfilled"
	RequestCancelled = "cancelled"
)

// Listing is an item offered for lending.
type Listing struct {
	ID              string    `json:"id"`
	ItemName        string    `json:"item_name"`
	Description     string    `json:"description"`
	LendingPrice    int64     `json:"lending_price"`
	OwnerID         string    `json:"owner_id"`
	OwnerEmail      string    `json:"owner_email"`
	OwnerRollNumber string    `json:"owner_roll_number"`
	Category        string    `json:"category"`
	Status          string    `json:"status"`
	BorrowerID      string    `json:"borrower_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Request is an item a student is looking for.
type Request struct {
	ID                  string    `json:"id"`
	ItemName            string    `json:"item_name"`
	Description         string    `json:"description"`
	OfferingPrice       int64     `json:"offering_price"`
	RequesterID         string    `json:"requester_id"`
	RequesterEmail      string    `json:"requester_email"`
	RequesterRollNumber string    `json:"requester_roll_number"`
	Category            string    `json:"category"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

var (
	ErrValidation      = errors.New("validation failed")
	ErrListingNotFound = errors.New("listing not found")
	ErrRequestNotFound = errors.New("request not found")
	ErrNotAvailable    = errors.New("item is not available")
	ErrNotBorrowed     = errors.New("item is not borrowed")
	ErrSelfBorrow      = errors.New("you cannot borrow your own item")
	ErrNotOwner        = errors.New("only the owner may do this")
)

// Store is the persistence surface the service needs. The Mark* mutations
// are conditional on the current status and report whether a row changed,
// so racing transitions lose cleanly.
type Store interface {
	CreateListing(ctx context.Context, l Listing) error
	GetListing(ctx context.Context, id string) (*Listing, error)
	Listings(ctx context.Context) ([]Listing, error)
	ListingsByOwner(ctx context.Context, ownerID string) ([]Listing, error)
	MarkBorrowed(ctx context.Context, id, borrowerID string) (bool, error)
	MarkReturned(ctx context.Context, id string) (bool, error)
	MarkUnavailable(ctx context.Context, id string) (bool, error)
	CreateRequest(ctx context.Context, req Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	Requests(ctx context.Context) ([]Request, error)
	RequestsByRequester(ctx context.Context, requesterID string) ([]Request, error)
	SetRequestStatus(ctx context.Context, id, from, to string) (bool, error)
}

// Ledger moves points between wallets on borrow/return.
type Ledger interface {
	Credit(ctx context.Context, accountID string, amount int64, source string) error
	Debit(ctx context.Context, accountID string, amount int64, source string) error
}

// Service runs the lending exchange.
type Service struct {
	store  Store
	ledger Ledger

	newID func() string
	now   func() time.Time
}

// NewService creates the marketplace service.
func NewService(store Store, ledger Ledger, newID func() string) *Service {
	return &Service{store: store, ledger: ledger, newID: newID, now: time.Now}
}

// CreateListing validates and persists a new listing.
func (s *Service) CreateListing(ctx context.Context, itemName, description string, price int64, ownerID, ownerEmail, ownerRoll, category string) (*Listing, error) {
	itemName = strings.TrimSpace(itemName)
	description = strings.TrimSpace(description)
	if itemName == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrValidation)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: lending price must be 0 or greater", ErrValidation)
	}
	if category == "" {
		category = "Other"
	}

	l := Listing{
		ID:              s.newID(),
		ItemName:        itemName,
		Description:     description,
		LendingPrice:    price,
		OwnerID:         ownerID,
		OwnerEmail:      ownerEmail,
		OwnerRollNumber: ownerRoll,
		Category:        category,
		Status:          StatusAvailable,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateListing(ctx, l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Listings returns all listings, optionally filtered to available ones.
// Filtering happens here rather than in the query to mirror how readers
// consume the feed.
func (s *Service) Listings(ctx context.Context, onlyAvailable bool) ([]Listing, error) {
	all, err := s.store.Listings(ctx)
	if err != nil {
		return nil, err
	}
	if !onlyAvailable {
		return all, nil
	}
	available := all[:0]
	for _, l := range all {
		if l.Status == StatusAvailable {
			available = append(available, l)
		}
	}
	return available, nil
}

// Listing returns one listing by id.
func (s *Service) Listing(ctx context.Context, id string) (*Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrListingNotFound
	}
	return l, nil
}

// UserListings returns the listings an account owns.
func (s *Service) UserListings(ctx context.Context, ownerID string) ([]Listing, error) {
	return s.store.ListingsByOwner(ctx, ownerID)
}

// Borrow debits the borrower and flips the listing to borrowed. The debit
// runs first so an insufficient balance leaves the listing untouched; if the
// status flip then loses a race, the debit is compensated.
func (s *Service) Borrow(ctx context.Context, listingID, borrowerID string) (*Listing, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrListingNotFound
	}
	if l.Status != StatusAvailable {
		return nil, ErrNotAvailable
	}
	if l.OwnerID == borrowerID {
		return nil, ErrSelfBorrow
	}

	source := fmt.Sprintf("Borrowed: %s", l.ItemName)
	if l.LendingPrice > 0 {
		if err := s.ledger.Debit(ctx, borrowerID, l.LendingPrice, source); err != nil {
			return nil, err
		}
	}

	flipped, err := s.store.MarkBorrowed(ctx, listingID, borrowerID)
	if err == nil && !flipped {
		err = ErrNotAvailable
	}
	if err != nil {
		if l.LendingPrice > 0 {
			if refundErr := s.ledger.Credit(ctx, borrowerID, l.LendingPrice, fmt.Sprintf("Refund: %s", l.ItemName)); refundErr != nil {
				log.Printf("market: refund after failed borrow of %s failed: %v", listingID, refundErr)
			}
		}
		return nil, err
	}

	metrics.ItemsBorrowed.Inc()
	l.Status = StatusBorrowed
	l.BorrowerID = borrowerID
	return l, nil
}

// Return credits the owner the original lending price and makes the listing
// available again. Only the owner may confirm a return. If the status flip
// loses a race after the credit, the credit is reversed so borrow/return
// stays zero-sum.
func (s *Service) Return(ctx context.Context, listingID, callerID string) (*Listing, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrListingNotFound
	}
	if l.Status != StatusBorrowed {
		return nil, ErrNotBorrowed
	}
	if l.OwnerID != callerID {
		return nil, ErrNotOwner
	}

	if l.LendingPrice > 0 {
		if err := s.ledger.Credit(ctx, l.OwnerID, l.LendingPrice, fmt.Sprintf("Item Returned: %s", l.ItemName)); err != nil {
			return nil, err
		}
	}
	flipped, err := s.store.MarkReturned(ctx, listingID)
	if err == nil && !flipped {
		err = ErrNotBorrowed
	}
	if err != nil {
		if l.LendingPrice > 0 {
			if reverseErr := s.ledger.Debit(ctx, l.OwnerID, l.LendingPrice, fmt.Sprintf("Reversal: %s", l.ItemName)); reverseErr != nil {
				log.Printf("market: reversal after failed return of %s failed: %v", listingID, reverseErr)
			}
		}
		return nil, err
	}

	metrics.ItemsReturned.Inc()
	l.Status = StatusAvailable
	l.BorrowerID = ""
	return l, nil
}

// Withdraw takes an available listing off the market.
func (s *Service) Withdraw(ctx context.Context, listingID, callerID string) error {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if l == nil {
		return ErrListingNotFound
	}
	if l.OwnerID != callerID {
		return ErrNotOwner
	}
	if l.Status != StatusAvailable {
		return ErrNotAvailable
	}
	flipped, err := s.store.MarkUnavailable(ctx, listingID)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrNotAvailable
	}
	return nil
}

// CreateRequest validates and persists a new request.
func (s *Service) CreateRequest(ctx context.Context, itemName, description string, price int64, requesterID, requesterEmail, requesterRoll, category string) (*Request, error) {
	itemName = strings.TrimSpace(itemName)
	description = strings.TrimSpace(description)
	if itemName == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrValidation)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: offering price must be 0 or greater", ErrValidation)
	}
	if category == "" {
		category = "Other"
	}

	req := Request{
		ID:                  s.newID(),
		ItemName:            itemName,
		Description:         description,
		OfferingPrice:       price,
		RequesterID:         requesterID,
		RequesterEmail:      requesterEmail,
		RequesterRollNumber: requesterRoll,
		Category:            category,
		Status:              RequestActive,
		CreatedAt:           s.now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ActiveRequests returns requests still open, newest first.
func (s *Service) ActiveRequests(ctx context.Context) ([]Request, error) {
	all, err := s.store.Requests(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, req := range all {
		if req.Status == RequestActive {
			active = append(active, req)
		}
	}
	return active, nil
}

// UserRequests returns the requests an account has posted.
func (s *Service) UserRequests(ctx context.Context, requesterID string) ([]Request, error) {
	return s.store.RequestsByRequester(ctx, requesterID)
}

// CancelRequest moves an active request to cancelled.
func (s *Service) CancelRequest(ctx context.Context, requestID, callerID string) error {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.RequesterID != callerID {
		return ErrNotOwner
	}
	changed, err := s.store.SetRequestStatus(ctx, requestID, RequestActive, RequestCancelled)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: request is not active", ErrValidation)
	}
	return nil
}
