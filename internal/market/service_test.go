package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type memStore struct {
	mu       sync.Mutex
	listings map[string]*Listing
	requests map[string]*Request

	// beforeMarkBorrowed and beforeMarkReturned, when set, run before the
	// conditional update to simulate a rival transition winning in between
	// read and write.
	beforeMarkBorrowed func()
	beforeMarkReturned func()
}

func newMemStore() *memStore {
	return &memStore{
		listings: make(map[string]*Listing),
		requests: make(map[string]*Request),
	}
}

func (s *memStore) CreateListing(_ context.Context, l Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = &l
	return nil
}

func (s *memStore) GetListing(_ context.Context, id string) (*Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *memStore) Listings(_ context.Context) ([]Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Listing
	for _, l := range s.listings {
		out = append(out, *l)
	}
	return out, nil
}

func (s *memStore) ListingsByOwner(_ context.Context, ownerID string) ([]Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Listing
	for _, l := range s.listings {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memStore) MarkBorrowed(_ context.Context, id, borrowerID string) (bool, error) {
	if s.beforeMarkBorrowed != nil {
		s.beforeMarkBorrowed()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.Status != StatusAvailable {
		return false, nil
	}
	l.Status = StatusBorrowed
	l.BorrowerID = borrowerID
	return true, nil
}

func (s *memStore) MarkReturned(_ context.Context, id string) (bool, error) {
	if s.beforeMarkReturned != nil {
		s.beforeMarkReturned()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.Status != StatusBorrowed {
		return false, nil
	}
	l.Status = StatusAvailable
	l.BorrowerID = ""
	return true, nil
}

func (s *memStore) MarkUnavailable(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.Status != StatusAvailable {
		return false, nil
	}
	l.Status = StatusUnavailable
	return true, nil
}

func (s *memStore) CreateRequest(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = &req
	return nil
}

func (s *memStore) GetRequest(_ context.Context, id string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) Requests(_ context.Context) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		out = append(out, *r)
	}
	return out, nil
}

func (s *memStore) RequestsByRequester(_ context.Context, requesterID string) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.RequesterID == requesterID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) SetRequestStatus(_ context.Context, id, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	return true, nil
}

// memLedger tracks balances like the wallet engine would.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	sources  []string
}

func newMemLedger(seed map[string]int64) *memLedger {
	if seed == nil {
		seed = make(map[string]int64)
	}
	return &memLedger{balances: seed}
}

func (l *memLedger) Credit(_ context.Context, accountID string, amount int64, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountID] += amount
	l.sources = append(l.sources, source)
	return nil
}

func (l *memLedger) Debit(_ context.Context, accountID string, amount int64, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount > l.balances[accountID] {
		return errors.New("insufficient points")
	}
	l.balances[accountID] -= amount
	l.sources = append(l.sources, source)
	return nil
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestService(store *memStore, ledger *memLedger) *Service {
	return NewService(store, ledger, seqIDs())
}

func TestCreateListingValidation(t *testing.T) {
	svc := newTestService(newMemStore(), newMemLedger(nil))
	ctx := context.Background()

	cases := []struct {
		name, item, desc string
		price            int64
	}{
		{"empty item", "", "a lamp", 10},
		{"blank item", "   ", "a lamp", 10},
		{"empty description", "Lamp", "", 10},
		{"negative price", "Lamp", "a lamp", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateListing(ctx, tc.item, tc.desc, tc.price, "u1", "u1@x.edu", "R1", "")
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("CreateListing = %v, want ErrValidation", err)
			}
		})
	}

	l, err := svc.CreateListing(ctx, " Lamp ", " a lamp ", 0, "u1", "u1@x.edu", "R1", "")
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if l.ItemName != "Lamp" || l.Description != "a lamp" {
		t.Errorf("fields not trimmed: %+v", l)
	}
	if l.Category != "Other" {
		t.Errorf("Category = %q, want default Other", l.Category)
	}
	if l.Status != StatusAvailable {
		t.Errorf("Status = %q, want available", l.Status)
	}
}

func TestBorrowMovesPointsAndStatus(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"borrower": 150})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Calculator", "scientific", 100, "owner", "o@x.edu", "R9", "Electronics")

	got, err := svc.Borrow(ctx, l.ID, "borrower")
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if got.Status != StatusBorrowed || got.BorrowerID != "borrower" {
		t.Errorf("listing after borrow = %+v", got)
	}
	if ledger.balances["borrower"] != 50 {
		t.Errorf("borrower balance = %d, want 50", ledger.balances["borrower"])
	}
	if len(ledger.sources) != 1 || ledger.sources[0] != "Borrowed: Calculator" {
		t.Errorf("sources = %v", ledger.sources)
	}
}

func TestBorrowGuards(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"borrower": 500, "owner": 0})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Calculator", "scientific", 100, "owner", "o@x.edu", "R9", "")

	if _, err := svc.Borrow(ctx, "missing", "borrower"); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("Borrow(missing) = %v, want ErrListingNotFound", err)
	}
	if _, err := svc.Borrow(ctx, l.ID, "owner"); !errors.Is(err, ErrSelfBorrow) {
		t.Errorf("self borrow = %v, want ErrSelfBorrow", err)
	}

	if _, err := svc.Borrow(ctx, l.ID, "borrower"); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if _, err := svc.Borrow(ctx, l.ID, "other"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("borrow of borrowed item = %v, want ErrNotAvailable", err)
	}
}

func TestBorrowInsufficientFundsLeavesListingUntouched(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"poor": 10})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Calculator", "scientific", 100, "owner", "o@x.edu", "R9", "")

	if _, err := svc.Borrow(ctx, l.ID, "poor"); err == nil {
		t.Fatal("Borrow should fail on insufficient funds")
	}
	after, _ := store.GetListing(ctx, l.ID)
	if after.Status != StatusAvailable || after.BorrowerID != "" {
		t.Errorf("listing mutated by failed borrow: %+v", after)
	}
	if ledger.balances["poor"] != 10 {
		t.Errorf("balance = %d, want untouched 10", ledger.balances["poor"])
	}
}

func TestBorrowRaceRefundsDebit(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"borrower": 200})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Calculator", "scientific", 100, "owner", "o@x.edu", "R9", "")

	store.beforeMarkBorrowed = func() {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.listings[l.ID].Status = StatusBorrowed
		store.listings[l.ID].BorrowerID = "rival"
	}

	if _, err := svc.Borrow(ctx, l.ID, "borrower"); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Borrow = %v, want ErrNotAvailable", err)
	}
	if ledger.balances["borrower"] != 200 {
		t.Errorf("balance = %d, want 200 after refund", ledger.balances["borrower"])
	}
}

func TestReturnCreditsOwner(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"borrower": 150, "owner": 0})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Calculator", "scientific", 100, "owner", "o@x.edu", "R9", "")
	if _, err := svc.Borrow(ctx, l.ID, "borrower"); err != nil {
		t.Fatalf("Borrow: %v", err)
	}

	if _, err := svc.Return(ctx, l.ID, "borrower"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("borrower-initiated return = %v, want ErrNotOwner", err)
	}

	got, err := svc.Return(ctx, l.ID, "owner")
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if got.Status != StatusAvailable || got.BorrowerID != "" {
		t.Errorf("listing after return = %+v", got)
	}
	if ledger.balances["owner"] != 100 {
		t.Errorf("owner balance = %d, want 100", ledger.balances["owner"])
	}
	// Borrow then return is zero-sum across the pair.
	if total := ledger.balances["owner"] + ledger.balances["borrower"]; total != 150 {
		t.Errorf("total points = %d, want 150", total)
	}

	if _, err := svc.Return(ctx, l.ID, "owner"); !errors.Is(err, ErrNotBorrowed) {
		t.Errorf("double return = %v, want ErrNotBorrowed", err)
	}
}

func TestReturnRaceReversesCredit(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"borrower": 150, "owner": 0})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Calculator", "scientific", 100, "owner", "o@x.edu", "R9", "")
	if _, err := svc.Borrow(ctx, l.ID, "borrower"); err != nil {
		t.Fatalf("Borrow: %v", err)
	}

	// A rival return settles the listing between this return's credit and
	// its conditional flip.
	store.beforeMarkReturned = func() {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.listings[l.ID].Status = StatusAvailable
		store.listings[l.ID].BorrowerID = ""
	}

	if _, err := svc.Return(ctx, l.ID, "owner"); !errors.Is(err, ErrNotBorrowed) {
		t.Fatalf("Return = %v, want ErrNotBorrowed", err)
	}
	if ledger.balances["owner"] != 0 {
		t.Errorf("owner balance = %d, want 0 after reversal", ledger.balances["owner"])
	}

	var reversed bool
	for _, src := range ledger.sources {
		if src == "Reversal: Calculator" {
			reversed = true
		}
	}
	if !reversed {
		t.Errorf("sources = %v, want a reversal entry", ledger.sources)
	}
}

func TestFreeListingSkipsLedger(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"borrower": 0, "owner": 0})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Umbrella", "plain", 0, "owner", "o@x.edu", "R9", "")
	if _, err := svc.Borrow(ctx, l.ID, "borrower"); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if _, err := svc.Return(ctx, l.ID, "owner"); err != nil {
		t.Fatalf("Return: %v", err)
	}
	if len(ledger.sources) != 0 {
		t.Errorf("free lending touched the ledger: %v", ledger.sources)
	}
}

func TestWithdraw(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"borrower": 500})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	l, _ := svc.CreateListing(ctx, "Calculator", "scientific", 100, "owner", "o@x.edu", "R9", "")

	if err := svc.Withdraw(ctx, l.ID, "stranger"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("stranger withdraw = %v, want ErrNotOwner", err)
	}
	if err := svc.Withdraw(ctx, l.ID, "owner"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if _, err := svc.Borrow(ctx, l.ID, "borrower"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("borrow of withdrawn listing = %v, want ErrNotAvailable", err)
	}

	borrowed, _ := svc.CreateListing(ctx, "Charger", "65W", 50, "owner", "o@x.edu", "R9", "")
	if _, err := svc.Borrow(ctx, borrowed.ID, "borrower"); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if err := svc.Withdraw(ctx, borrowed.ID, "owner"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("withdraw of borrowed listing = %v, want ErrNotAvailable", err)
	}
}

func TestListingsAvailableFilter(t *testing.T) {
	store := newMemStore()
	ledger := newMemLedger(map[string]int64{"b": 100})
	svc := newTestService(store, ledger)
	ctx := context.Background()

	first, _ := svc.CreateListing(ctx, "Lamp", "desk lamp", 10, "owner", "o@x.edu", "R9", "")
	svc.CreateListing(ctx, "Fan", "table fan", 20, "owner", "o@x.edu", "R9", "")
	if _, err := svc.Borrow(ctx, first.ID, "b"); err != nil {
		t.Fatalf("Borrow: %v", err)
	}

	all, err := svc.Listings(ctx, false)
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all listings = %d, want 2", len(all))
	}

	available, err := svc.Listings(ctx, true)
	if err != nil {
		t.Fatalf("Listings(available): %v", err)
	}
	if len(available) != 1 || available[0].ItemName != "Fan" {
		t.Errorf("available = %+v, want just the fan", available)
	}
}

func TestRequestLifecycle(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, newMemLedger(nil))
	ctx := context.Background()

	if _, err := svc.CreateRequest(ctx, "", "need one", 5, "u1", "u1@x.edu", "R1", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("CreateRequest = %v, want ErrValidation", err)
	}

	req, err := svc.CreateRequest(ctx, "Drafter", "for engineering drawing", 30, "u1", "u1@x.edu", "R1", "Stationery")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if req.Status != RequestActive {
		t.Errorf("Status = %q, want active", req.Status)
	}

	if err := svc.CancelRequest(ctx, req.ID, "intruder"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("foreign cancel = %v, want ErrNotOwner", err)
	}
	if err := svc.CancelRequest(ctx, req.ID, "u1"); err != nil {
		t.Fatalf("CancelRequest: %v", err)
	}
	if err := svc.CancelRequest(ctx, req.ID, "u1"); !errors.Is(err, ErrValidation) {
		t.Errorf("double cancel = %v, want ErrValidation", err)
	}

	active, err := svc.ActiveRequests(ctx)
	if err != nil {
		t.Fatalf("ActiveRequests: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active requests = %d, want 0 after cancel", len(active))
	}
}
