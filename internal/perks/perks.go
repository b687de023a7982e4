package perks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"universe/internal/metrics"
)

// Voucher types. Tickets are short-lived scannable passes; credits are
// longer-lived account vouchers.
const (
	TypeTicket = "ticket"
	TypeCredit = "credit"
)

// Perk is a catalog entry.
type Perk struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Type        string `json:"type"`
}

// Catalog is the fixed set of redeemable perks.
var Catalog = []Perk{
	{
		ID:          "lunch-skip",
		Name:        "Lunch Queue Skip",
		Description: "Priority Pass: Skip the long line at the cafeteria.",
		Cost:        500,
		Type:        TypeTicket,
	},
	{
		ID:          "jugaad-credits",
		Name:        "Jugaad Bank Credits",
		Description: "Jugaad Bank Credits: Voucher to lower borrowing costs.",
		Cost:        200,
		Type:        TypeCredit,
	},
}

// Voucher is a redeemed perk. Expiry is always computed from the stored
// absolute timestamp, never from elapsed wall-clock state, so it survives
// client reloads. Expired vouchers stay on record.
type Voucher struct {
	TicketID    string    `json:"ticket_id"`
	AccountID   string    `json:"account_id"`
	PerkID      string    `json:"perk_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the voucher is past its validity at now.
func (v Voucher) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

var ErrUnknownPerk = errors.New("unknown perk")

// Store persists vouchers.
type Store interface {
	SaveVoucher(ctx context.Context, v Voucher) error
	VouchersByAccount(ctx context.Context, accountID string) ([]Voucher, error)
}

// Ledger is the wallet debit path.
type Ledger interface {
	Debit(ctx context.Context, accountID string, amount int64, source string) error
}

// Service exchanges points for vouchers.
type Service struct {
	store     Store
	ledger    Ledger
	ticketTTL time.Duration
	creditTTL time.Duration

	newID func() string
	now   func() time.Time
}

// NewService creates the privilege store service.
func NewService(store Store, ledger Ledger, ticketTTL, creditTTL time.Duration, newID func() string) *Service {
	if ticketTTL <= 0 {
		ticketTTL = 15 * time.Minute
	}
	if creditTTL <= 0 {
		creditTTL = 720 * time.Hour
	}
	return &Service{
		store:     store,
		ledger:    ledger,
		ticketTTL: ticketTTL,
		creditTTL: creditTTL,
		newID:     newID,
		now:       time.Now,
	}
}

// Find returns the catalog entry for id.
func Find(id string) (Perk, bool) {
	for _, p := range Catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Perk{}, false
}

// Redeem debits the perk's cost and issues a voucher. An insufficient
// balance surfaces from the ledger before anything is written.
func (s *Service) Redeem(ctx context.Context, accountID, perkID string) (*Voucher, error) {
	perk, ok := Find(perkID)
	if !ok {
		return nil, ErrUnknownPerk
	}

	if err := s.ledger.Debit(ctx, accountID, perk.Cost, fmt.Sprintf("Redeemed: %s", perk.Name)); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ttl := s.ticketTTL
	if perk.Type == TypeCredit {
		ttl = s.creditTTL
	}
	v := Voucher{
		TicketID:    s.newID(),
		AccountID:   accountID,
		PerkID:      perk.ID,
		Name:        perk.Name,
		Description: perk.Description,
		Type:        perk.Type,
		RedeemedAt:  now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.store.SaveVoucher(ctx, v); err != nil {
		return nil, err
	}
	metrics.PerksRedeemed.Inc()
	return &v, nil
}

// Vouchers returns an account's redemption history, newest first. Expired
// vouchers are included; the caller flags them with Expired().
func (s *Service) Vouchers(ctx context.Context, accountID string) ([]Voucher, error) {
	return s.store.VouchersByAccount(ctx, accountID)
}
