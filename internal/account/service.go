package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"universe/internal/auth"
)

// Account is a registered campus user.
type Account struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	RollNumber string    `json:"roll_number"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrEmailNotAllowed    = errors.New("only .edu email addresses are allowed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRollNumberRequired = errors.New("roll number is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrBadCredentials     = errors.New("invalid email or password")
	ErrBadRefreshToken    = errors.New("refresh token invalid or revoked")
	ErrNotFound           = errors.New("account not found")
)

// Admission is restricted to institutional addresses.
var eduEmailRe = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+\.edu$`)

// ValidEmail reports whether the address passes the .edu admission rule.
// Matching is case-insensitive.
func ValidEmail(email string) bool {
	return eduEmailRe.MatchString(strings.ToLower(email))
}

// Store is the persistence surface the service needs.
type Store interface {
	CreateAccount(ctx context.Context, acct Account, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*Account, string, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	SaveRefreshToken(ctx context.Context, accountID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (accountID string, expiresAt time.Time, revoked bool, err error)
	RevokeRefreshToken(ctx context.Context, token string) error
	CreateWallet(ctx context.Context, accountID string) error
}

// Service handles registration and session lifecycle.
type Service struct {
	store      Store
	bcryptCost int
	issuer     string
	signingKey string
	accessTTL  time.Duration
	refreshTTL time.Duration

	newID func() string
	now   func() time.Time
}

// NewService creates an account service.
func NewService(store Store, bcryptCost int, issuer, signingKey string, accessTTL, refreshTTL time.Duration, newID func() string) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:      store,
		bcryptCost: bcryptCost,
		issuer:     issuer,
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		newID:      newID,
		now:        time.Now,
	}
}

// Register creates an account and its wallet. The email must match the
// institutional .edu pattern and the roll number must be non-empty.
func (s *Service) Register(ctx context.Context, email, password, rollNumber, role string) (*Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !ValidEmail(email) {
		return nil, ErrEmailNotAllowed
	}
	if strings.TrimSpace(rollNumber) == "" {
		return nil, ErrRollNumberRequired
	}
	if role != auth.RoleStudent && role != auth.RoleTeacher {
		role = auth.RoleStudent
	}
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acct := Account{
		ID:         s.newID(),
		Email:      email,
		RollNumber: strings.TrimSpace(rollNumber),
		Role:       role,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acct, string(hash)); err != nil {
		return nil, err
	}
	if err := s.store.CreateWallet(ctx, acct.ID); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return &acct, nil
}

// Login verifies credentials and issues a token pair. The refresh token is
// persisted so it can be rotated and revoked.
func (s *Service) Login(ctx context.Context, email, password string) (*Account, auth.TokenPair, error) {
	acct, hash, err := s.store.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if acct == nil {
		return nil, auth.TokenPair{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, auth.TokenPair{}, ErrBadCredentials
	}

	tokens, err := auth.Issue(acct.ID, acct.Role, s.issuer, s.signingKey, s.accessTTL, s.refreshTTL)
	if err != nil {
		return nil, auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.SaveRefreshToken(ctx, acct.ID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		return nil, auth.TokenPair{}, fmt.Errorf("save refresh token: %w", err)
	}
	return acct, tokens, nil
}

// Refresh rotates a refresh token: the old token is revoked and a new pair
// is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	accountID, expiresAt, revoked, err := s.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if accountID == "" || revoked || s.now().After(expiresAt) {
		return auth.TokenPair{}, ErrBadRefreshToken
	}
	acct, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if acct == nil {
		return auth.TokenPair{}, ErrBadRefreshToken
	}

	if err := s.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return auth.TokenPair{}, err
	}
	tokens, err := auth.Issue(acct.ID, acct.Role, s.issuer, s.signingKey, s.accessTTL, s.refreshTTL)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.store.SaveRefreshToken(ctx, acct.ID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		return auth.TokenPair{}, err
	}
	return tokens, nil
}

// Logout revokes a refresh token. Access tokens simply age out.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.store.RevokeRefreshToken(ctx, refreshToken)
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotFound
	}
	return acct, nil
}
