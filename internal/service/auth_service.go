package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atmservice/internal/clock"
	"atmservice/internal/model"
	"atmservice/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TokenTypeBearer = "Bearer"

// PINVerifier checks a plaintext PIN against its stored hash.
type PINVerifier interface {
	Verify(pin, hash string) bool
}

// TokenIssuer signs a session token for an authenticated customer.
type TokenIssuer interface {
	Issue(customerID uuid.UUID, name string, issuedAt time.Time) (string, error)
}

type AuthOptions struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
	SessionTTL        time.Duration
	// ActivityTopic, when set, records lockouts in the outbox.
	ActivityTopic string
}

func DefaultAuthOptions() AuthOptions {
	return AuthOptions{
		MaxFailedAttempts: 3,
		LockDuration:      15 * time.Minute,
		SessionTTL:        time.Hour,
	}
}

type Session struct {
	CustomerID       uuid.UUID
	CustomerName     string
	Token            string
	TokenType        string
	ExpiresInSeconds int64
}

type AuthService struct {
	store    repository.Store
	verifier PINVerifier
	issuer   TokenIssuer
	clock    clock.Clock
	logger   *zap.Logger
	opts     AuthOptions
}

func NewAuthService(store repository.Store, verifier PINVerifier, issuer TokenIssuer,
	clk clock.Clock, logger *zap.Logger, opts AuthOptions) *AuthService {
	return &AuthService{
		store:    store,
		verifier: verifier,
		issuer:   issuer,
		clock:    clk,
		logger:   logger.With(zap.String("component", "auth_service")),
		opts:     opts,
	}
}

type loginOutcome int

const (
	outcomeAuthenticated loginOutcome = iota
	outcomeUnknownCard
	outcomeStillLocked
	outcomeWrongPIN
	outcomeLockedOut
)

// Login authenticates a card and PIN.
//
// Failed attempts are counted per customer. Reaching MaxFailedAttempts locks
// the customer for LockDuration; the lock is lifted lazily by the first login
// that observes it expired. Counter and lock changes are committed even when
// Login returns an error.
func (s *AuthService) Login(ctx context.Context, cardNumber, pin string) (*Session, error) {
	now := s.clock.Now().UTC()

	var (
		outcome  loginOutcome
		customer *model.Customer
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		c, err := tx.Customers().GetByCardNumberForUpdate(ctx, cardNumber)
		if errors.Is(err, repository.ErrCustomerNotFound) {
			outcome = outcomeUnknownCard
			return nil
		}
		if err != nil {
			return fmt.Errorf("load customer: %w", err)
		}
		customer = c
		outcome, err = s.attempt(ctx, tx, c, pin, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case outcomeUnknownCard:
		s.logger.Warn("login rejected: unknown card", zap.String("card", maskCard(cardNumber)))
		return nil, ErrUnknownCard
	case outcomeStillLocked:
		s.logger.Warn("login rejected: customer locked",
			zap.String("customer_id", customer.ID.String()),
			zap.Timep("locked_until", customer.LockedUntil))
		return nil, ErrAccountLocked
	case outcomeWrongPIN:
		s.logger.Warn("login rejected: wrong PIN",
			zap.String("customer_id", customer.ID.String()),
			zap.Int("failed_attempts", customer.FailedAttempts))
		return nil, ErrWrongPIN
	case outcomeLockedOut:
		s.logger.Warn("customer locked after repeated failures",
			zap.String("customer_id", customer.ID.String()),
			zap.Int("failed_attempts", customer.FailedAttempts),
			zap.Timep("locked_until", customer.LockedUntil))
		return nil, ErrAccountLocked
	}

	token, err := s.issuer.Issue(customer.ID, customer.Name, now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("login succeeded", zap.String("customer_id", customer.ID.String()))
	return &Session{
		CustomerID:       customer.ID,
		CustomerName:     customer.Name,
		Token:            token,
		TokenType:        TokenTypeBearer,
		ExpiresInSeconds: int64(s.opts.SessionTTL / time.Second),
	}, nil
}

// attempt advances the throttle state of c for one PIN entry and persists it.
func (s *AuthService) attempt(ctx context.Context, tx repository.Store, c *model.Customer, pin string, now time.Time) (loginOutcome, error) {
	if c.IsLockedAt(now) {
		return outcomeStillLocked, nil
	}
	if c.LockedUntil != nil {
		c.Unlock()
	}

	if s.verifier.Verify(pin, c.PinHash) {
		c.Unlock()
		if err := tx.Customers().Save(ctx, c); err != nil {
			return 0, fmt.Errorf("reset throttle: %w", err)
		}
		return outcomeAuthenticated, nil
	}

	c.FailedAttempts++
	outcome := outcomeWrongPIN
	if c.FailedAttempts >= s.opts.MaxFailedAttempts {
		until := now.Add(s.opts.LockDuration)
		c.LockedUntil = &until
		outcome = outcomeLockedOut
	}
	if err := tx.Customers().Save(ctx, c); err != nil {
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	if outcome == outcomeLockedOut {
		if err := enqueueEvent(ctx, tx, s.opts.ActivityTopic, lockoutEvent(c, now)); err != nil {
			return 0, err
		}
	}
	return outcome, nil
}

func maskCard(card string) string {
	if len(card) <= 4 {
		return "****"
	}
	return "****" + card[len(card)-4:]
}
