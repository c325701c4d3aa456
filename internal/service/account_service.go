package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atmservice/internal/clock"
	"atmservice/internal/model"
	"atmservice/internal/repository"
	"atmservice/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultStatementSize = 10
	MaxStatementSize     = 50
)

// Snapshot is an account's state as seen at one instant. WithdrawnToday covers
// the current UTC calendar day.
type Snapshot struct {
	CustomerID          uuid.UUID
	CustomerName        string
	Balance             decimal.Decimal
	DailyLimit          decimal.Decimal
	WithdrawnToday      decimal.Decimal
	RemainingDailyLimit decimal.Decimal
}

func newSnapshot(account *model.Account, name string, withdrawnToday decimal.Decimal) *Snapshot {
	remaining := account.DailyLimit.Sub(withdrawnToday)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return &Snapshot{
		CustomerID:          account.CustomerID,
		CustomerName:        name,
		Balance:             account.Balance,
		DailyLimit:          account.DailyLimit,
		WithdrawnToday:      withdrawnToday,
		RemainingDailyLimit: remaining,
	}
}

type AccountService struct {
	store         repository.Store
	locker        Locker
	clock         clock.Clock
	logger        *zap.Logger
	activityTopic string
}

type AccountOption func(*AccountService)

// WithAccountLocker takes a cross-process lock per customer before the
// database row lock.
func WithAccountLocker(l Locker) AccountOption {
	return func(s *AccountService) { s.locker = l }
}

// WithAccountActivityTopic records deposits and withdrawals in the outbox.
func WithAccountActivityTopic(topic string) AccountOption {
	return func(s *AccountService) { s.activityTopic = topic }
}

func NewAccountService(store repository.Store, clk clock.Clock, logger *zap.Logger, opts ...AccountOption) *AccountService {
	s := &AccountService{
		store:  store,
		locker: noopLocker{},
		clock:  clk,
		logger: logger.With(zap.String("component", "account_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AccountService) GetSnapshot(ctx context.Context, customerID uuid.UUID) (*Snapshot, error) {
	now := s.clock.Now().UTC()

	account, err := s.store.Accounts().GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, notFound(err, "load account")
	}
	withdrawn, err := withdrawnOn(ctx, s.store, account.ID, now)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.Customers().GetByID(ctx, customerID)
	if err != nil {
		return nil, notFound(err, "load customer")
	}
	return newSnapshot(account, customer.Name, withdrawn), nil
}

func (s *AccountService) Deposit(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*Snapshot, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		snapshot *Snapshot
		trans    *model.Transaction
	)
	err := s.withAccountLock(ctx, customerID, func(tx repository.Store, account *model.Account, name string, now time.Time) error {
		newBalance := account.Balance.Add(amount)
		var err error
		if trans, err = s.apply(ctx, tx, account, model.TransactionTypeDeposit, amount, newBalance, now); err != nil {
			return err
		}
		withdrawn, err := withdrawnOn(ctx, tx, account.ID, now)
		if err != nil {
			return err
		}
		snapshot = newSnapshot(account, name, withdrawn)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit completed",
		zap.String("customer_id", customerID.String()),
		zap.String("transaction_no", trans.TransactionNo),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", snapshot.Balance.StringFixed(2)))
	return snapshot, nil
}

// Withdraw checks the balance before the daily limit, so a withdrawal that
// violates both reports insufficient funds.
func (s *AccountService) Withdraw(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*Snapshot, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		snapshot *Snapshot
		trans    *model.Transaction
	)
	err := s.withAccountLock(ctx, customerID, func(tx repository.Store, account *model.Account, name string, now time.Time) error {
		withdrawn, err := withdrawnOn(ctx, tx, account.ID, now)
		if err != nil {
			return err
		}
		if amount.GreaterThan(account.Balance) {
			return ErrInsufficientFunds
		}
		if amount.GreaterThan(account.DailyLimit.Sub(withdrawn)) {
			return ErrDailyLimitExceeded
		}

		newBalance := account.Balance.Sub(amount)
		if trans, err = s.apply(ctx, tx, account, model.TransactionTypeWithdrawal, amount, newBalance, now); err != nil {
			return err
		}
		snapshot = newSnapshot(account, name, withdrawn.Add(amount))
		return nil
	})
	if err != nil {
		var be *BusinessError
		if errors.As(err, &be) {
			s.logger.Info("withdrawal rejected",
				zap.String("customer_id", customerID.String()),
				zap.String("amount", amount.StringFixed(2)),
				zap.String("reason", string(be.Kind)))
		}
		return nil, err
	}

	s.logger.Info("withdrawal completed",
		zap.String("customer_id", customerID.String()),
		zap.String("transaction_no", trans.TransactionNo),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", snapshot.Balance.StringFixed(2)))
	return snapshot, nil
}

// RecentTransactions returns the newest transactions first. limit is clamped
// to [1, MaxStatementSize]; zero or less selects DefaultStatementSize.
func (s *AccountService) RecentTransactions(ctx context.Context, customerID uuid.UUID, limit int) ([]*model.Transaction, error) {
	switch {
	case limit <= 0:
		limit = DefaultStatementSize
	case limit > MaxStatementSize:
		limit = MaxStatementSize
	}

	account, err := s.store.Accounts().GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, notFound(err, "load account")
	}
	list, err := s.store.Transactions().ListRecent(ctx, account.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

type lockedAccountFunc func(tx repository.Store, account *model.Account, customerName string, now time.Time) error

// withAccountLock runs fn in a unit of work holding the customer's account row
// exclusively. Any error from fn rolls the whole unit back.
func (s *AccountService) withAccountLock(ctx context.Context, customerID uuid.UUID, fn lockedAccountFunc) error {
	unlock, err := s.locker.Lock(ctx, accountLockKey(customerID))
	if err != nil {
		return fmt.Errorf("acquire account lock: %w", err)
	}
	defer unlock()

	return s.store.Transaction(ctx, func(tx repository.Store) error {
		account, err := tx.Accounts().GetByCustomerIDForUpdate(ctx, customerID)
		if err != nil {
			return notFound(err, "lock account")
		}
		customer, err := tx.Customers().GetByID(ctx, customerID)
		if err != nil {
			return notFound(err, "load customer")
		}
		return fn(tx, account, customer.Name, s.clock.Now().UTC())
	})
}

// apply moves the balance, appends the ledger entry and its activity event.
// account is updated in place.
func (s *AccountService) apply(ctx context.Context, tx repository.Store, account *model.Account,
	typ model.TransactionType, amount, newBalance decimal.Decimal, now time.Time) (*model.Transaction, error) {

	if err := tx.Accounts().UpdateBalance(ctx, account.ID, newBalance); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	account.Balance = newBalance

	trans := &model.Transaction{
		ID:            uuid.New(),
		TransactionNo: idgen.GenerateTransactionNo(now),
		AccountID:     account.ID,
		Type:          typ,
		Amount:        amount,
		BalanceAfter:  newBalance,
		OccurredAt:    now,
	}
	if err := tx.Transactions().Create(ctx, trans); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	if err := enqueueEvent(ctx, tx, s.activityTopic, transactionEvent(account.CustomerID, trans)); err != nil {
		return nil, err
	}
	return trans, nil
}

func withdrawnOn(ctx context.Context, store repository.Store, accountID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	start, end := clock.DayWindow(now)
	sum, err := store.Transactions().SumWithdrawals(ctx, accountID, start, end)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum withdrawals: %w", err)
	}
	return sum, nil
}

// notFound converts repository misses into business errors and wraps anything
// else with op.
func notFound(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repository.ErrCustomerNotFound):
		return ErrCustomerNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
