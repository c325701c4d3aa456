package repository

import (
	"context"
	"errors"
	"time"

	"atmservice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrDuplicateKey     = errors.New("duplicate key")
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*model.Account, error)
	// GetByCustomerIDForUpdate holds the account row exclusively until the
	// surrounding unit of work ends. Outside a unit of work it is a plain read.
	GetByCustomerIDForUpdate(ctx context.Context, customerID uuid.UUID) (*model.Account, error)
	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
}

type TransactionRepository interface {
	// Create appends to the ledger. Transactions are never updated or deleted.
	Create(ctx context.Context, trans *model.Transaction) error
	// SumWithdrawals totals WITHDRAWAL amounts with from <= OccurredAt <= to.
	// An empty range sums to zero.
	SumWithdrawals(ctx context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]*model.Transaction, error)
}

type CustomerRepository interface {
	Create(ctx context.Context, customer *model.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	GetByCardNumber(ctx context.Context, cardNumber string) (*model.Customer, error)
	GetByCardNumberForUpdate(ctx context.Context, cardNumber string) (*model.Customer, error)
	// Save persists the throttle state (FailedAttempts, LockedUntil).
	Save(ctx context.Context, customer *model.Customer) error
}

type OutboxRepository interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkAsSent(ctx context.Context, id int64) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
	// PurgeSent deletes SENT messages created before the given instant.
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// Store groups the repositories of one database.
//
// Transaction runs fn as a single unit of work: the Store handed to fn sees the
// work's own writes, everything is committed when fn returns nil and rolled
// back otherwise. Calling Transaction on the Store passed to fn joins the
// enclosing unit of work.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Customers() CustomerRepository
	Outbox() OutboxRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
