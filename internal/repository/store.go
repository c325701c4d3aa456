package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// GormStore is the Store backed by MySQL or PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Accounts() AccountRepository {
	return NewAccountRepository(s.db)
}

func (s *GormStore) Transactions() TransactionRepository {
	return NewTransactionRepository(s.db)
}

func (s *GormStore) Customers() CustomerRepository {
	return NewCustomerRepository(s.db)
}

func (s *GormStore) Outbox() OutboxRepository {
	return NewOutboxRepository(s.db)
}

// Transaction uses a savepoint when s is already bound to a transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error, notFound error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	}
	return err
}

var _ Store = (*GormStore)(nil)
