// Package memory is an in-process repository.Store for local runs and tests.
//
// Units of work are serialized. Each one operates on a private copy of the
// data that replaces the committed state only when the work succeeds, so a
// failed unit of work leaves nothing behind and readers never observe
// uncommitted writes.
package memory

import (
	"context"
	"sync"

	"atmservice/internal/repository"
)

type Store struct {
	// sem admits one unit of work at a time; it is a channel so that waiting
	// honours context cancellation.
	sem  chan struct{}
	data *snapshot
	// guards data
	mu sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		sem:  make(chan struct{}, 1),
		data: newSnapshot(),
	}
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Store = (*txStore)(nil)
)

func (s *Store) Accounts() repository.AccountRepository {
	return accountRepo{session{root: s}}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return transactionRepo{session{root: s}}
}

func (s *Store) Customers() repository.CustomerRepository {
	return customerRepo{session{root: s}}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return outboxRepo{session{root: s}}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.commit(ctx, func(work *snapshot) error {
		return fn(&txStore{sess: session{root: s, work: work}})
	})
}

// commit runs fn against a copy of the committed data and publishes the copy
// if fn succeeds.
func (s *Store) commit(ctx context.Context, fn func(work *snapshot) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

type txStore struct {
	sess session
}

func (t *txStore) Accounts() repository.AccountRepository {
	return accountRepo{t.sess}
}

func (t *txStore) Transactions() repository.TransactionRepository {
	return transactionRepo{t.sess}
}

func (t *txStore) Customers() repository.CustomerRepository {
	return customerRepo{t.sess}
}

func (t *txStore) Outbox() repository.OutboxRepository {
	return outboxRepo{t.sess}
}

// Transaction joins the enclosing unit of work.
func (t *txStore) Transaction(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

// session routes repository calls either to a unit of work in progress or,
// for the root store, to the committed data.
type session struct {
	root *Store
	work *snapshot
}

func (s session) read(fn func(d *snapshot) error) error {
	if s.work != nil {
		return fn(s.work)
	}
	s.root.mu.RLock()
	defer s.root.mu.RUnlock()
	return fn(s.root.data)
}

func (s session) write(ctx context.Context, fn func(d *snapshot) error) error {
	if s.work != nil {
		return fn(s.work)
	}
	return s.root.commit(ctx, fn)
}
