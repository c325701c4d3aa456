package memory

import (
	"context"
	"sort"
	"time"

	"atmservice/internal/clock"
	"atmservice/internal/model"
	"atmservice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Every method hands out copies; callers never alias stored rows.

type accountRepo struct{ sess session }

func (r accountRepo) Create(ctx context.Context, account *model.Account) error {
	return r.sess.write(ctx, func(d *snapshot) error {
		if _, ok := d.accountByCustomer[account.CustomerID]; ok {
			return repository.ErrDuplicateKey
		}
		if account.ID == uuid.Nil {
			account.ID = uuid.New()
		}
		if _, ok := d.accounts[account.ID]; ok {
			return repository.ErrDuplicateKey
		}
		now := time.Now().UTC()
		account.CreatedAt, account.UpdatedAt = now, now
		d.accounts[account.ID] = *account
		d.accountByCustomer[account.CustomerID] = account.ID
		return nil
	})
}

func (r accountRepo) GetByCustomerID(_ context.Context, customerID uuid.UUID) (*model.Account, error) {
	var found model.Account
	err := r.sess.read(func(d *snapshot) error {
		id, ok := d.accountByCustomer[customerID]
		if !ok {
			return repository.ErrAccountNotFound
		}
		found = d.accounts[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// GetByCustomerIDForUpdate needs no extra locking: a unit of work already owns
// the whole store.
func (r accountRepo) GetByCustomerIDForUpdate(ctx context.Context, customerID uuid.UUID) (*model.Account, error) {
	return r.GetByCustomerID(ctx, customerID)
}

func (r accountRepo) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	return r.sess.write(ctx, func(d *snapshot) error {
		account, ok := d.accounts[accountID]
		if !ok {
			return repository.ErrAccountNotFound
		}
		account.Balance = balance
		account.UpdatedAt = time.Now().UTC()
		d.accounts[accountID] = account
		return nil
	})
}

type transactionRepo struct{ sess session }

func (r transactionRepo) Create(ctx context.Context, trans *model.Transaction) error {
	return r.sess.write(ctx, func(d *snapshot) error {
		if trans.ID == uuid.Nil {
			trans.ID = uuid.New()
		}
		for i := range d.transactions {
			if d.transactions[i].ID == trans.ID || d.transactions[i].TransactionNo == trans.TransactionNo {
				return repository.ErrDuplicateKey
			}
		}
		trans.CreatedAt = time.Now().UTC()
		d.transactions = append(d.transactions, *trans)
		return nil
	})
}

func (r transactionRepo) SumWithdrawals(_ context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.sess.read(func(d *snapshot) error {
		for _, t := range d.transactions {
			if t.AccountID != accountID || t.Type != model.TransactionTypeWithdrawal {
				continue
			}
			if !clock.InWindow(t.OccurredAt, from, to) {
				continue
			}
			total = total.Add(t.Amount)
		}
		return nil
	})
	return total, err
}

func (r transactionRepo) ListRecent(_ context.Context, accountID uuid.UUID, limit int) ([]*model.Transaction, error) {
	var out []*model.Transaction
	err := r.sess.read(func(d *snapshot) error {
		for i := len(d.transactions) - 1; i >= 0; i-- {
			if d.transactions[i].AccountID == accountID {
				t := d.transactions[i]
				out = append(out, &t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Newest first; among equal instants the later insert wins.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type customerRepo struct{ sess session }

func (r customerRepo) Create(ctx context.Context, customer *model.Customer) error {
	return r.sess.write(ctx, func(d *snapshot) error {
		if _, ok := d.customerByCard[customer.CardNumber]; ok {
			return repository.ErrDuplicateKey
		}
		if customer.ID == uuid.Nil {
			customer.ID = uuid.New()
		}
		if _, ok := d.customers[customer.ID]; ok {
			return repository.ErrDuplicateKey
		}
		now := time.Now().UTC()
		customer.CreatedAt, customer.UpdatedAt = now, now
		d.customers[customer.ID] = copyCustomer(*customer)
		d.customerByCard[customer.CardNumber] = customer.ID
		return nil
	})
}

func (r customerRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	var found model.Customer
	err := r.sess.read(func(d *snapshot) error {
		c, ok := d.customers[id]
		if !ok {
			return repository.ErrCustomerNotFound
		}
		found = copyCustomer(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r customerRepo) GetByCardNumber(ctx context.Context, cardNumber string) (*model.Customer, error) {
	var id uuid.UUID
	err := r.sess.read(func(d *snapshot) error {
		var ok bool
		if id, ok = d.customerByCard[cardNumber]; !ok {
			return repository.ErrCustomerNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r customerRepo) GetByCardNumberForUpdate(ctx context.Context, cardNumber string) (*model.Customer, error) {
	return r.GetByCardNumber(ctx, cardNumber)
}

func (r customerRepo) Save(ctx context.Context, customer *model.Customer) error {
	return r.sess.write(ctx, func(d *snapshot) error {
		stored, ok := d.customers[customer.ID]
		if !ok {
			return repository.ErrCustomerNotFound
		}
		stored.FailedAttempts = customer.FailedAttempts
		stored.LockedUntil = copyTime(customer.LockedUntil)
		stored.UpdatedAt = time.Now().UTC()
		d.customers[customer.ID] = stored
		return nil
	})
}

type outboxRepo struct{ sess session }

func (r outboxRepo) Create(ctx context.Context, msg *model.OutboxMessage) error {
	return r.sess.write(ctx, func(d *snapshot) error {
		d.nextOutboxID++
		msg.ID = d.nextOutboxID
		if msg.Status == "" {
			msg.Status = model.OutboxStatusPending
		}
		now := time.Now().UTC()
		msg.CreatedAt, msg.UpdatedAt = now, now
		d.outbox = append(d.outbox, *msg)
		return nil
	})
}

func (r outboxRepo) GetPendingMessages(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	var out []*model.OutboxMessage
	err := r.sess.read(func(d *snapshot) error {
		for i := range d.outbox {
			if limit > 0 && len(out) == limit {
				break
			}
			if d.outbox[i].Status == model.OutboxStatusPending {
				m := d.outbox[i]
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}

func (r outboxRepo) update(ctx context.Context, id int64, fn func(m *model.OutboxMessage)) error {
	return r.sess.write(ctx, func(d *snapshot) error {
		for i := range d.outbox {
			if d.outbox[i].ID == id {
				fn(&d.outbox[i])
				d.outbox[i].UpdatedAt = time.Now().UTC()
				return nil
			}
		}
		return nil
	})
}

func (r outboxRepo) MarkAsSent(ctx context.Context, id int64) error {
	return r.update(ctx, id, func(m *model.OutboxMessage) { m.Status = model.OutboxStatusSent })
}

func (r outboxRepo) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.update(ctx, id, func(m *model.OutboxMessage) { m.RetryCount++ })
}

func (r outboxRepo) MarkAsFailed(ctx context.Context, id int64) error {
	return r.update(ctx, id, func(m *model.OutboxMessage) { m.Status = model.OutboxStatusFailed })
}

func (r outboxRepo) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := r.sess.write(ctx, func(d *snapshot) error {
		kept := d.outbox[:0]
		for _, m := range d.outbox {
			if m.Status == model.OutboxStatusSent && m.CreatedAt.Before(before) {
				purged++
				continue
			}
			kept = append(kept, m)
		}
		d.outbox = kept
		return nil
	})
	return purged, err
}
