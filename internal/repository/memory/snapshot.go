package memory

import (
	"time"

	"atmservice/internal/model"

	"github.com/google/uuid"
)

type snapshot struct {
	accounts          map[uuid.UUID]model.Account
	accountByCustomer map[uuid.UUID]uuid.UUID
	customers         map[uuid.UUID]model.Customer
	customerByCard    map[string]uuid.UUID
	// transactions is kept in insertion order.
	transactions []model.Transaction
	outbox       []model.OutboxMessage
	nextOutboxID int64
}

func newSnapshot() *snapshot {
	return &snapshot{
		accounts:          make(map[uuid.UUID]model.Account),
		accountByCustomer: make(map[uuid.UUID]uuid.UUID),
		customers:         make(map[uuid.UUID]model.Customer),
		customerByCard:    make(map[string]uuid.UUID),
	}
}

func (d *snapshot) clone() *snapshot {
	c := &snapshot{
		accounts:          make(map[uuid.UUID]model.Account, len(d.accounts)),
		accountByCustomer: make(map[uuid.UUID]uuid.UUID, len(d.accountByCustomer)),
		customers:         make(map[uuid.UUID]model.Customer, len(d.customers)),
		customerByCard:    make(map[string]uuid.UUID, len(d.customerByCard)),
		transactions:      make([]model.Transaction, len(d.transactions), len(d.transactions)+1),
		outbox:            make([]model.OutboxMessage, len(d.outbox), len(d.outbox)+1),
		nextOutboxID:      d.nextOutboxID,
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.accountByCustomer {
		c.accountByCustomer[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = copyCustomer(v)
	}
	for k, v := range d.customerByCard {
		c.customerByCard[k] = v
	}
	copy(c.transactions, d.transactions)
	copy(c.outbox, d.outbox)
	return c
}

func copyCustomer(c model.Customer) model.Customer {
	if c.LockedUntil != nil {
		t := *c.LockedUntil
		c.LockedUntil = &t
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
