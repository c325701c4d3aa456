package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atmservice/internal/clock"
	"atmservice/internal/model"
	"atmservice/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s=%s want=%s", what, got.StringFixed(2), want)
	}
}

type fixture struct {
	store    *memory.Store
	clock    *clock.Manual
	customer *model.Customer
	account  *model.Account
}

// newFixture provisions one customer whose PIN is stored in plain text; tests
// pair it with plainVerifier.
func newFixture(t *testing.T, balance, limit string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore(), clock: clock.NewManual(testNow)}
	f.customer = &model.Customer{
		ID:         uuid.New(),
		CardNumber: "4111111111111111",
		PinHash:    "p@ssw0rd",
		Name:       "Alice Carter",
	}
	if err := f.store.Customers().Create(ctx, f.customer); err != nil {
		t.Fatal(err)
	}
	f.account = &model.Account{
		ID:         uuid.New(),
		CustomerID: f.customer.ID,
		Balance:    dec(balance),
		DailyLimit: dec(limit),
	}
	if err := f.store.Accounts().Create(ctx, f.account); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) storedCustomer(t *testing.T) *model.Customer {
	t.Helper()
	c, err := f.store.Customers().GetByID(context.Background(), f.customer.ID)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func (f *fixture) storedBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	a, err := f.store.Accounts().GetByCustomerID(context.Background(), f.customer.ID)
	if err != nil {
		t.Fatal(err)
	}
	return a.Balance
}

func (f *fixture) ledger(t *testing.T) []*model.Transaction {
	t.Helper()
	list, err := f.store.Transactions().ListRecent(context.Background(), f.account.ID, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func (f *fixture) pendingOutbox(t *testing.T) []*model.OutboxMessage {
	t.Helper()
	msgs, err := f.store.Outbox().GetPendingMessages(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	return msgs
}

type plainVerifier struct{}

func (plainVerifier) Verify(pin, hash string) bool { return pin == hash }

type stubIssuer struct {
	err error
}

func (s stubIssuer) Issue(customerID uuid.UUID, _ string, _ time.Time) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-" + customerID.String(), nil
}

type recordingLocker struct {
	mu       sync.Mutex
	keys     []string
	released int
	err      error
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	be, ok := AsBusinessError(err)
	if !ok {
		t.Fatalf("err=%v is not a business error", err)
	}
	if be.Kind != want {
		t.Fatalf("kind=%s want=%s", be.Kind, want)
	}
}

var errBoom = errors.New("boom")
