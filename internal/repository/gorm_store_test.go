package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"atmservice/internal/clock"
	"atmservice/internal/infrastructure/database"
	"atmservice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// These tests need a real database. MySQL DSNs must carry parseTime=true&loc=UTC.
var testDatabases = []struct {
	name string
	env  string
	open func(dsn string) gorm.Dialector
}{
	{"mysql", "ATM_TEST_MYSQL_DSN", mysql.Open},
	{"postgres", "ATM_TEST_POSTGRES_DSN", postgres.Open},
}

func forEachDatabase(t *testing.T, fn func(t *testing.T, s *GormStore)) {
	t.Helper()
	ran := false
	for _, d := range testDatabases {
		dsn := os.Getenv(d.env)
		if dsn == "" {
			continue
		}
		ran = true
		open := d.open
		t.Run(d.name, func(t *testing.T) {
			db, err := gorm.Open(open(dsn), &gorm.Config{
				Logger:         logger.Default.LogMode(logger.Silent),
				TranslateError: true,
				NowFunc:        func() time.Time { return time.Now().UTC() },
			})
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { _ = database.Close(db) })
			if err := db.AutoMigrate(database.Models()...); err != nil {
				t.Fatal(err)
			}
			fn(t, NewGormStore(db))
		})
	}
	if !ran {
		t.Skip("set ATM_TEST_MYSQL_DSN or ATM_TEST_POSTGRES_DSN to run against a database")
	}
}

func newCardNumber() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func seedGormAccount(t *testing.T, s *GormStore, balance string) (*model.Customer, *model.Account) {
	t.Helper()
	ctx := context.Background()
	customer := &model.Customer{CardNumber: newCardNumber(), Name: "Test", PinHash: "x"}
	if err := s.Customers().Create(ctx, customer); err != nil {
		t.Fatal(err)
	}
	account := &model.Account{
		CustomerID: customer.ID,
		Balance:    decimal.RequireFromString(balance),
		DailyLimit: decimal.RequireFromString("500.00"),
	}
	if err := s.Accounts().Create(ctx, account); err != nil {
		t.Fatal(err)
	}
	return customer, account
}

func TestGormSumWithdrawalsWindow(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, s *GormStore) {
		ctx := context.Background()
		_, account := seedGormAccount(t, s, "1000.00")
		start, end := clock.DayWindow(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

		rows := []struct {
			typ    model.TransactionType
			amount string
			at     time.Time
		}{
			{model.TransactionTypeWithdrawal, "40.00", start.Add(-time.Microsecond)},
			{model.TransactionTypeWithdrawal, "10.00", start},
			{model.TransactionTypeDeposit, "160.00", start.Add(time.Hour)},
			{model.TransactionTypeWithdrawal, "20.00", end.Truncate(time.Microsecond)},
			{model.TransactionTypeWithdrawal, "80.00", end.Add(time.Nanosecond)},
		}
		for _, r := range rows {
			if err := s.Transactions().Create(ctx, &model.Transaction{
				TransactionNo: uuid.NewString(),
				AccountID:     account.ID,
				Type:          r.typ,
				Amount:        decimal.RequireFromString(r.amount),
				BalanceAfter:  decimal.RequireFromString("1000.00"),
				OccurredAt:    r.at,
			}); err != nil {
				t.Fatal(err)
			}
		}

		total, err := s.Transactions().SumWithdrawals(ctx, account.ID, start, end)
		if err != nil {
			t.Fatal(err)
		}
		if !total.Equal(decimal.RequireFromString("30.00")) {
			t.Fatalf("total=%s want=30.00", total)
		}

		empty, err := s.Transactions().SumWithdrawals(ctx, uuid.New(), start, end)
		if err != nil {
			t.Fatal(err)
		}
		if !empty.IsZero() {
			t.Fatalf("empty sum=%s", empty)
		}

		recent, err := s.Transactions().ListRecent(ctx, account.ID, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(recent) != 2 || !recent[0].Amount.Equal(decimal.RequireFromString("80.00")) ||
			!recent[1].Amount.Equal(decimal.RequireFromString("20.00")) {
			t.Fatalf("recent=%+v", recent)
		}
	})
}

func TestGormSaveWritesNullLockedUntil(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, s *GormStore) {
		ctx := context.Background()
		customer, _ := seedGormAccount(t, s, "0")

		until := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
		customer.FailedAttempts = 3
		customer.LockedUntil = &until
		if err := s.Customers().Save(ctx, customer); err != nil {
			t.Fatal(err)
		}
		locked, err := s.Customers().GetByCardNumber(ctx, customer.CardNumber)
		if err != nil {
			t.Fatal(err)
		}
		if locked.FailedAttempts != 3 || locked.LockedUntil == nil || !locked.LockedUntil.Equal(until) {
			t.Fatalf("locked=%+v", locked)
		}

		locked.Unlock()
		if err := s.Customers().Save(ctx, locked); err != nil {
			t.Fatal(err)
		}
		cleared, err := s.Customers().GetByID(ctx, customer.ID)
		if err != nil {
			t.Fatal(err)
		}
		if cleared.FailedAttempts != 0 || cleared.LockedUntil != nil {
			t.Fatalf("cleared=%+v", cleared)
		}
	})
}

func TestGormDuplicateCardNumber(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, s *GormStore) {
		ctx := context.Background()
		customer, _ := seedGormAccount(t, s, "0")

		err := s.Customers().Create(ctx, &model.Customer{CardNumber: customer.CardNumber, Name: "Other", PinHash: "x"})
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("err=%v want=ErrDuplicateKey", err)
		}
		if _, err := s.Customers().GetByCardNumber(ctx, newCardNumber()); !errors.Is(err, ErrCustomerNotFound) {
			t.Fatalf("err=%v want=ErrCustomerNotFound", err)
		}
		if err := s.Accounts().UpdateBalance(ctx, uuid.New(), decimal.RequireFromString("1.00")); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("err=%v want=ErrAccountNotFound", err)
		}
	})
}

func TestGormRowLockSerializesUnitsOfWork(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, s *GormStore) {
		ctx := context.Background()
		customer, account := seedGormAccount(t, s, "100.00")
		forty := decimal.RequireFromString("40.00")

		locked := make(chan struct{})
		first := make(chan error, 1)
		go func() {
			first <- s.Transaction(ctx, func(tx Store) error {
				acc, err := tx.Accounts().GetByCustomerIDForUpdate(ctx, customer.ID)
				close(locked)
				if err != nil {
					return err
				}
				time.Sleep(200 * time.Millisecond)
				return tx.Accounts().UpdateBalance(ctx, acc.ID, acc.Balance.Sub(forty))
			})
		}()
		<-locked

		var seen decimal.Decimal
		err := s.Transaction(ctx, func(tx Store) error {
			acc, err := tx.Accounts().GetByCustomerIDForUpdate(ctx, customer.ID)
			if err != nil {
				return err
			}
			seen = acc.Balance
			return tx.Accounts().UpdateBalance(ctx, acc.ID, acc.Balance.Sub(forty))
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := <-first; err != nil {
			t.Fatal(err)
		}

		if !seen.Equal(decimal.RequireFromString("60.00")) {
			t.Fatalf("second unit of work read balance=%s want=60.00", seen)
		}
		final, err := s.Accounts().GetByCustomerID(ctx, customer.ID)
		if err != nil {
			t.Fatal(err)
		}
		if final.ID != account.ID || !final.Balance.Equal(decimal.RequireFromString("20.00")) {
			t.Fatalf("final=%+v", final)
		}
	})
}
