package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newAuthService(f *fixture, issuer TokenIssuer, topic string) *AuthService {
	opts := DefaultAuthOptions()
	opts.ActivityTopic = topic
	return NewAuthService(f.store, plainVerifier{}, issuer, f.clock, zap.NewNop(), opts)
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t, "1200.00", "500.00")
	svc := newAuthService(f, stubIssuer{}, "")

	session, err := svc.Login(context.Background(), "4111111111111111", "p@ssw0rd")
	if err != nil {
		t.Fatal(err)
	}
	if session.CustomerID != f.customer.ID || session.CustomerName != "Alice Carter" {
		t.Fatalf("session=%+v", session)
	}
	if session.TokenType != "Bearer" || session.ExpiresInSeconds != 3600 || session.Token != "token-"+f.customer.ID.String() {
		t.Fatalf("session=%+v", session)
	}
}

func TestLoginUnknownCard(t *testing.T) {
	f := newFixture(t, "0", "0")
	svc := newAuthService(f, stubIssuer{}, "")

	_, err := svc.Login(context.Background(), "4000000000000000", "p@ssw0rd")
	if !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("err=%v want=ErrUnknownCard", err)
	}
	assertKind(t, err, KindInvalidCredentials)

	_, wrongPIN := svc.Login(context.Background(), "4111111111111111", "nope")
	if err.Error() != wrongPIN.Error() {
		t.Fatalf("unknown card %q and wrong PIN %q must read the same", err, wrongPIN)
	}
}

func TestLockoutLifecycle(t *testing.T) {
	f := newFixture(t, "0", "0")
	svc := newAuthService(f, stubIssuer{}, "")
	ctx := context.Background()
	card := "4111111111111111"

	for i := 1; i <= 2; i++ {
		_, err := svc.Login(ctx, card, "wrong")
		if !errors.Is(err, ErrWrongPIN) {
			t.Fatalf("attempt %d: err=%v want=ErrWrongPIN", i, err)
		}
		if got := f.storedCustomer(t).FailedAttempts; got != i {
			t.Fatalf("attempt %d: failedAttempts=%d", i, got)
		}
	}

	_, err := svc.Login(ctx, card, "wrong")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("third attempt err=%v want=ErrAccountLocked", err)
	}
	assertKind(t, err, KindAccountLocked)
	stored := f.storedCustomer(t)
	wantUntil := testNow.Add(15 * time.Minute)
	if stored.FailedAttempts != 3 || stored.LockedUntil == nil || !stored.LockedUntil.Equal(wantUntil) {
		t.Fatalf("stored=%+v want lockedUntil=%v", stored, wantUntil)
	}

	// The right PIN does not help while locked, and nothing changes.
	f.clock.Advance(14 * time.Minute)
	if _, err := svc.Login(ctx, card, "p@ssw0rd"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err=%v want=ErrAccountLocked", err)
	}
	if again := f.storedCustomer(t); again.FailedAttempts != 3 || !again.LockedUntil.Equal(wantUntil) {
		t.Fatalf("locked login changed state: %+v", again)
	}

	// At exactly lockedUntil the lock has lapsed.
	f.clock.Set(wantUntil)
	if _, err := svc.Login(ctx, card, "p@ssw0rd"); err != nil {
		t.Fatalf("login after expiry: %v", err)
	}
	if after := f.storedCustomer(t); after.FailedAttempts != 0 || after.LockedUntil != nil {
		t.Fatalf("state not reset: %+v", after)
	}
}

func TestConcurrentWrongPINsAllCount(t *testing.T) {
	f := newFixture(t, "0", "0")
	svc := newAuthService(f, stubIssuer{}, "")

	const attempts = 5
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wrong  int
		locked int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Login(context.Background(), "4111111111111111", "wrong")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrWrongPIN):
				wrong++
			case errors.Is(err, ErrAccountLocked):
				locked++
			default:
				t.Errorf("unexpected err=%v", err)
			}
		}()
	}
	wg.Wait()

	if wrong != 2 || locked != 3 {
		t.Fatalf("wrong=%d locked=%d want 2/3", wrong, locked)
	}
	stored := f.storedCustomer(t)
	if stored.FailedAttempts != 3 || stored.LockedUntil == nil || !stored.LockedUntil.Equal(testNow.Add(15*time.Minute)) {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestExpiredLockResetsCounterBeforeWrongPIN(t *testing.T) {
	f := newFixture(t, "0", "0")
	svc := newAuthService(f, stubIssuer{}, "")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = svc.Login(ctx, "4111111111111111", "wrong")
	}

	f.clock.Advance(16 * time.Minute)
	_, err := svc.Login(ctx, "4111111111111111", "wrong")
	if !errors.Is(err, ErrWrongPIN) {
		t.Fatalf("err=%v want=ErrWrongPIN", err)
	}
	stored := f.storedCustomer(t)
	if stored.FailedAttempts != 1 || stored.LockedUntil != nil {
		t.Fatalf("stored=%+v want 1 attempt and no lock", stored)
	}
}

func TestSuccessResetsFailedAttempts(t *testing.T) {
	f := newFixture(t, "0", "0")
	svc := newAuthService(f, stubIssuer{}, "")
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = svc.Login(ctx, "4111111111111111", "wrong")
	}
	if _, err := svc.Login(ctx, "4111111111111111", "p@ssw0rd"); err != nil {
		t.Fatal(err)
	}
	if got := f.storedCustomer(t).FailedAttempts; got != 0 {
		t.Fatalf("failedAttempts=%d want=0", got)
	}

	// A fresh run of failures is needed to lock again.
	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, "4111111111111111", "wrong"); !errors.Is(err, ErrWrongPIN) {
			t.Fatalf("err=%v want=ErrWrongPIN", err)
		}
	}
}

func TestLockoutRecordsActivityEvent(t *testing.T) {
	f := newFixture(t, "0", "0")
	svc := newAuthService(f, stubIssuer{}, "atm.account.activity")
	for i := 0; i < 3; i++ {
		_, _ = svc.Login(context.Background(), "4111111111111111", "wrong")
	}
	msgs := f.pendingOutbox(t)
	if len(msgs) != 1 || msgs[0].EventType != EventCustomerLocked {
		t.Fatalf("outbox=%+v", msgs)
	}
}

func TestIssuerFailureKeepsResetState(t *testing.T) {
	f := newFixture(t, "0", "0")
	svc := newAuthService(f, stubIssuer{err: errBoom}, "")
	ctx := context.Background()
	_, _ = svc.Login(ctx, "4111111111111111", "wrong")

	_, err := svc.Login(ctx, "4111111111111111", "p@ssw0rd")
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v want=%v", err, errBoom)
	}
	if _, ok := AsBusinessError(err); ok {
		t.Fatal("issuer failure must not look like a business error")
	}
	if got := f.storedCustomer(t).FailedAttempts; got != 0 {
		t.Fatalf("failedAttempts=%d want=0", got)
	}
}
