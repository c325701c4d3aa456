package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Locker serializes work on one key across processes. The returned func
// releases the lock and must always be called.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

func accountLockKey(customerID uuid.UUID) string {
	return fmt.Sprintf("atm:lock:account:%s", customerID)
}
