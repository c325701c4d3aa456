package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"atmservice/internal/model"
	"atmservice/internal/repository"

	"github.com/google/uuid"
)

const (
	EventDeposit        = "account.deposit"
	EventWithdrawal     = "account.withdrawal"
	EventCustomerLocked = "customer.locked"
)

// ActivityEvent is the payload of an account activity outbox message.
type ActivityEvent struct {
	EventID       string     `json:"event_id"`
	EventType     string     `json:"event_type"`
	CustomerID    string     `json:"customer_id"`
	AccountID     string     `json:"account_id,omitempty"`
	TransactionNo string     `json:"transaction_no,omitempty"`
	Amount        string     `json:"amount,omitempty"`
	BalanceAfter  string     `json:"balance_after,omitempty"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func transactionEvent(customerID uuid.UUID, trans *model.Transaction) ActivityEvent {
	eventType := EventDeposit
	if trans.Type == model.TransactionTypeWithdrawal {
		eventType = EventWithdrawal
	}
	return ActivityEvent{
		EventType:     eventType,
		CustomerID:    customerID.String(),
		AccountID:     trans.AccountID.String(),
		TransactionNo: trans.TransactionNo,
		Amount:        trans.Amount.StringFixed(2),
		BalanceAfter:  trans.BalanceAfter.StringFixed(2),
		OccurredAt:    trans.OccurredAt,
	}
}

func lockoutEvent(customer *model.Customer, now time.Time) ActivityEvent {
	return ActivityEvent{
		EventType:   EventCustomerLocked,
		CustomerID:  customer.ID.String(),
		LockedUntil: customer.LockedUntil,
		OccurredAt:  now,
	}
}

// enqueueEvent writes ev to the outbox inside tx. With no topic configured
// events are not recorded.
func enqueueEvent(ctx context.Context, tx repository.Store, topic string, ev ActivityEvent) error {
	if topic == "" {
		return nil
	}
	ev.EventID = uuid.NewString()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.EventType, err)
	}
	msg := &model.OutboxMessage{
		MessageKey: ev.CustomerID,
		Topic:      topic,
		EventType:  ev.EventType,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := tx.Outbox().Create(ctx, msg); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}
