package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// Transaction is one balance-changing operation on an account.
//
// Rows are append-only: never updated or deleted. Amount is always positive,
// the direction comes from Type. BalanceAfter is the account balance right
// after the operation, so replaying the log in OccurredAt order must reproduce
// every intermediate balance.
type Transaction struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	AccountID     uuid.UUID       `gorm:"type:char(36);index:idx_account_type_time,priority:1;not null" json:"account_id"`
	Type          TransactionType `gorm:"type:varchar(20);index:idx_account_type_time,priority:2;not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"amount"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"balance_after"`
	OccurredAt    time.Time       `gorm:"precision:6;index:idx_account_type_time,priority:3;not null" json:"occurred_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "account_transaction"
}

// Signed returns the amount with the sign of its effect on the balance.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}
