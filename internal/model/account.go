package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds a customer's balance and daily withdrawal allowance.
// There is exactly one account per customer; the balance only changes through
// deposits and withdrawals, each of which appends a Transaction.
type Account struct {
	ID         uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:char(36);uniqueIndex;not null" json:"customer_id"`
	Balance    decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"balance"`
	DailyLimit decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"daily_limit"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
