package model

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the card holder. FailedAttempts and LockedUntil carry the login
// throttle state; a nil LockedUntil means the customer is not locked.
type Customer struct {
	ID             uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	CardNumber     string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"card_number"`
	PinHash        string     `gorm:"type:varchar(255);not null" json:"-"`
	Name           string     `gorm:"type:varchar(200);not null" json:"name"`
	FailedAttempts int        `gorm:"not null;default:0" json:"failed_attempts"`
	LockedUntil    *time.Time `gorm:"precision:6" json:"locked_until,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customer"
}

// IsLockedAt reports whether a lockout is still active at now.
func (c *Customer) IsLockedAt(now time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(now)
}

// Unlock forgets past failures and clears the lockout.
func (c *Customer) Unlock() {
	c.FailedAttempts = 0
	c.LockedUntil = nil
}
