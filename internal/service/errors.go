package service

import (
	"errors"
)

// Kind classifies a business rule violation. The HTTP layer maps each kind to
// a status code.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindDailyLimitExceeded Kind = "DAILY_LIMIT_EXCEEDED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindAccountLocked      Kind = "ACCOUNT_LOCKED"
	KindInvalidAmount      Kind = "INVALID_AMOUNT"
)

// BusinessError is an expected, client-visible failure. Sentinels are compared
// by identity, so two sentinels may share a kind and message and still be told
// apart with errors.Is.
type BusinessError struct {
	Kind    Kind
	Message string
}

func (e *BusinessError) Error() string {
	return e.Message
}

func newBusinessError(kind Kind, message string) *BusinessError {
	return &BusinessError{Kind: kind, Message: message}
}

const invalidCredentialsMessage = "Invalid card number or PIN"

var (
	ErrAccountNotFound    = newBusinessError(KindNotFound, "Account not found")
	ErrCustomerNotFound   = newBusinessError(KindNotFound, "Customer not found")
	ErrInsufficientFunds  = newBusinessError(KindInsufficientFunds, "Insufficient funds")
	ErrDailyLimitExceeded = newBusinessError(KindDailyLimitExceeded, "Daily withdrawal limit exceeded")
	ErrInvalidAmount      = newBusinessError(KindInvalidAmount, "Amount must be positive")

	// Unknown card and wrong PIN look identical to the caller.
	ErrUnknownCard = newBusinessError(KindInvalidCredentials, invalidCredentialsMessage)
	ErrWrongPIN    = newBusinessError(KindInvalidCredentials, invalidCredentialsMessage)

	ErrAccountLocked = newBusinessError(KindAccountLocked, "Account locked, try again later")
)

// AsBusinessError extracts the BusinessError from err's chain, if any.
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
