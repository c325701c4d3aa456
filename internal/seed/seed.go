// Package seed provisions the customers listed in configuration.
package seed

import (
	"context"
	"errors"
	"fmt"

	"atmservice/internal/config"
	"atmservice/internal/model"
	"atmservice/internal/repository"
	"atmservice/internal/security"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Provision creates each customer and its account unless the card already
// exists. Existing customers are left untouched. It returns how many were
// created.
func Provision(ctx context.Context, store repository.Store, customers []config.SeedCustomer, bcryptCost int, logger *zap.Logger) (int, error) {
	created := 0
	for _, sc := range customers {
		ok, err := provisionOne(ctx, store, sc, bcryptCost)
		if err != nil {
			return created, fmt.Errorf("seed card %s: %w", sc.CardNumber, err)
		}
		if ok {
			created++
			logger.Info("seeded customer", zap.String("name", sc.Name))
		}
	}
	return created, nil
}

func provisionOne(ctx context.Context, store repository.Store, sc config.SeedCustomer, bcryptCost int) (bool, error) {
	if sc.CardNumber == "" || sc.PIN == "" {
		return false, errors.New("card_number and pin are required")
	}
	balance, err := decimal.NewFromString(sc.Balance)
	if err != nil {
		return false, fmt.Errorf("balance: %w", err)
	}
	limit, err := decimal.NewFromString(sc.DailyLimit)
	if err != nil {
		return false, fmt.Errorf("daily_limit: %w", err)
	}
	if balance.IsNegative() || limit.IsNegative() {
		return false, errors.New("balance and daily_limit must not be negative")
	}

	_, err = store.Customers().GetByCardNumber(ctx, sc.CardNumber)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrCustomerNotFound) {
		return false, err
	}

	hash, err := security.HashPIN(sc.PIN, bcryptCost)
	if err != nil {
		return false, fmt.Errorf("hash pin: %w", err)
	}

	err = store.Transaction(ctx, func(tx repository.Store) error {
		customer := &model.Customer{CardNumber: sc.CardNumber, PinHash: hash, Name: sc.Name}
		if err := tx.Customers().Create(ctx, customer); err != nil {
			return err
		}
		return tx.Accounts().Create(ctx, &model.Account{
			CustomerID: customer.ID,
			Balance:    balance.Round(2),
			DailyLimit: limit.Round(2),
		})
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		// Another instance seeded the same card concurrently.
		return false, nil
	}
	return err == nil, err
}
