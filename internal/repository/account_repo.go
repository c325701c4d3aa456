package repository

import (
	"context"

	"atmservice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormAccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) Create(ctx context.Context, account *model.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(account).Error, ErrAccountNotFound)
}

func (r *GormAccountRepository) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&account).Error
	if err != nil {
		return nil, translate(err, ErrAccountNotFound)
	}
	return &account, nil
}

func (r *GormAccountRepository) GetByCustomerIDForUpdate(ctx context.Context, customerID uuid.UUID) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&account).Error
	if err != nil {
		return nil, translate(err, ErrAccountNotFound)
	}
	return &account, nil
}

func (r *GormAccountRepository) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
