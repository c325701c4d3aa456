package repository

import (
	"context"
	"time"

	"atmservice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type GormTransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

func (r *GormTransactionRepository) Create(ctx context.Context, trans *model.Transaction) error {
	if trans.ID == uuid.Nil {
		trans.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(trans).Error, nil)
}

func (r *GormTransactionRepository) SumWithdrawals(ctx context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND type = ? AND occurred_at BETWEEN ? AND ?",
			accountID, model.TransactionTypeWithdrawal, from, to).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *GormTransactionRepository) ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("occurred_at DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
