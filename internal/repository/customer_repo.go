package repository

import (
	"context"

	"atmservice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormCustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) Create(ctx context.Context, customer *model.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(customer).Error, ErrCustomerNotFound)
}

func (r *GormCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, translate(err, ErrCustomerNotFound)
	}
	return &customer, nil
}

func (r *GormCustomerRepository) GetByCardNumber(ctx context.Context, cardNumber string) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).Where("card_number = ?", cardNumber).First(&customer).Error; err != nil {
		return nil, translate(err, ErrCustomerNotFound)
	}
	return &customer, nil
}

func (r *GormCustomerRepository) GetByCardNumberForUpdate(ctx context.Context, cardNumber string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("card_number = ?", cardNumber).
		First(&customer).Error
	if err != nil {
		return nil, translate(err, ErrCustomerNotFound)
	}
	return &customer, nil
}

func (r *GormCustomerRepository) Save(ctx context.Context, customer *model.Customer) error {
	// A map is used so that a nil LockedUntil is written as NULL.
	return r.db.WithContext(ctx).
		Model(&model.Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]interface{}{
			"failed_attempts": customer.FailedAttempts,
			"locked_until":    customer.LockedUntil,
		}).Error
}
