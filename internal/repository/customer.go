package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/mci/services/delivery/internal/db"
	"example.com/mci/services/delivery/internal/model"
)

// CustomerRepository defines the interface for customer repository
type CustomerRepository interface {
	Create(ctx context.Context, customer *model.Customer) (*model.Customer, error)
	Update(ctx context.Context, customer *model.Customer) (*model.Customer, error)
	UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) (*model.Customer, error)
	Delete(ctx context.Context, ownerID string, id uint) error
	GetByID(ctx context.Context, ownerID string, id uint) (*model.Customer, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Customer, error)
}

// customerRepository implements CustomerRepository
type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// Create creates a new customer
func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

// Update updates a customer
func (r *customerRepository) Update(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	if err := r.db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

// UpdateFields applies a partial update and returns the stored record
func (r *customerRepository) UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) (*model.Customer, error) {
	tx := r.db.WithContext(ctx).
		Model(&model.Customer{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(fields)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, ownerID, id)
}

// Delete removes a customer
func (r *customerRepository) Delete(ctx context.Context, ownerID string, id uint) error {
	tx := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Customer{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID gets a customer by ID, scoped to its owner
func (r *customerRepository) GetByID(ctx context.Context, ownerID string, id uint) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&customer).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// ListByOwner lists all customers owned by ownerID, sorted by name
func (r *customerRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Customer, error) {
	var customers []*model.Customer
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("name ASC").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
