package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/mci/services/delivery/internal/db"
	"example.com/mci/services/delivery/internal/model"
)

// DeliveryRepository defines the interface for delivery repository
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *model.Delivery) (*model.Delivery, error)
	Update(ctx context.Context, delivery *model.Delivery) (*model.Delivery, error)
	UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) (*model.Delivery, error)
	Delete(ctx context.Context, ownerID string, id uint) error
	GetByID(ctx context.Context, ownerID string, id uint) (*model.Delivery, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Delivery, error)
	DRNumberExists(ctx context.Context, ownerID, drNumber string) (bool, error)
}

// deliveryRepository implements DeliveryRepository
type deliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// Create creates a new delivery
func (r *deliveryRepository) Create(ctx context.Context, delivery *model.Delivery) (*model.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

// Update updates a delivery
func (r *deliveryRepository) Update(ctx context.Context, delivery *model.Delivery) (*model.Delivery, error) {
	if err := r.db.WithContext(ctx).Save(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

// UpdateFields applies a partial update and returns the stored record
func (r *deliveryRepository) UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) (*model.Delivery, error) {
	tx := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
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

// Delete removes a delivery
func (r *deliveryRepository) Delete(ctx context.Context, ownerID string, id uint) error {
	tx := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Delivery{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID gets a delivery by ID, scoped to its owner
func (r *deliveryRepository) GetByID(ctx context.Context, ownerID string, id uint) (*model.Delivery, error) {
	var delivery model.Delivery
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&delivery).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &delivery, nil
}

// ListByOwner lists all deliveries owned by ownerID, newest first
func (r *deliveryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Delivery, error) {
	var deliveries []*model.Delivery
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// DRNumberExists checks whether a DR number is already taken by the owner
func (r *deliveryRepository) DRNumberExists(ctx context.Context, ownerID, drNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("user_id = ? AND dr_number = ?", ownerID, drNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
