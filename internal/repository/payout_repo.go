package repository

import (
	"context"
	"errors"

	"affiliate_order_v1/internal/model"

	"gorm.io/gorm"
)

// PayoutRepository 佣金发放记录仓库
type PayoutRepository interface {
	Create(ctx context.Context, record *model.PayoutRecord) error
	GetByOrderID(ctx context.Context, orderID int64) (*model.PayoutRecord, error)
	ListByAffiliate(ctx context.Context, affiliateID int64) ([]model.PayoutRecord, error)
}

type payoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(ctx context.Context, record *model.PayoutRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *payoutRepository) GetByOrderID(ctx context.Context, orderID int64) (*model.PayoutRecord, error) {
	var record model.PayoutRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *payoutRepository) ListByAffiliate(ctx context.Context, affiliateID int64) ([]model.PayoutRecord, error) {
	var records []model.PayoutRecord
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}
