package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"affiliate_order_v1/internal/model"
)

// ==================== MerchantRepository 商户仓库 ====================

// MerchantRepository 商户仓库接口
type MerchantRepository interface {
	Create(ctx context.Context, merchant *model.Merchant) error
	GetByID(ctx context.Context, id int64) (*model.Merchant, error)
	GetByDomain(ctx context.Context, domain string) (*model.Merchant, error)
	Update(ctx context.Context, merchant *model.Merchant) error
}

type merchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository 创建商户仓库
func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepository{db: db}
}

func (r *merchantRepository) Create(ctx context.Context, merchant *model.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

// GetByID 获取商户（带 User）
func (r *merchantRepository) GetByID(ctx context.Context, id int64) (*model.Merchant, error) {
	var merchant model.Merchant
	err := r.db.WithContext(ctx).Preload("User").First(&merchant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

// GetByDomain 根据域名获取商户（精确匹配）
func (r *merchantRepository) GetByDomain(ctx context.Context, domain string) (*model.Merchant, error) {
	var merchant model.Merchant
	err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&merchant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *merchantRepository) Update(ctx context.Context, merchant *model.Merchant) error {
	return r.db.WithContext(ctx).
		Model(&model.Merchant{}).
		Where("id = ?", merchant.ID).
		Updates(map[string]interface{}{
			"display_name": merchant.DisplayName,
			"domain":       merchant.Domain,
		}).Error
}
