package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"affiliate_order_v1/internal/model"
)

// ==================== AffiliateRepository 推广员仓库 ====================

// AffiliateRepository 推广员仓库接口
type AffiliateRepository interface {
	Create(ctx context.Context, affiliate *model.Affiliate) error
	// GetByID 按商户范围查询，includeDeleted 为 true 时包含软删除记录
	GetByID(ctx context.Context, merchantID, id int64, includeDeleted bool) (*model.Affiliate, error)
	// GetByDiscountCode 只匹配未删除的推广员
	GetByDiscountCode(ctx context.Context, merchantID int64, code string) (*model.Affiliate, error)
	ListByMerchant(ctx context.Context, merchantID int64) ([]model.Affiliate, error)
	ExistsByDiscountCode(ctx context.Context, merchantID int64, code string) (bool, error)
	Delete(ctx context.Context, merchantID, id int64) (int64, error)
}

type affiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广员仓库
func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &affiliateRepository{db: db}
}

func (r *affiliateRepository) Create(ctx context.Context, affiliate *model.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

func (r *affiliateRepository) GetByID(ctx context.Context, merchantID, id int64, includeDeleted bool) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	db := r.db.WithContext(ctx)
	if includeDeleted {
		db = db.Unscoped()
	}
	err := db.Where("merchant_id = ?", merchantID).First(&affiliate, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *affiliateRepository) GetByDiscountCode(ctx context.Context, merchantID int64, code string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND discount_code = ?", merchantID, code).
		First(&affiliate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *affiliateRepository) ListByMerchant(ctx context.Context, merchantID int64) ([]model.Affiliate, error) {
	var affiliates []model.Affiliate
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("id ASC").
		Find(&affiliates).Error
	return affiliates, err
}

// ExistsByDiscountCode 折扣码在商户内是否已占用（含软删除，折扣码不复用）
func (r *affiliateRepository) ExistsByDiscountCode(ctx context.Context, merchantID int64, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Affiliate{}).
		Where("merchant_id = ? AND discount_code = ?", merchantID, code).
		Count(&count).Error
	return count > 0, err
}

// Delete 软删除，返回影响行数
func (r *affiliateRepository) Delete(ctx context.Context, merchantID, id int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Delete(&model.Affiliate{}, id)
	return result.RowsAffected, result.Error
}
