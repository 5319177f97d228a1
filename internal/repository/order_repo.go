package repository

import (
	"context"
	"errors"
	"time"

	"affiliate_order_v1/internal/model"

	"gorm.io/gorm"
)

// ==================== 过滤条件 ====================

// OrderFilter 订单过滤条件
type OrderFilter struct {
	MerchantID   int64
	AffiliateID  int64
	PayoutStatus string
	StartDate    *time.Time
	EndDate      *time.Time // 不含
	Page         int
	PageSize     int
}

// ==================== OrderRepository 订单仓库 ====================

// OrderRepository 订单仓库接口
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByExternalID(ctx context.Context, merchantID int64, externalID string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)

	// 结算相关
	ListUnpaidByAffiliate(ctx context.Context, affiliateID int64) ([]model.Order, error)
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error)

	// 统计
	GetStats(ctx context.Context, merchantID int64, start, end time.Time) (*OrderStats, error)
}

// OrderStats 订单统计（金额单位：分）
type OrderStats struct {
	OrderCount     int64
	Revenue        int64
	CommissionOwed int64
}

// ==================== 实现 ====================

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByExternalID 根据商户内的外部订单号查询（webhook 去重）
func (r *orderRepository) GetByExternalID(ctx context.Context, merchantID int64, externalID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND external_order_id = ?", merchantID, externalID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Order{})

	// 应用过滤条件
	if filter.MerchantID > 0 {
		db = db.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.AffiliateID > 0 {
		db = db.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if filter.PayoutStatus != "" {
		db = db.Where("payout_status = ?", filter.PayoutStatus)
	}
	if filter.StartDate != nil {
		db = db.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("created_at < ?", *filter.EndDate)
	}

	// 计算总数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := db.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(filter.PageSize).
		Find(&orders).Error

	return orders, total, err
}

// ListUnpaidByAffiliate 推广员名下所有未结算订单
func (r *orderRepository) ListUnpaidByAffiliate(ctx context.Context, affiliateID int64) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND payout_status = ?", affiliateID, model.PayoutStatusUnpaid).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

// MarkPaid 条件更新 unpaid → paid，返回是否实际更新
func (r *orderRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND payout_status = ?", id, model.PayoutStatusUnpaid).
		Updates(map[string]interface{}{
			"payout_status": model.PayoutStatusPaid,
			"paid_at":       paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetStats 商户订单统计，时间区间 [start, end)
func (r *orderRepository) GetStats(ctx context.Context, merchantID int64, start, end time.Time) (*OrderStats, error) {
	var stats OrderStats

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select(`COUNT(*) AS order_count,
			COALESCE(SUM(subtotal_amount), 0) AS revenue,
			COALESCE(SUM(CASE WHEN affiliate_id IS NOT NULL AND payout_status = ? THEN commission_owed ELSE 0 END), 0) AS commission_owed`,
			model.PayoutStatusUnpaid).
		Where("merchant_id = ? AND created_at >= ? AND created_at < ?", merchantID, start, end).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
