package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"affiliate_order_v1/internal/metrics"
	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/repository"
	"affiliate_order_v1/pkg/logger"
)

// ==================== 输入输出 ====================

// ProcessOrderInput webhook 订单事件
type ProcessOrderInput struct {
	OrderID        string `json:"order_id" validate:"required,max=128"`
	MerchantDomain string `json:"merchant_domain" validate:"required,max=255"`
	CustomerEmail  string `json:"customer_email" validate:"required,email,max=255"`
	DiscountCode   string `json:"discount_code" validate:"omitempty,max=64"`
	SubtotalPrice  string `json:"subtotal_price" validate:"required"`

	// 原始请求体，落库备查
	RawPayload []byte `json:"-"`
}

// OrderResult 入库结果
type OrderResult struct {
	Order     *model.Order
	Affiliate *model.Affiliate // 未命中折扣码时为 nil
	Duplicate bool             // webhook 重投，返回已有订单
}

// ListOrdersInput 订单列表查询
type ListOrdersInput struct {
	AffiliateID  int64
	PayoutStatus string
	Page         int
	PageSize     int
}

// ==================== OrderService 订单服务 ====================

// OrderService 订单入库服务
type OrderService struct {
	uow *repository.UnitOfWork
	now func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(uow *repository.UnitOfWork) *OrderService {
	return &OrderService{
		uow: uow,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// ProcessOrder 处理 webhook 订单
// 同一商户下 order_id 相同的重投直接返回已有订单，不会写第二行，也不会重算佣金
func (s *OrderService) ProcessOrder(ctx context.Context, in ProcessOrderInput) (*OrderResult, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.MerchantDomain = strings.TrimSpace(in.MerchantDomain)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.DiscountCode = strings.TrimSpace(in.DiscountCode)
	in.SubtotalPrice = strings.TrimSpace(in.SubtotalPrice)

	subtotal, err := s.validateOrder(in)
	if err != nil {
		metrics.RecordOrder(metrics.ResultRejected, 0)
		return nil, err
	}

	var (
		result     *OrderResult
		merchantID int64
	)
	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		merchant, err := tx.Merchants.GetByDomain(ctx, in.MerchantDomain)
		if err != nil {
			return err
		}
		if merchant == nil {
			return ErrMerchantNotFound
		}
		merchantID = merchant.ID

		// 去重
		existing, err := tx.Orders.GetByExternalID(ctx, merchant.ID, in.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &OrderResult{Order: existing, Duplicate: true}
			return nil
		}

		// 折扣码归属，未命中不是错误
		var affiliate *model.Affiliate
		if in.DiscountCode != "" {
			affiliate, err = tx.Affiliates.GetByDiscountCode(ctx, merchant.ID, in.DiscountCode)
			if err != nil {
				return err
			}
		}

		order := &model.Order{
			MerchantID:      merchant.ID,
			ExternalOrderID: in.OrderID,
			CustomerEmail:   in.CustomerEmail,
			SubtotalAmount:  subtotal,
			PayoutStatus:    model.PayoutStatusUnpaid,
			RawPayload:      in.RawPayload,
			CreatedAt:       s.now(),
		}
		if in.DiscountCode != "" {
			code := in.DiscountCode
			order.DiscountCode = &code
		}
		if affiliate != nil {
			affiliateID := affiliate.ID
			order.AffiliateID = &affiliateID
			order.CommissionOwed = affiliate.CommissionFor(subtotal)
		}

		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		result = &OrderResult{Order: order, Affiliate: affiliate}
		return nil
	})

	if err != nil {
		// 并发重投：唯一约束冲突，读取先写入的那一行
		if repository.IsDuplicateKey(err) && merchantID > 0 {
			existing, rerr := s.uow.Orders.GetByExternalID(ctx, merchantID, in.OrderID)
			if rerr == nil && existing != nil {
				metrics.RecordOrder(metrics.ResultDuplicate, 0)
				return &OrderResult{Order: existing, Duplicate: true}, nil
			}
		}

		if errors.Is(err, ErrMerchantNotFound) {
			metrics.RecordOrder(metrics.ResultRejected, 0)
			logger.L().Warnw("[OrderService] 未知商户域名", "merchant_domain", in.MerchantDomain, "order_id", in.OrderID)
			return nil, err
		}

		metrics.RecordOrder(metrics.ResultFailed, 0)
		logger.L().Errorw("[OrderService] 订单入库失败", "order_id", in.OrderID, "error", err)
		return nil, storeErr("process order", err)
	}

	if result.Duplicate {
		metrics.RecordOrder(metrics.ResultDuplicate, 0)
		logger.L().Infow("[OrderService] 重复订单，返回已有记录", "order_id", in.OrderID, "id", result.Order.ID)
		return result, nil
	}

	metrics.RecordOrder(metrics.ResultCreated, result.Order.CommissionOwed)
	logger.L().Infow("[OrderService] 订单入库成功",
		"id", result.Order.ID,
		"order_id", in.OrderID,
		"merchant_id", result.Order.MerchantID,
		"affiliate_id", result.Order.AffiliateID,
		"subtotal", model.FormatAmount(result.Order.SubtotalAmount),
		"commission", model.FormatAmount(result.Order.CommissionOwed),
	)
	return result, nil
}

// ListOrders 商户订单列表
func (s *OrderService) ListOrders(ctx context.Context, merchantID int64, in ListOrdersInput) ([]model.Order, int64, error) {
	switch in.PayoutStatus {
	case "", model.PayoutStatusUnpaid, model.PayoutStatusPaid:
	default:
		return nil, 0, &ValidationError{Fields: map[string]string{"payout_status": "must be unpaid or paid"}}
	}

	orders, total, err := s.uow.Orders.List(ctx, repository.OrderFilter{
		MerchantID:   merchantID,
		AffiliateID:  in.AffiliateID,
		PayoutStatus: in.PayoutStatus,
		Page:         in.Page,
		PageSize:     in.PageSize,
	})
	if err != nil {
		return nil, 0, storeErr("list orders", err)
	}
	return orders, total, nil
}

// ==================== 辅助方法 ====================

// validateOrder 字段校验，返回小计（分）
func (s *OrderService) validateOrder(in ProcessOrderInput) (int64, error) {
	ve := &ValidationError{}
	if err := validateStruct(in); err != nil {
		var fieldErr *ValidationError
		if !errors.As(err, &fieldErr) {
			return 0, err
		}
		ve = fieldErr
	}

	var subtotal int64
	if in.SubtotalPrice != "" {
		amount, err := model.ParseAmount(in.SubtotalPrice)
		if err != nil {
			ve.Add("subtotal_price", "must be a non-negative decimal with at most 2 fractional digits")
		}
		subtotal = amount
	}

	if err := ve.OrNil(); err != nil {
		return 0, err
	}
	return subtotal, nil
}
