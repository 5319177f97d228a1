package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"affiliate_order_v1/internal/metrics"
	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/queue"
	"affiliate_order_v1/internal/repository"
	"affiliate_order_v1/pkg/logger"
)

// PayoutResult 结算请求结果
type PayoutResult struct {
	AffiliateID     int64
	Scheduled       int
	TaskIDs         []string
	TotalCommission int64 // 分
}

// ==================== PayoutService 佣金结算服务 ====================

// PayoutService 佣金结算服务
// Payout 只负责入队，实际结算由 worker 调用 SettleOrder 完成
type PayoutService struct {
	uow      *repository.UnitOfWork
	enqueuer queue.Enqueuer
	now      func() time.Time
}

// NewPayoutService 创建结算服务
func NewPayoutService(uow *repository.UnitOfWork, enqueuer queue.Enqueuer) *PayoutService {
	return &PayoutService{
		uow:      uow,
		enqueuer: enqueuer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PayoutForMerchant 商户触发推广员结算，已删除的推广员仍可结算欠款
func (s *PayoutService) PayoutForMerchant(ctx context.Context, merchantID, affiliateID int64) (*PayoutResult, error) {
	affiliate, err := s.uow.Affiliates.GetByID(ctx, merchantID, affiliateID, true)
	if err != nil {
		return nil, storeErr("get affiliate", err)
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	return s.Payout(ctx, affiliate)
}

// Payout 为推广员所有未结算订单各入队一个结算任务
// 入队失败时已入队的任务仍然有效，重复调用是安全的（结算幂等）
func (s *PayoutService) Payout(ctx context.Context, affiliate *model.Affiliate) (*PayoutResult, error) {
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}

	orders, err := s.uow.Orders.ListUnpaidByAffiliate(ctx, affiliate.ID)
	if err != nil {
		return nil, storeErr("list unpaid orders", err)
	}

	result := &PayoutResult{
		AffiliateID: affiliate.ID,
		TaskIDs:     make([]string, 0, len(orders)),
	}

	for i := range orders {
		task := queue.Task{
			ID:         uuid.NewString(),
			Type:       queue.TaskTypePayoutOrder,
			OrderID:    orders[i].ID,
			EnqueuedAt: s.now(),
		}
		if err := s.enqueuer.Enqueue(ctx, task); err != nil {
			logger.L().Errorw("[PayoutService] 结算任务入队失败",
				"affiliate_id", affiliate.ID,
				"order_id", orders[i].ID,
				"scheduled", result.Scheduled,
				"error", err,
			)
			return result, &StoreError{Op: fmt.Sprintf("enqueue payout (%d of %d scheduled)", result.Scheduled, len(orders)), Err: err}
		}

		result.Scheduled++
		result.TaskIDs = append(result.TaskIDs, task.ID)
		result.TotalCommission += orders[i].CommissionOwed
		metrics.PayoutTasksEnqueued.Inc()
	}

	logger.L().Infow("[PayoutService] 结算任务已入队",
		"affiliate_id", affiliate.ID,
		"scheduled", result.Scheduled,
		"commission", model.FormatAmount(result.TotalCommission),
	)
	return result, nil
}

// SettleOrder 结算单个订单（任务消费方）
// 幂等：已结算直接返回成功；订单不存在为永久错误
func (s *PayoutService) SettleOrder(ctx context.Context, taskID string, orderID int64) error {
	var settled *model.Order

	err := s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		order, err := tx.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.IsPaid() {
			return nil
		}
		if !order.HasAffiliate() {
			return fmt.Errorf("%w: order %d has no affiliate", ErrInvalidArgument, orderID)
		}

		updated, err := tx.Orders.MarkPaid(ctx, order.ID, s.now())
		if err != nil {
			return err
		}
		if !updated {
			// 并发结算已完成
			return nil
		}

		if err := tx.Payouts.Create(ctx, &model.PayoutRecord{
			OrderID:     order.ID,
			AffiliateID: *order.AffiliateID,
			MerchantID:  order.MerchantID,
			Amount:      order.CommissionOwed,
			TaskID:      taskID,
		}); err != nil {
			return err
		}

		settled = order
		return nil
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			// 发放记录已存在，视为已结算
			return nil
		}
		return storeErr("settle order", err)
	}

	if settled != nil {
		metrics.PayoutCents.Add(float64(settled.CommissionOwed))
		logger.L().Infow("[PayoutService] 订单佣金已结算",
			"task_id", taskID,
			"order_id", settled.ID,
			"affiliate_id", *settled.AffiliateID,
			"amount", model.FormatAmount(settled.CommissionOwed),
		)
	}
	return nil
}

// ListPayouts 推广员发放记录
func (s *PayoutService) ListPayouts(ctx context.Context, merchantID, affiliateID int64) ([]model.PayoutRecord, error) {
	affiliate, err := s.uow.Affiliates.GetByID(ctx, merchantID, affiliateID, true)
	if err != nil {
		return nil, storeErr("get affiliate", err)
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}

	records, err := s.uow.Payouts.ListByAffiliate(ctx, affiliate.ID)
	if err != nil {
		return nil, storeErr("list payouts", err)
	}
	return records, nil
}

// IsPermanent 重试也无法成功的错误，任务直接进入死信
func IsPermanent(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrInvalidArgument)
}
