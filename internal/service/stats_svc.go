package service

import (
	"context"
	"strings"
	"time"

	"affiliate_order_v1/internal/repository"
)

const dateLayout = "2006-01-02"

// OrderStats 订单统计（金额单位：分）
type OrderStats struct {
	From           string
	To             string
	Count          int64
	Revenue        int64
	CommissionOwed int64
}

// StatsService 统计服务
type StatsService struct {
	orderRepo repository.OrderRepository
}

// NewStatsService 创建统计服务
func NewStatsService(orderRepo repository.OrderRepository) *StatsService {
	return &StatsService{orderRepo: orderRepo}
}

// OrderStats 商户在 [from, to] 日期内（UTC，含两端）的订单数、营收和未结算佣金
func (s *StatsService) OrderStats(ctx context.Context, merchantID int64, from, to string) (*OrderStats, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	ve := &ValidationError{}
	start, err := time.ParseInLocation(dateLayout, from, time.UTC)
	if err != nil {
		ve.Add("from", "must be a date in YYYY-MM-DD format")
	}
	end, err := time.ParseInLocation(dateLayout, to, time.UTC)
	if err != nil {
		ve.Add("to", "must be a date in YYYY-MM-DD format")
	}
	if len(ve.Fields) == 0 && end.Before(start) {
		ve.Add("to", "must not be before from")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	// 右开区间：to 当天全部计入
	stats, err := s.orderRepo.GetStats(ctx, merchantID, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, storeErr("order stats", err)
	}

	return &OrderStats{
		From:           from,
		To:             to,
		Count:          stats.OrderCount,
		Revenue:        stats.Revenue,
		CommissionOwed: stats.CommissionOwed,
	}, nil
}
