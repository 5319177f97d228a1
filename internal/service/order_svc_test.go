package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/repository"
)

func webhookInput(orderID, code, subtotal string) ProcessOrderInput {
	return ProcessOrderInput{
		OrderID:        orderID,
		MerchantDomain: "https://shop.example.com",
		CustomerEmail:  "buyer@example.com",
		DiscountCode:   code,
		SubtotalPrice:  subtotal,
		RawPayload:     []byte(`{"order_id":"` + orderID + `"}`),
	}
}

func countOrders(t *testing.T, uow *repository.UnitOfWork, merchantID int64) int64 {
	t.Helper()
	_, total, err := uow.Orders.List(context.Background(), repository.OrderFilter{MerchantID: merchantID})
	require.NoError(t, err)
	return total
}

func TestOrderService_ProcessOrder_WithAffiliate(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	aff := registerTestAffiliate(t, uow, m, 0.1, "SAVE10")
	svc := NewOrderService(uow)

	result, err := svc.ProcessOrder(ctx, webhookInput("1001", "SAVE10", "100.00"))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	require.NotNil(t, result.Affiliate)
	assert.Equal(t, aff.ID, result.Affiliate.ID)

	order := result.Order
	assert.Equal(t, m.ID, order.MerchantID)
	assert.Equal(t, "1001", order.ExternalOrderID)
	require.NotNil(t, order.AffiliateID)
	assert.Equal(t, aff.ID, *order.AffiliateID)
	assert.Equal(t, int64(10000), order.SubtotalAmount)
	assert.Equal(t, int64(1000), order.CommissionOwed)
	assert.Equal(t, model.PayoutStatusUnpaid, order.PayoutStatus)
	require.NotNil(t, order.DiscountCode)
	assert.Equal(t, "SAVE10", *order.DiscountCode)

	stored, err := uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.CommissionOwed)
	assert.JSONEq(t, `{"order_id":"1001"}`, string(stored.RawPayload))
}

func TestOrderService_ProcessOrder_Rounding(t *testing.T) {
	uow := newTestUoW(t)
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	registerTestAffiliate(t, uow, m, 0.1, "TEN")

	// 12.35 * 10% = 1.235 → 1.24
	result, err := NewOrderService(uow).ProcessOrder(context.Background(), webhookInput("r1", "TEN", "12.35"))
	require.NoError(t, err)
	assert.Equal(t, int64(1235), result.Order.SubtotalAmount)
	assert.Equal(t, int64(124), result.Order.CommissionOwed)
}

func TestOrderService_ProcessOrder_HalfCentRounding(t *testing.T) {
	uow := newTestUoW(t)
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	registerTestAffiliate(t, uow, m, 0.29, "RATE29")
	svc := NewOrderService(uow)

	tests := []struct {
		orderID  string
		subtotal string
		want     string
	}{
		{"h1", "0.50", "0.15"}, // 0.145 → 0.15
		{"h2", "1.50", "0.44"}, // 0.435 → 0.44
		{"h3", "100.00", "29.00"},
	}
	for _, tt := range tests {
		result, err := svc.ProcessOrder(context.Background(), webhookInput(tt.orderID, "RATE29", tt.subtotal))
		require.NoError(t, err, tt.subtotal)
		assert.Equal(t, tt.want, model.FormatAmount(result.Order.CommissionOwed), tt.subtotal)
	}
}

func TestOrderService_ProcessOrder_SoftMiss(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	svc := NewOrderService(uow)

	result, err := svc.ProcessOrder(ctx, webhookInput("1", "UNKNOWN", "50"))
	require.NoError(t, err)
	assert.Nil(t, result.Affiliate)
	assert.Nil(t, result.Order.AffiliateID)
	assert.Zero(t, result.Order.CommissionOwed)
	require.NotNil(t, result.Order.DiscountCode)
	assert.Equal(t, "UNKNOWN", *result.Order.DiscountCode)

	// 无折扣码
	result, err = svc.ProcessOrder(ctx, webhookInput("2", "", "50"))
	require.NoError(t, err)
	assert.Nil(t, result.Order.AffiliateID)
	assert.Nil(t, result.Order.DiscountCode)
}

func TestOrderService_ProcessOrder_DeletedAffiliateNotMatched(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	aff := registerTestAffiliate(t, uow, m, 0.1, "OLD")
	require.NoError(t, NewAffiliateService(uow, nil).Delete(ctx, m.ID, aff.ID))

	result, err := NewOrderService(uow).ProcessOrder(ctx, webhookInput("1", "OLD", "100"))
	require.NoError(t, err)
	assert.Nil(t, result.Order.AffiliateID)
	assert.Zero(t, result.Order.CommissionOwed)
}

func TestOrderService_ProcessOrder_UnknownMerchant(t *testing.T) {
	uow := newTestUoW(t)
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")

	in := webhookInput("1", "", "10")
	in.MerchantDomain = "https://other.example.com"
	_, err := NewOrderService(uow).ProcessOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrMerchantNotFound)
	assert.Zero(t, countOrders(t, uow, m.ID))
}

func TestOrderService_ProcessOrder_Validation(t *testing.T) {
	uow := newTestUoW(t)
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	svc := NewOrderService(uow)

	tests := []struct {
		name  string
		in    ProcessOrderInput
		field string
	}{
		{"缺少 order_id", webhookInput("", "", "10"), "order_id"},
		{"缺少小计", webhookInput("1", "", ""), "subtotal_price"},
		{"小计格式错误", webhookInput("1", "", "abc"), "subtotal_price"},
		{"负数小计", webhookInput("1", "", "-10"), "subtotal_price"},
		{"小数位过多", webhookInput("1", "", "1.005"), "subtotal_price"},
		{"邮箱错误", func() ProcessOrderInput { in := webhookInput("1", "", "10"); in.CustomerEmail = "x"; return in }(), "customer_email"},
		{"缺少域名", func() ProcessOrderInput { in := webhookInput("1", "", "10"); in.MerchantDomain = ""; return in }(), "merchant_domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProcessOrder(context.Background(), tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
	assert.Zero(t, countOrders(t, uow, m.ID))
}

func TestOrderService_ProcessOrder_Duplicate(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	registerTestAffiliate(t, uow, m, 0.1, "SAVE10")
	svc := NewOrderService(uow)

	first, err := svc.ProcessOrder(ctx, webhookInput("1001", "SAVE10", "100.00"))
	require.NoError(t, err)

	// 重投的内容即使不同，也返回已有订单，不重算
	second, err := svc.ProcessOrder(ctx, webhookInput("1001", "", "999.00"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, int64(10000), second.Order.SubtotalAmount)
	assert.Equal(t, int64(1000), second.Order.CommissionOwed)

	assert.Equal(t, int64(1), countOrders(t, uow, m.ID))
}

func TestOrderService_ProcessOrder_ConcurrentDuplicates(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	svc := NewOrderService(uow)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[int64]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ProcessOrder(ctx, webhookInput("same", "", "10"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if !result.Duplicate {
				created++
			}
			ids[result.Order.ID] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, int64(1), countOrders(t, uow, m.ID))
}

func TestOrderService_ProcessOrder_CreatedAtUTC(t *testing.T) {
	uow := newTestUoW(t)
	registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	svc := NewOrderService(uow)
	fixed := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	result, err := svc.ProcessOrder(context.Background(), webhookInput("1", "", "10"))
	require.NoError(t, err)
	assert.True(t, result.Order.CreatedAt.Equal(fixed))
}

func TestOrderService_ListOrders(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	m := registerTestMerchant(t, uow, "https://shop.example.com", "a@example.com")
	aff := registerTestAffiliate(t, uow, m, 0.1, "A")
	svc := NewOrderService(uow)

	_, err := svc.ProcessOrder(ctx, webhookInput("1", "A", "10"))
	require.NoError(t, err)
	_, err = svc.ProcessOrder(ctx, webhookInput("2", "", "10"))
	require.NoError(t, err)

	orders, total, err := svc.ListOrders(ctx, m.ID, ListOrdersInput{AffiliateID: aff.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "1", orders[0].ExternalOrderID)

	_, _, err = svc.ListOrders(ctx, m.ID, ListOrdersInput{PayoutStatus: "bogus"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
