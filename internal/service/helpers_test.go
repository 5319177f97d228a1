package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/queue"
	"affiliate_order_v1/internal/repository"
	"affiliate_order_v1/internal/testutil"
)

// ==================== 测试辅助 ====================

func newTestUoW(t *testing.T) *repository.UnitOfWork {
	t.Helper()
	return repository.NewUnitOfWork(testutil.NewDB(t))
}

func newTestMerchantService(uow *repository.UnitOfWork) *MerchantService {
	svc := NewMerchantService(uow)
	svc.SetBcryptCost(bcrypt.MinCost)
	return svc
}

func registerTestMerchant(t *testing.T, uow *repository.UnitOfWork, domain, email string) *model.Merchant {
	t.Helper()
	m, err := newTestMerchantService(uow).Register(context.Background(), RegisterMerchantInput{
		Domain: domain,
		Name:   "Test Shop",
		Email:  email,
		APIKey: "key-" + email,
	})
	require.NoError(t, err)
	return m
}

func registerTestAffiliate(t *testing.T, uow *repository.UnitOfWork, merchant *model.Merchant, rate float64, code string) *model.Affiliate {
	t.Helper()
	aff, err := NewAffiliateService(uow, nil).Register(context.Background(), merchant, rate, code)
	require.NoError(t, err)
	return aff
}

// mockNotifier 推广员通知 mock
type mockNotifier struct {
	mu    sync.Mutex
	calls []*model.Affiliate
	err   error
}

func (m *mockNotifier) AffiliateCreated(_ context.Context, _ *model.Merchant, affiliate *model.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, affiliate)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockEnqueuer 入队 mock
type mockEnqueuer struct {
	EnqueueFunc func(ctx context.Context, task queue.Task) error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, task queue.Task) error {
	return m.EnqueueFunc(ctx, task)
}
