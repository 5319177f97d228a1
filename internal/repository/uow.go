package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ==================== UnitOfWork 工作单元 ====================

// UnitOfWork 工作单元（事务）
// 商户注册、订单入库、佣金结算都在单个事务内完成
type UnitOfWork struct {
	db         *gorm.DB
	Users      UserRepository
	Merchants  MerchantRepository
	Affiliates AffiliateRepository
	Orders     OrderRepository
	Payouts    PayoutRepository
}

// NewUnitOfWork 创建工作单元
func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{
		db:         db,
		Users:      NewUserRepository(db),
		Merchants:  NewMerchantRepository(db),
		Affiliates: NewAffiliateRepository(db),
		Orders:     NewOrderRepository(db),
		Payouts:    NewPayoutRepository(db),
	}
}

// Transaction 执行事务，fn 返回错误时整体回滚
func (u *UnitOfWork) Transaction(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewUnitOfWork(tx))
	})
}

// ==================== 错误判断 ====================

// IsDuplicateKey 是否唯一约束冲突
// 需要 gorm.Config.TranslateError，字符串匹配兜底未翻译的驱动错误
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
