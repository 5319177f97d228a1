package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/repository"
	"affiliate_order_v1/pkg/logger"
)

// AffiliateNotifier 推广员创建通知
type AffiliateNotifier interface {
	AffiliateCreated(ctx context.Context, merchant *model.Merchant, affiliate *model.Affiliate) error
}

// discountCodeInput 折扣码校验
type discountCodeInput struct {
	DiscountCode string `json:"discount_code" validate:"omitempty,alphanum,max=64"`
}

const (
	generatedCodeBytes    = 4 // 8 位十六进制
	generatedCodeAttempts = 5
	notifyTimeout         = 30 * time.Second
)

// ==================== AffiliateService 推广员服务 ====================

// AffiliateService 推广员服务
type AffiliateService struct {
	uow      *repository.UnitOfWork
	notifier AffiliateNotifier

	// 等待后台通知发送完成
	notifyWG sync.WaitGroup
}

// NewAffiliateService 创建推广员服务
func NewAffiliateService(uow *repository.UnitOfWork, notifier AffiliateNotifier) *AffiliateService {
	return &AffiliateService{
		uow:      uow,
		notifier: notifier,
	}
}

// Register 为商户注册推广员
// discountCode 为空时自动生成；成功后异步通知商户，通知失败只记日志
func (s *AffiliateService) Register(ctx context.Context, merchant *model.Merchant, commissionRate float64, discountCode string) (*model.Affiliate, error) {
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if math.IsNaN(commissionRate) || commissionRate <= 0 || commissionRate > 1 {
		return nil, fmt.Errorf("%w: commission rate must be greater than 0 and at most 1", ErrInvalidArgument)
	}

	discountCode = strings.TrimSpace(discountCode)
	if err := validateStruct(discountCodeInput{DiscountCode: discountCode}); err != nil {
		return nil, err
	}
	generated := discountCode == ""

	affiliate := &model.Affiliate{
		MerchantID:     merchant.ID,
		UserID:         merchant.UserID,
		CommissionRate: commissionRate,
		DiscountCode:   discountCode,
	}

	err := s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		if generated {
			code, err := s.generateUniqueCode(ctx, tx, merchant.ID)
			if err != nil {
				return err
			}
			affiliate.DiscountCode = code
		} else {
			exists, err := tx.Affiliates.ExistsByDiscountCode(ctx, merchant.ID, discountCode)
			if err != nil {
				return err
			}
			if exists {
				return &ConflictError{Field: "discount_code"}
			}
		}
		return tx.Affiliates.Create(ctx, affiliate)
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, &ConflictError{Field: "discount_code"}
		}
		return nil, storeErr("register affiliate", err)
	}

	logger.L().Infow("[AffiliateService] 推广员注册成功",
		"merchant_id", merchant.ID,
		"affiliate_id", affiliate.ID,
		"discount_code", affiliate.DiscountCode,
	)

	s.notifyCreated(merchant, affiliate)
	return affiliate, nil
}

// Get 获取商户下的推广员（不含已删除）
func (s *AffiliateService) Get(ctx context.Context, merchantID, affiliateID int64) (*model.Affiliate, error) {
	affiliate, err := s.uow.Affiliates.GetByID(ctx, merchantID, affiliateID, false)
	if err != nil {
		return nil, storeErr("get affiliate", err)
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	return affiliate, nil
}

// List 商户下全部推广员
func (s *AffiliateService) List(ctx context.Context, merchantID int64) ([]model.Affiliate, error) {
	affiliates, err := s.uow.Affiliates.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, storeErr("list affiliates", err)
	}
	return affiliates, nil
}

// Delete 软删除推广员，历史订单保留归属
func (s *AffiliateService) Delete(ctx context.Context, merchantID, affiliateID int64) error {
	rows, err := s.uow.Affiliates.Delete(ctx, merchantID, affiliateID)
	if err != nil {
		return storeErr("delete affiliate", err)
	}
	if rows == 0 {
		return ErrAffiliateNotFound
	}

	logger.L().Infow("[AffiliateService] 推广员已删除", "merchant_id", merchantID, "affiliate_id", affiliateID)
	return nil
}

// Wait 等待后台通知完成（优雅关闭使用）
func (s *AffiliateService) Wait() {
	s.notifyWG.Wait()
}

// ==================== 辅助方法 ====================

func (s *AffiliateService) notifyCreated(merchant *model.Merchant, affiliate *model.Affiliate) {
	if s.notifier == nil {
		return
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()

		// 与请求生命周期解耦
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.AffiliateCreated(ctx, merchant, affiliate); err != nil {
			logger.L().Warnw("[AffiliateService] 推广员创建通知发送失败",
				"merchant_id", merchant.ID,
				"affiliate_id", affiliate.ID,
				"error", err,
			)
		}
	}()
}

func (s *AffiliateService) generateUniqueCode(ctx context.Context, tx *repository.UnitOfWork, merchantID int64) (string, error) {
	for i := 0; i < generatedCodeAttempts; i++ {
		code, err := GenerateDiscountCode()
		if err != nil {
			return "", err
		}
		exists, err := tx.Affiliates.ExistsByDiscountCode(ctx, merchantID, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", &ConflictError{Field: "discount_code"}
}

// GenerateDiscountCode 生成 8 位大写十六进制折扣码
func GenerateDiscountCode() (string, error) {
	b := make([]byte, generatedCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
