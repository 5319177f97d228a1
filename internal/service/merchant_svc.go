package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"affiliate_order_v1/internal/middleware"
	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/repository"
	"affiliate_order_v1/pkg/logger"
)

// ==================== 输入输出 ====================

// RegisterMerchantInput 商户注册参数
type RegisterMerchantInput struct {
	Domain string `json:"domain" validate:"required,http_url,max=255"`
	Name   string `json:"name" validate:"required,max=255"`
	Email  string `json:"email" validate:"required,email,max=255"`
	APIKey string `json:"api_key" validate:"required,max=72"`
}

// UpdateMerchantInput 商户更新参数（全量覆盖）
type UpdateMerchantInput struct {
	Domain string `json:"domain" validate:"required,http_url,max=255"`
	Name   string `json:"name" validate:"required,max=255"`
	Email  string `json:"email" validate:"required,email,max=255"`
	APIKey string `json:"api_key" validate:"required,max=72"`
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Merchant    *model.Merchant
}

// ==================== MerchantService 商户服务 ====================

// MerchantService 商户服务
type MerchantService struct {
	uow        *repository.UnitOfWork
	bcryptCost int
}

// NewMerchantService 创建商户服务
func NewMerchantService(uow *repository.UnitOfWork) *MerchantService {
	return &MerchantService{
		uow:        uow,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// SetBcryptCost 设置哈希强度（测试使用 bcrypt.MinCost）
func (s *MerchantService) SetBcryptCost(cost int) {
	s.bcryptCost = cost
}

// Register 注册商户，User 与 Merchant 在同一事务中创建
func (s *MerchantService) Register(ctx context.Context, in RegisterMerchantInput) (*model.Merchant, error) {
	in.Domain = strings.TrimSpace(in.Domain)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.APIKey), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	fingerprint := APIKeyFingerprint(in.APIKey)

	var merchant *model.Merchant
	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		if err := checkMerchantUnique(ctx, tx, in.Email, fingerprint, in.Domain, 0, 0); err != nil {
			return err
		}

		user := &model.User{
			Name:       in.Name,
			Email:      in.Email,
			Password:   string(hash),
			APIKeyHash: fingerprint,
			Type:       model.UserTypeMerchant,
		}
		if err := tx.Users.Create(ctx, user); err != nil {
			return err
		}

		merchant = &model.Merchant{
			UserID:      user.ID,
			DisplayName: in.Name,
			Domain:      in.Domain,
			User:        user,
		}
		return tx.Merchants.Create(ctx, merchant)
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, &ConflictError{Field: "merchant"}
		}
		return nil, storeErr("register merchant", err)
	}

	logger.L().Infow("[MerchantService] 商户注册成功", "merchant_id", merchant.ID, "domain", merchant.Domain)
	return merchant, nil
}

// Update 全量更新商户及其 User，全部成功或全部回滚
func (s *MerchantService) Update(ctx context.Context, merchantID int64, in UpdateMerchantInput) (*model.Merchant, error) {
	in.Domain = strings.TrimSpace(in.Domain)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.APIKey), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	fingerprint := APIKeyFingerprint(in.APIKey)

	var merchant *model.Merchant
	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		var err error
		merchant, err = tx.Merchants.GetByID(ctx, merchantID)
		if err != nil {
			return err
		}
		if merchant == nil || merchant.User == nil {
			return ErrMerchantNotFound
		}

		if err := checkMerchantUnique(ctx, tx, in.Email, fingerprint, in.Domain, merchant.UserID, merchant.ID); err != nil {
			return err
		}

		user := merchant.User
		user.Name = in.Name
		user.Email = in.Email
		user.Password = string(hash)
		user.APIKeyHash = fingerprint
		if err := tx.Users.Update(ctx, user); err != nil {
			return err
		}

		merchant.DisplayName = in.Name
		merchant.Domain = in.Domain
		return tx.Merchants.Update(ctx, merchant)
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, &ConflictError{Field: "merchant"}
		}
		return nil, storeErr("update merchant", err)
	}

	logger.L().Infow("[MerchantService] 商户信息已更新", "merchant_id", merchant.ID)
	return merchant, nil
}

// FindByEmail 按邮箱查找商户
// 邮箱格式错误或不存在时返回 (nil, nil)
func (s *MerchantService) FindByEmail(ctx context.Context, email string) (*model.Merchant, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, nil
	}

	user, err := s.uow.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("find merchant by email", err)
	}
	if user == nil || user.Merchant == nil {
		return nil, nil
	}

	merchant := user.Merchant
	merchant.User = user
	return merchant, nil
}

// GetByID 获取商户
func (s *MerchantService) GetByID(ctx context.Context, id int64) (*model.Merchant, error) {
	merchant, err := s.uow.Merchants.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get merchant", err)
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	return merchant, nil
}

// ==================== 认证相关 ====================

// Authenticate 校验邮箱 + API Key
func (s *MerchantService) Authenticate(ctx context.Context, email, apiKey string) (*model.Merchant, error) {
	merchant, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if merchant == nil || merchant.User == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(merchant.User.Password), []byte(apiKey)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return merchant, nil
}

// Login 校验凭证并签发 Access Token
func (s *MerchantService) Login(ctx context.Context, email, apiKey string) (*LoginResult, error) {
	merchant, err := s.Authenticate(ctx, email, apiKey)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := middleware.GenerateAccessToken(merchant.ID, merchant.UserID, merchant.User.Email)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		Merchant:    merchant,
	}, nil
}

// ==================== 辅助方法 ====================

// APIKeyFingerprint API Key 的 SHA-256 指纹，用于唯一性约束
func APIKeyFingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkMerchantUnique 邮箱、API Key、域名不能被其他商户占用
func checkMerchantUnique(ctx context.Context, tx *repository.UnitOfWork, email, fingerprint, domain string, excludeUserID, excludeMerchantID int64) error {
	exists, err := tx.Users.ExistsByEmail(ctx, email, excludeUserID)
	if err != nil {
		return err
	}
	if exists {
		return &ConflictError{Field: "email"}
	}

	exists, err = tx.Users.ExistsByAPIKeyHash(ctx, fingerprint, excludeUserID)
	if err != nil {
		return err
	}
	if exists {
		return &ConflictError{Field: "api_key"}
	}

	other, err := tx.Merchants.GetByDomain(ctx, domain)
	if err != nil {
		return err
	}
	if other != nil && other.ID != excludeMerchantID {
		return &ConflictError{Field: "domain"}
	}
	return nil
}
