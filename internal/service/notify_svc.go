package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/pkg/logger"
)

// ==================== EmailNotifier 邮件通知 ====================

// EmailNotifier 通过 SendGrid 发送通知
// 未配置 API Key 时只输出日志（开发模式）
type EmailNotifier struct {
	apiKey    string
	fromEmail string
	fromName  string
	baseURL   string // 覆盖 SendGrid 地址，测试使用
}

// NewEmailNotifier 创建邮件通知
func NewEmailNotifier(apiKey, fromEmail, fromName string) *EmailNotifier {
	if apiKey == "" {
		logger.L().Infow("[EmailNotifier] 未配置 SendGrid API Key，通知仅输出日志")
	}
	return &EmailNotifier{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// AffiliateCreated 通知商户新推广员已创建
func (n *EmailNotifier) AffiliateCreated(ctx context.Context, merchant *model.Merchant, affiliate *model.Affiliate) error {
	if merchant.User == nil {
		return fmt.Errorf("merchant %d has no user loaded", merchant.ID)
	}

	subject := "New affiliate created"
	plain := fmt.Sprintf(
		"Hi %s,\n\nA new affiliate has been created for %s.\nDiscount code: %s\nCommission rate: %.2f%%\n",
		merchant.DisplayName, merchant.Domain, affiliate.DiscountCode, affiliate.CommissionRate*100,
	)
	html := fmt.Sprintf(
		"<p>Hi %s,</p><p>A new affiliate has been created for %s.</p><p>Discount code: <strong>%s</strong><br>Commission rate: %.2f%%</p>",
		merchant.DisplayName, merchant.Domain, affiliate.DiscountCode, affiliate.CommissionRate*100,
	)

	return n.send(ctx, merchant.User.Email, merchant.DisplayName, subject, plain, html)
}

func (n *EmailNotifier) send(ctx context.Context, toEmail, toName, subject, plain, html string) error {
	if n.apiKey == "" {
		logger.L().Infow("[EmailNotifier] 邮件未发送（开发模式）",
			"to", toEmail,
			"subject", subject,
			"body", plain,
		)
		return nil
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	// Client 非并发安全，每次发送新建
	client := sendgrid.NewSendClient(n.apiKey)
	if n.baseURL != "" {
		client.BaseURL = n.baseURL
	}

	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	logger.L().Infow("[EmailNotifier] 邮件已发送", "to", toEmail, "subject", subject, "status", resp.StatusCode)
	return nil
}
