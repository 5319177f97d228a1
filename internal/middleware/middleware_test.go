package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== JWT ====================

func TestGenerateAndParseToken(t *testing.T) {
	token, expiresAt, err := GenerateAccessToken(3, 7, "shop@example.com")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.MerchantID)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "shop@example.com", claims.Email)
	assert.Equal(t, "access", claims.Subject)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _, err := GenerateAccessToken(1, 1, "a@example.com")
	require.NoError(t, err)

	orig := GetJWTConfig()
	SetJWTConfig(&JWTConfig{SecretKey: "other", AccessTokenTTL: time.Hour, Issuer: orig.Issuer})
	defer SetJWTConfig(orig)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestJWTAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"merchant_id": GetMerchantID(c)})
	})

	token, _, err := GenerateAccessToken(42, 1, "a@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"无认证信息", "", http.StatusUnauthorized},
		{"格式错误", "Token " + token, http.StatusUnauthorized},
		{"无效 token", "Bearer not-a-token", http.StatusUnauthorized},
		{"正常", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// ==================== 冷却限流 ====================

func TestCooldownLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewCooldownLimiter()
	limiter.now = func() time.Time { return now }

	key := PayoutKey(1, 2)
	assert.Equal(t, "merchant:1:affiliate:2:payout", key)

	assert.True(t, limiter.Check(key, time.Minute).Allowed)

	now = now.Add(20 * time.Second)
	res := limiter.Check(key, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)
	assert.False(t, limiter.CheckOnly(key, time.Minute).Allowed)

	now = now.Add(41 * time.Second)
	assert.True(t, limiter.CheckOnly(key, time.Minute).Allowed)
	assert.True(t, limiter.Check(key, time.Minute).Allowed)

	limiter.Reset(key)
	assert.True(t, limiter.Check(key, time.Minute).Allowed)
}

func TestPayoutCooldown(t *testing.T) {
	limiter := NewCooldownLimiter()
	status := http.StatusAccepted

	r := gin.New()
	r.POST("/affiliates/:id/payout", func(c *gin.Context) {
		c.Set(ContextKeyMerchantID, int64(1))
		c.Next()
	}, PayoutCooldown(limiter, time.Minute), func(c *gin.Context) {
		c.JSON(status, gin.H{})
	})

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w
	}

	assert.Equal(t, http.StatusAccepted, do("/affiliates/5/payout").Code)

	w := do("/affiliates/5/payout")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 其他推广员不受影响
	assert.Equal(t, http.StatusAccepted, do("/affiliates/6/payout").Code)

	assert.Equal(t, http.StatusBadRequest, do("/affiliates/abc/payout").Code)

	// 处理失败时释放冷却
	status = http.StatusNotFound
	assert.Equal(t, http.StatusNotFound, do("/affiliates/7/payout").Code)
	assert.Equal(t, http.StatusNotFound, do("/affiliates/7/payout").Code)
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "结算冷却中，请 30 秒后重试", formatRetryMessage(30*time.Second))
	assert.Equal(t, "结算冷却中，请 2 分钟后重试", formatRetryMessage(2*time.Minute))
	assert.Equal(t, "结算冷却中，请 1 分 5 秒后重试", formatRetryMessage(65*time.Second))
	assert.Equal(t, "结算冷却中，请 1 秒后重试", formatRetryMessage(200*time.Millisecond))
}

// ==================== 请求日志 ====================

func TestRequestLogger_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, w.Header().Get(HeaderRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(HeaderRequestID))
}
