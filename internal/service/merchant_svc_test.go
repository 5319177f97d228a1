package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"affiliate_order_v1/internal/middleware"
)

func TestMerchantService_Register(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()

	m, err := newTestMerchantService(uow).Register(ctx, RegisterMerchantInput{
		Domain: "https://shop.example.com",
		Name:   "Shop",
		Email:  " Owner@Example.com ",
		APIKey: "secret-key",
	})
	require.NoError(t, err)
	require.NotNil(t, m.User)
	assert.NotZero(t, m.ID)
	assert.Equal(t, m.User.ID, m.UserID)
	assert.Equal(t, "owner@example.com", m.User.Email)
	assert.Equal(t, "https://shop.example.com", m.Domain)

	user, err := uow.Users.GetByID(ctx, m.UserID)
	require.NoError(t, err)
	assert.Equal(t, "merchant", user.Type)
	assert.NotEqual(t, "secret-key", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret-key")))
	assert.Equal(t, APIKeyFingerprint("secret-key"), user.APIKeyHash)
}

func TestMerchantService_Register_Validation(t *testing.T) {
	uow := newTestUoW(t)

	_, err := newTestMerchantService(uow).Register(context.Background(), RegisterMerchantInput{
		Domain: "not a url",
		Name:   "",
		Email:  "nope",
		APIKey: "",
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "domain")
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "api_key")

	// 校验失败不写库
	exists, err := uow.Users.ExistsByEmail(context.Background(), "nope", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMerchantService_Register_Conflicts(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	svc := newTestMerchantService(uow)

	_, err := svc.Register(ctx, RegisterMerchantInput{Domain: "https://a.example.com", Name: "A", Email: "a@example.com", APIKey: "key-a"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    RegisterMerchantInput
		field string
	}{
		{"邮箱重复", RegisterMerchantInput{Domain: "https://b.example.com", Name: "B", Email: "A@example.com", APIKey: "key-b"}, "email"},
		{"API Key 重复", RegisterMerchantInput{Domain: "https://b.example.com", Name: "B", Email: "b@example.com", APIKey: "key-a"}, "api_key"},
		{"域名重复", RegisterMerchantInput{Domain: "https://a.example.com", Name: "B", Email: "b@example.com", APIKey: "key-b"}, "domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			var ce *ConflictError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestMerchantService_Update(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	svc := newTestMerchantService(uow)
	m := registerTestMerchant(t, uow, "https://a.example.com", "a@example.com")

	updated, err := svc.Update(ctx, m.ID, UpdateMerchantInput{
		Domain: "https://new.example.com",
		Name:   "New Name",
		Email:  "new@example.com",
		APIKey: "new-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", updated.Domain)
	assert.Equal(t, "New Name", updated.DisplayName)

	reloaded, err := svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", reloaded.Domain)
	assert.Equal(t, "new@example.com", reloaded.User.Email)
	assert.Equal(t, "New Name", reloaded.User.Name)
	assert.Equal(t, APIKeyFingerprint("new-key"), reloaded.User.APIKeyHash)

	_, err = svc.Authenticate(ctx, "new@example.com", "new-key")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, "new@example.com", "key-a@example.com")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMerchantService_Update_KeepsOwnValues(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	m := registerTestMerchant(t, uow, "https://a.example.com", "a@example.com")

	// 使用自己原有的邮箱、域名、API Key 不算冲突
	_, err := newTestMerchantService(uow).Update(ctx, m.ID, UpdateMerchantInput{
		Domain: "https://a.example.com",
		Name:   "Renamed",
		Email:  "a@example.com",
		APIKey: "key-a@example.com",
	})
	assert.NoError(t, err)
}

func TestMerchantService_Update_AllOrNothing(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	svc := newTestMerchantService(uow)
	a := registerTestMerchant(t, uow, "https://a.example.com", "a@example.com")
	registerTestMerchant(t, uow, "https://b.example.com", "b@example.com")

	// 域名冲突：邮箱和名称也不能被改掉
	_, err := svc.Update(ctx, a.ID, UpdateMerchantInput{
		Domain: "https://b.example.com",
		Name:   "Changed",
		Email:  "changed@example.com",
		APIKey: "changed",
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "domain", ce.Field)

	reloaded, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", reloaded.User.Email)
	assert.Equal(t, "Test Shop", reloaded.DisplayName)

	// 校验失败
	_, err = svc.Update(ctx, a.ID, UpdateMerchantInput{Domain: "https://a.example.com", Name: "x", Email: "bad", APIKey: ""})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "api_key")

	// 商户不存在
	_, err = svc.Update(ctx, 999, UpdateMerchantInput{Domain: "https://z.example.com", Name: "z", Email: "z@example.com", APIKey: "z"})
	assert.ErrorIs(t, err, ErrMerchantNotFound)
}

func TestMerchantService_FindByEmail(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	svc := newTestMerchantService(uow)
	m := registerTestMerchant(t, uow, "https://a.example.com", "a@example.com")

	found, err := svc.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, m.ID, found.ID)

	// 格式错误不报错
	found, err = svc.FindByEmail(ctx, "not-an-email")
	assert.NoError(t, err)
	assert.Nil(t, found)

	found, err = svc.FindByEmail(ctx, "missing@example.com")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestMerchantService_Login(t *testing.T) {
	uow := newTestUoW(t)
	ctx := context.Background()
	svc := newTestMerchantService(uow)
	m := registerTestMerchant(t, uow, "https://a.example.com", "a@example.com")

	result, err := svc.Login(ctx, "a@example.com", "key-a@example.com")
	require.NoError(t, err)
	assert.Equal(t, m.ID, result.Merchant.ID)

	claims, err := middleware.ParseToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, m.ID, claims.MerchantID)
	assert.Equal(t, m.UserID, claims.UserID)

	_, err = svc.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "missing@example.com", "key")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMerchantService_GetByID_NotFound(t *testing.T) {
	_, err := newTestMerchantService(newTestUoW(t)).GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMerchantNotFound)
	assert.True(t, IsNotFound(err))
}
