package model

// 用户类型
const (
	UserTypeMerchant  = "merchant"
	UserTypeAffiliate = "affiliate"
)

// User 账号身份
// Password 存 API Key 的 bcrypt 哈希，APIKeyHash 存 SHA-256 指纹（用于唯一性约束）
type User struct {
	BaseModel
	Name       string `gorm:"size:255;not null" json:"name"`
	Email      string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string `gorm:"size:255;not null" json:"-"`
	APIKeyHash string `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Type       string `gorm:"size:20;index;not null" json:"type"`

	// 关联
	Merchant *Merchant `gorm:"foreignKey:UserID" json:"merchant,omitempty"`
}

func (User) TableName() string {
	return "users"
}
