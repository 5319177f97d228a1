package model

// Merchant 商户，与 User 一对一
type Merchant struct {
	BaseModel
	UserID      int64  `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName string `gorm:"size:255;not null" json:"display_name"`
	Domain      string `gorm:"size:255;uniqueIndex;not null" json:"domain"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Merchant) TableName() string {
	return "merchants"
}
