package model

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Merchant{},
		&Affiliate{},
		&Order{},
		&PayoutRecord{},
	}
}
