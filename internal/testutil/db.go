// Package testutil 测试公用：内存 SQLite 数据库
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/pkg/database"
)

// NewDB 创建独立的内存数据库并迁移全部模型
// 共享缓存 + 单连接，保证同一测试内所有查询看到同一份数据
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("%sfile:%s?mode=memory&cache=shared&_foreign_keys=0", database.SQLitePrefix, uuid.NewString())
	db, err := database.InitDB(database.Config{
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, model.AllModels()...)
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
