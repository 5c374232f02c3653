package database

import (
	"github.com/glebarez/sqlite"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func InitDB(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		// 使用 github.com/glebarez/sqlite 驱动
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 自动迁移全部表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Workspace{}, &model.Workflow{}); err != nil {
		return err
	}
	return db.AutoMigrate(&model.Chat{}, &model.ChatMessage{}, &model.MessageSource{})
}
