package storage

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/Rally/internal/models"
)

// InitDatabase 根据 DSN 选择驱动：postgres 前缀走 PostgreSQL，其余按 SQLite 打开
func InitDatabase(dsn string, maxIdleConns, maxOpenConns int, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres") || strings.HasPrefix(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Error("连接数据库失败", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("获取 sql.DB 失败", zap.Error(err))
		return nil, err
	}

	if dialector.Name() == "sqlite" {
		// SQLite 单写者，共享一个连接避免 database is locked
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		log.Error("模型迁移失败", zap.Error(err))
		return nil, err
	}
	log.Info("数据库已就绪", zap.String("driver", dialector.Name()))
	return db, nil
}

// Migrate 自动迁移全部表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Profile{},
		&models.Group{},
		&models.GroupMember{},
		&models.BucketListItem{},
		&models.Upvote{},
		&models.Comment{},
		&models.DateSuggestion{},
		&models.DateVote{},
	)
}

// BuildDSN 构建PostgreSQL DSN
func BuildDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}
