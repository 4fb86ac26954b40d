// internal/pkg/database/mysql.go
package database

import (
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tally/internal/pkg/config"
)

// Open 根据配置建立 gorm 连接。
// DSN 通过 go-sql-driver 的 Config 构造，避免手工拼接转义问题。
func Open(cfg config.MySQLConfig) (*gorm.DB, error) {
	dsn := driver.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DBName:               cfg.Database,
		ParseTime:            true,
		Loc:                  time.UTC,
		AllowNativePasswords: true,
		Params: map[string]string{
			"charset": "utf8mb4",
			// 行锁等待上限，超时会被映射为 Conflict 错误
			"innodb_lock_wait_timeout": "5",
		},
	}

	db, err := gorm.Open(gormmysql.Open(dsn.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
