package catalog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config 数据库配置
type Config struct {
	Driver   string // "sqlite" 或 "postgres"
	Path     string // sqlite 数据库文件
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable" for local
}

// DB 封装了 GORM 实例，作为目录层的入口
type DB struct {
	conn *gorm.DB
}

// Models 返回需要迁移的全部表
func Models() []any {
	return []any{&ArchiveRecord{}, &FieldRecord{}}
}

// NewDB 按配置打开 sqlite 或 postgres 并迁移表结构
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("catalog path not set")
		}
		dialector = sqlite.Open(cfg.Path)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层 sql.DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}

	return &DB{conn: db}, nil
}

// NewWithConn 使用现有的 GORM 连接，单元测试用它接入内存 sqlite
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

func (d *DB) AutoMigrate(models ...any) error {
	return d.conn.AutoMigrate(models...)
}

func (d *DB) GetConn() *gorm.DB {
	return d.conn
}

// Close 关闭底层连接池
func (d *DB) Close() error {
	sqlDB, err := d.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
