package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录、./.nxz、~/.nxz
		viper.AddConfigPath(".")
		viper.AddConfigPath(".nxz")
		viper.AddConfigPath(filepath.Join(home, ".nxz"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (NXZ_DATABASE_HOST 等)
	viper.SetEnvPrefix("NXZ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件；找不到文件时只用默认值与环境变量
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		log.Debug("no config file found, using defaults/env vars")
	} else {
		log.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}

	return applyLogLevel()
}

func setDefaults() {
	// 归档默认值
	viper.SetDefault("archive.workdir", os.TempDir())
	viper.SetDefault("archive.compression_level", -1)
	viper.SetDefault("archive.creator", "")

	// 目录默认值：本地 sqlite
	viper.SetDefault("catalog.driver", "sqlite")
	viper.SetDefault("catalog.path", filepath.Join(".nxz", "catalog.db"))

	// 数据库默认值
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 对象存储默认值
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.prefix", "")

	// 发布缓存默认关闭
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", "720h")

	viper.SetDefault("log.level", "info")
}

// applyLogLevel 把 log.level 应用到全局 logger
func applyLogLevel() error {
	level, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	log.SetLevel(level)
	return nil
}
