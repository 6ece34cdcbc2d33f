// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"nexuszip/pkg/catalog"
	"nexuszip/pkg/nexus"
	"nexuszip/pkg/publish/cache"
	"nexuszip/pkg/publish/s3"

	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 目录与发布器按配置初始化，命令行只通过它访问外部服务
type App struct {
	// Catalog 在 catalog.driver=none 时为 nil
	Catalog *catalog.Repository

	db        *catalog.DB
	publisher Publisher
}

// Publisher 把本地归档上传到对象存储
// uploaded 为 false 表示内容与上次发布相同而跳过了上传
type Publisher interface {
	PublishFile(ctx context.Context, filename string) (key string, uploaded bool, err error)
}

// directPublisher 是没有缓存时的发布器，每次都上传
type directPublisher struct {
	*s3.Adapter
}

func (p directPublisher) PublishFile(ctx context.Context, filename string) (string, bool, error) {
	key, err := p.Adapter.PublishFile(ctx, filename)
	return key, err == nil, err
}

// NewApp 按 Viper 配置组装依赖，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	db, err := initCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init catalog: %w", err)
	}

	a := &App{db: db}
	if db != nil {
		a.Catalog = catalog.NewRepository(db)
	}
	return a, nil
}

// initCatalog 根据 catalog.driver 打开目录数据库，none 时返回 nil
func initCatalog(ctx context.Context) (*catalog.DB, error) {
	driver := viper.GetString("catalog.driver")
	switch driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		p := viper.GetString("catalog.path")
		if p == "" {
			return nil, fmt.Errorf("catalog.path is required for sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, err
		}
		return catalog.NewDB(ctx, catalog.Config{Driver: driver, Path: p})
	case "postgres":
		return catalog.NewDB(ctx, catalog.Config{
			Driver:   driver,
			Host:     viper.GetString("database.host"),
			Port:     viper.GetInt("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			DBName:   viper.GetString("database.dbname"),
			SSLMode:  viper.GetString("database.sslmode"),
		})
	default:
		return nil, fmt.Errorf("unsupported catalog driver: %s", driver)
	}
}

// s3Config 从 Viper 读取对象存储配置
func s3Config() (s3.Config, error) {
	cfg := s3.Config{
		Endpoint:        viper.GetString("s3.endpoint"),
		Region:          viper.GetString("s3.region"),
		Bucket:          viper.GetString("s3.bucket"),
		Prefix:          viper.GetString("s3.prefix"),
		AccessKeyID:     viper.GetString("s3.access_key"),
		SecretAccessKey: viper.GetString("s3.secret_key"),
	}
	if cfg.Bucket == "" {
		return cfg, fmt.Errorf("s3 bucket is required (set s3.bucket)")
	}
	return cfg, nil
}

// Publisher 懒加载对象存储客户端，只有 publish 命令需要网络
// 配置了 cache.redis_url 时用 Redis 摘要缓存装饰，跳过未变化的归档。
func (a *App) Publisher(ctx context.Context) (Publisher, error) {
	if a.publisher != nil {
		return a.publisher, nil
	}
	cfg, err := s3Config()
	if err != nil {
		return nil, err
	}
	adapter, err := s3.NewAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	url := viper.GetString("cache.redis_url")
	if url == "" {
		a.publisher = directPublisher{adapter}
		return a.publisher, nil
	}

	cached, err := cache.NewCachedStore(adapter, cache.Config{
		RedisURL: url,
		TTL:      viper.GetDuration("cache.ttl"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init publish cache: %w", err)
	}
	a.publisher = cached
	return cached, nil
}

// ArchiveOptions 把 archive.* 配置转换为会话选项
func ArchiveOptions() []nexus.Option {
	var opts []nexus.Option
	if dir := viper.GetString("archive.workdir"); dir != "" {
		opts = append(opts, nexus.WithWorkDir(dir))
	}
	if viper.IsSet("archive.compression_level") {
		level := viper.GetInt("archive.compression_level")
		method := zip.Deflate
		if level == 0 {
			method = zip.Store
		}
		opts = append(opts, nexus.WithCompression(method, level))
	}
	if creator := viper.GetString("archive.creator"); creator != "" {
		opts = append(opts, nexus.WithCreator(creator))
	}
	return opts
}

// RecordArchives 以只读会话并发汇总多个归档，并在目录可用时登记
// 每个归档一个独立会话，任何一个失败都会取消其余的；登记按输入顺序串行进行。
func (a *App) RecordArchives(ctx context.Context, paths []string) ([]*nexus.Summary, error) {
	summaries := make([]*nexus.Summary, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := summarize(p)
			if err != nil {
				return err
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a.Catalog != nil {
		for i, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, err
			}
			if err := a.Catalog.Record(ctx, abs, summaries[i]); err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
	}

	log.WithField("archives", len(paths)).Debug("summarized archives")
	return summaries, nil
}

func summarize(p string) (*nexus.Summary, error) {
	f, err := nexus.Open(p, nexus.ModeRead)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	defer f.Close()

	s, err := nexus.Summarize(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return s, nil
}

// Close 释放数据库与缓存连接
func (a *App) Close() error {
	if c, ok := a.publisher.(*cache.CachedStore); ok {
		c.Close()
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
