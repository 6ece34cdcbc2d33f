package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Store 是被装饰的对象存储，s3.Adapter 实现了它
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// CachedStore 为对象存储加一层 Redis 摘要缓存
// 缓存记录每个键最近一次上传内容的 sha256，内容未变的归档不会重复上传。
type CachedStore struct {
	backend Store
	client  *redis.Client
	ttl     time.Duration
}

type Config struct {
	RedisURL string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 0 表示永不过期
}

func NewCachedStore(backend Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{backend: backend, client: client, ttl: cfg.TTL}, nil
}

func (s *CachedStore) cacheKey(key string) string {
	return "nxz:pub:" + key
}

// Has 优先查 Redis，未命中时查底层存储
func (s *CachedStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.cacheKey(key)).Result()
	if err != nil {
		// 缓存故障降级为直接查底层
		log.WithError(err).Warn("redis exists failed")
	} else if n > 0 {
		return true, nil
	}
	return s.backend.Has(ctx, key)
}

// Put 上传后记录摘要；r 会被完整读入以计算摘要
func (s *CachedStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	h := sha256.New()
	if err := s.backend.Put(ctx, key, io.TeeReader(r, h), size); err != nil {
		return err
	}
	s.remember(ctx, key, hex.EncodeToString(h.Sum(nil)))
	return nil
}

// Get 透传，缓存只保存摘要
func (s *CachedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// PublishFile 上传本地归档，内容与上次发布相同时跳过上传
// 返回对象键以及是否真正发生了上传。
func (s *CachedStore) PublishFile(ctx context.Context, filename string) (string, bool, error) {
	key := filepath.Base(filename)

	digest, size, err := fileDigest(filename)
	if err != nil {
		return "", false, err
	}

	// 1. 查缓存中的摘要
	prev, err := s.client.Get(ctx, s.cacheKey(key)).Result()
	switch {
	case err == nil && prev == digest:
		log.WithField("key", key).Debug("archive unchanged, skipping upload")
		return key, false, nil
	case err != nil && !errors.Is(err, redis.Nil):
		log.WithError(err).Warn("redis get failed")
	}

	// 2. 上传
	f, err := os.Open(filename)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	if err := s.backend.Put(ctx, key, f, size); err != nil {
		return "", false, err
	}

	// 3. 只有上传成功才写缓存
	s.remember(ctx, key, digest)
	return key, true, nil
}

func (s *CachedStore) remember(ctx context.Context, key, digest string) {
	if err := s.client.Set(ctx, s.cacheKey(key), digest, s.ttl).Err(); err != nil {
		log.WithError(err).Warn("redis set failed")
	}
}

func (s *CachedStore) Close() error {
	return s.client.Close()
}

func fileDigest(filename string) (string, int64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
