package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	log "github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("object not found")

// ContentType 是归档对象的 MIME 类型
const ContentType = "application/zip"

// Adapter 把打包好的归档发布到 S3 兼容的对象存储
type Adapter struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string // 对象键前缀，例如 "archives/"
	AccessKeyID     string
	SecretAccessKey string
}

// NewAdapter 初始化 S3 客户端 (AWS SDK v2)
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not set")
	}

	// 1. 加载基础配置 (仅包含 Region 和 Credentials)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. 使用 BaseEndpoint 覆盖默认地址；MinIO 必须强制 Path Style
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	// 3. 确保 Bucket 存在
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.Bucket})
	if err != nil {
		_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &cfg.Bucket})
		if err != nil {
			log.WithFields(log.Fields{
				"bucket": cfg.Bucket,
				"error":  err,
			}).Warn("failed to ensure bucket exists")
		}
	}

	return &Adapter{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// objectKey 把逻辑键映射到带前缀的对象键
func (s *Adapter) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put 上传对象，size 未知时传 -1
func (s *Adapter) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        r,
		ContentType: aws.String(ContentType),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

// Get 下载对象
func (s *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 错误映射为 ErrNotFound
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	return resp.Body, nil
}

// Has 检查对象是否存在
func (s *Adapter) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// 某些 S3 实现只返回 generic 404
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, err
}

// List 列出前缀下的逻辑键
func (s *Adapter) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// PublishFile 上传本地归档，对象键为文件基名，返回该键
func (s *Adapter) PublishFile(ctx context.Context, filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", filename)
	}

	key := filepath.Base(filename)
	if err := s.Put(ctx, key, f, info.Size()); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"bucket": s.bucket,
		"key":    s.objectKey(key),
		"size":   info.Size(),
	}).Info("published archive")
	return key, nil
}
