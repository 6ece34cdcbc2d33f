package nexus

import (
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"
)

// Mode 是文件的打开模式
type Mode string

const (
	ModeRead   Mode = "r"
	ModeWrite  Mode = "w"
	ModeAppend Mode = "a"
)

// NeXusVersion 写入根属性 NeXus_version 的版本号
const NeXusVersion = "0.0.1"

type options struct {
	timestamp time.Time
	creator   string
	method    uint16
	level     int
	workDir   string
	attrs     map[string]any
	ignore    []string
	logger    *log.Entry
}

func defaultOptions() options {
	return options{
		method: zip.Deflate,
		level:  flate.DefaultCompression,
		logger: log.NewEntry(log.StandardLogger()),
	}
}

// Option 配置 Open / Create
type Option func(*options)

// WithTimestamp 覆盖根属性 file_time，默认是打开时刻
func WithTimestamp(t time.Time) Option {
	return func(o *options) { o.timestamp = t }
}

// WithCreator 设置根属性 creator
func WithCreator(creator string) Option {
	return func(o *options) { o.creator = creator }
}

// WithCompression 设置关闭时打包使用的压缩方法与级别
func WithCompression(method uint16, level int) Option {
	return func(o *options) {
		o.method = method
		o.level = level
	}
}

// WithWorkDir 指定工作目录的父目录，默认是系统临时目录
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithAttrs 在打开时写入额外的根属性
func WithAttrs(kv map[string]any) Option {
	return func(o *options) { o.attrs = kv }
}

// WithIgnore 追加打包时的忽略规则 (gitignore 语法)
func WithIgnore(patterns ...string) Option {
	return func(o *options) { o.ignore = append(o.ignore, patterns...) }
}

// WithLogger 注入日志入口
func WithLogger(entry *log.Entry) Option {
	return func(o *options) {
		if entry != nil {
			o.logger = entry
		}
	}
}
