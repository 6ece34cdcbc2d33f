package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"nexuszip/pkg/ignore"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	// ErrSymlinkUnsupported 文件系统不支持读取或创建符号链接
	ErrSymlinkUnsupported = errors.New("filesystem does not support symlinks")
	// ErrUnsafePath 归档条目会写到解包根目录之外
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// symlinkMode 是归档中符号链接条目的权限位 (lrwxr-xr-x)
const symlinkMode = os.ModeSymlink | 0755

type options struct {
	method  uint16
	level   int
	matcher *ignore.Matcher
}

// Option 配置打包行为
type Option func(*options)

// WithMethod 设置普通文件的压缩方法 (zip.Deflate 或 zip.Store)
func WithMethod(method uint16) Option {
	return func(o *options) { o.method = method }
}

// WithLevel 设置 deflate 压缩级别
func WithLevel(level int) Option {
	return func(o *options) { o.level = level }
}

// WithMatcher 设置忽略规则，nil 表示不忽略任何文件
func WithMatcher(m *ignore.Matcher) Option {
	return func(o *options) { o.matcher = m }
}

// Stats 汇总一次打包或解包
type Stats struct {
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
}

// Pack 把 root 下的目录树写成 zip 归档
//
// 目录以显式条目写入，空组在重新打开后依然存在。
// 符号链接不会被跟随：条目内容是链接目标，权限位标记为 Unix 符号链接。
func Pack(ctx context.Context, fs afero.Fs, root string, w io.Writer, opts ...Option) (Stats, error) {
	o := options{method: zip.Deflate, level: flate.DefaultCompression}
	for _, opt := range opts {
		opt(&o)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, o.level)
	})

	var st Stats
	root = filepath.Clean(root)
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if o.matcher.Matches(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			st.Symlinks++
			return writeSymlink(zw, fs, p, rel)
		case info.IsDir():
			st.Dirs++
			return writeDir(zw, info, rel)
		case info.Mode().IsRegular():
			st.Files++
			n, err := writeFile(zw, fs, p, rel, info, o.method)
			st.Bytes += n
			return err
		}
		log.WithField("path", rel).Warn("skipping irregular file")
		return nil
	})
	if err != nil {
		zw.Close()
		return st, fmt.Errorf("failed to pack %s: %w", root, err)
	}
	if err := zw.Close(); err != nil {
		return st, fmt.Errorf("failed to finish archive: %w", err)
	}

	log.WithFields(log.Fields{
		"root":     root,
		"files":    st.Files,
		"dirs":     st.Dirs,
		"symlinks": st.Symlinks,
		"bytes":    st.Bytes,
	}).Debug("packed archive")
	return st, nil
}

func writeDir(zw *zip.Writer, info os.FileInfo, rel string) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = rel + "/"
	hdr.Method = zip.Store
	_, err = zw.CreateHeader(hdr)
	return err
}

func writeSymlink(zw *zip.Writer, fs afero.Fs, p, rel string) error {
	lr, ok := fs.(afero.LinkReader)
	if !ok {
		return fmt.Errorf("%s: %w", rel, ErrSymlinkUnsupported)
	}
	target, err := lr.ReadlinkIfPossible(p)
	if err != nil {
		return err
	}

	hdr := &zip.FileHeader{Name: rel, Method: zip.Store}
	hdr.SetMode(symlinkMode)
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.WriteString(fw, filepath.ToSlash(target))
	return err
}

func writeFile(zw *zip.Writer, fs afero.Fs, p, rel string, info os.FileInfo, method uint16) (int64, error) {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	hdr.Name = rel
	hdr.Method = method

	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}
	f, err := fs.Open(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(fw, f)
}

// PackDir 把 root 打包到 dest
// 先写 dest.next，完成后 rename，失败时旧归档保持不变。
func PackDir(ctx context.Context, fs afero.Fs, root, dest string, opts ...Option) (Stats, error) {
	tmp := dest + ".next"
	f, err := fs.Create(tmp)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	st, err := Pack(ctx, fs, root, f, opts...)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fs.Remove(tmp)
		return st, err
	}
	if err := fs.Rename(tmp, dest); err != nil {
		fs.Remove(tmp)
		return st, fmt.Errorf("failed to commit %s: %w", dest, err)
	}
	return st, nil
}

// Unpack 把归档展开到 root
// 符号链接条目还原为符号链接，越出 root 的条目被拒绝。
func Unpack(ctx context.Context, r *zip.Reader, fs afero.Fs, root string) (Stats, error) {
	var st Stats
	if err := fs.MkdirAll(root, 0755); err != nil {
		return st, err
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		name, err := safeName(f.Name)
		if err != nil {
			return st, err
		}
		if name == "" {
			continue
		}
		dst := filepath.Join(root, filepath.FromSlash(name))
		mode := f.Mode()

		switch {
		case mode&os.ModeSymlink != 0:
			st.Symlinks++
			err = unpackSymlink(fs, f, dst, name)
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			st.Dirs++
			err = fs.MkdirAll(dst, 0755)
		default:
			st.Files++
			var n int64
			n, err = unpackFile(fs, f, dst)
			st.Bytes += n
		}
		if err != nil {
			return st, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}

	log.WithFields(log.Fields{
		"root":     root,
		"files":    st.Files,
		"symlinks": st.Symlinks,
	}).Debug("unpacked archive")
	return st, nil
}

// UnpackFile 打开 fs 中的归档文件并展开到 root
func UnpackFile(ctx context.Context, fs afero.Fs, src, root string) (Stats, error) {
	f, err := fs.Open(src)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Stats{}, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read archive %s: %w", src, err)
	}
	return Unpack(ctx, zr, fs, root)
}

// safeName 规范化条目名，拒绝绝对路径与 ".."
func safeName(name string) (string, error) {
	name = strings.TrimSuffix(name, "/")
	if name == "" {
		return "", nil
	}
	if path.IsAbs(name) || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

func unpackSymlink(fs afero.Fs, f *zip.File, dst, name string) error {
	linker, ok := fs.(afero.Linker)
	if !ok {
		return ErrSymlinkUnsupported
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return err
	}

	// 链接目标只允许指向归档内部
	target := string(raw)
	if path.IsAbs(target) {
		return fmt.Errorf("symlink target %q: %w", target, ErrUnsafePath)
	}
	if _, err := safeName(path.Join(path.Dir(name), target)); err != nil {
		return fmt.Errorf("symlink target %q: %w", target, ErrUnsafePath)
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	fs.Remove(dst)
	return linker.SymlinkIfPossible(filepath.FromSlash(target), dst)
}

func unpackFile(fs afero.Fs, f *zip.File, dst string) (int64, error) {
	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}

	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
