package packager

import (
	stdzip "archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"nexuszip/pkg/ignore"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree 在 root 下创建一个带空目录、嵌套文件与符号链接的工作目录
func buildTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "entry", "data"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".attrs"), []byte(`{"NX_class":"NXroot"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "entry", "data", "counts"), []byte("1\n2\n3\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".attrs.next"), []byte("{"), 0644))
	require.NoError(t, os.Symlink(filepath.Join("data", "counts"), filepath.Join(root, "entry", "alias")))
}

func TestPack_PreservesSymlinksAndDirs(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)
	fs := afero.NewOsFs()

	m, err := ignore.NewMatcher(fs, root)
	require.NoError(t, err)

	var buf bytes.Buffer
	st, err := Pack(context.Background(), fs, root, &buf, WithMatcher(m))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, 1, st.Symlinks)
	assert.Equal(t, 3, st.Dirs)

	// 1. 用标准库独立读取归档
	zr, err := stdzip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	entries := make(map[string]*stdzip.File)
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	// 2. 目录是显式条目，临时文件被忽略
	assert.Contains(t, entries, "empty/")
	assert.Contains(t, entries, "entry/")
	assert.Contains(t, entries, "entry/data/")
	assert.NotContains(t, entries, ".attrs.next")

	// 3. 符号链接：Unix 创建系统，权限位为链接，内容为目标
	link := entries["entry/alias"]
	require.NotNil(t, link)
	assert.Equal(t, uint16(3), link.CreatorVersion>>8)
	assert.Equal(t, uint32(0120755), link.ExternalAttrs>>16)
	assert.True(t, link.Mode()&os.ModeSymlink != 0)

	rc, err := link.Open()
	require.NoError(t, err)
	target, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "data/counts", string(target))
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	src := t.TempDir()
	buildTree(t, src)
	fs := afero.NewOsFs()

	dest := filepath.Join(t.TempDir(), "scan.nxs")
	_, err := PackDir(context.Background(), fs, src, dest)
	require.NoError(t, err)

	_, err = os.Stat(dest + ".next")
	assert.True(t, os.IsNotExist(err), "临时归档应该已经被 rename")

	out := filepath.Join(t.TempDir(), "work")
	st, err := UnpackFile(context.Background(), fs, dest, out)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Symlinks)

	// 1. 符号链接被还原
	info, err := os.Lstat(filepath.Join(out, "entry", "alias"))
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	target, err := os.Readlink(filepath.Join(out, "entry", "alias"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "counts"), target)

	// 2. 通过链接读取到目标内容
	raw, err := os.ReadFile(filepath.Join(out, "entry", "alias"))
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(raw))

	// 3. 空目录存在
	info, err = os.Stat(filepath.Join(out, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestUnpack_RejectsEscapingEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		link  string
	}{
		{"parent dir", "../evil", ""},
		{"absolute", "/etc/evil", ""},
		{"symlink out", "entry/alias", "../../outside"},
		{"absolute symlink", "entry/alias", "/etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			hdr := &zip.FileHeader{Name: tt.entry, Method: zip.Store}
			content := "payload"
			if tt.link != "" {
				hdr.SetMode(symlinkMode)
				content = tt.link
			}
			w, err := zw.CreateHeader(hdr)
			require.NoError(t, err)
			_, err = io.WriteString(w, content)
			require.NoError(t, err)
			require.NoError(t, zw.Close())

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			require.NoError(t, err)

			_, err = Unpack(context.Background(), zr, afero.NewOsFs(), t.TempDir())
			assert.ErrorIs(t, err, ErrUnsafePath)
		})
	}
}

func TestPack_Cancelled(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Pack(ctx, afero.NewOsFs(), root, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}
