package disk

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"nexuszip/pkg/storage"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(t *testing.T, s *Adapter, p, content string) {
	t.Helper()
	w, err := s.Create(p)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readString(t *testing.T, s *Adapter, p string) string {
	t.Helper()
	data, err := storage.ReadAll(s, p)
	require.NoError(t, err)
	return string(data)
}

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	// 2. 测试 Mkdir + Create
	require.NoError(t, store.Mkdir("/entry"))
	writeString(t, store, "/entry/counts", "1\n2\n")

	// 验证文件是否真的存在于物理磁盘
	_, err = os.Stat(filepath.Join(tmpDir, "entry", "counts"))
	assert.NoError(t, err, "文件应该存在于工作目录中")

	// 3. 测试 Exists / IsDir
	assert.True(t, store.Exists("/entry"))
	assert.True(t, store.IsDir("/entry"))
	assert.True(t, store.IsDir("/"))
	assert.True(t, store.Exists("entry/counts"), "相对路径也应被规范化")
	assert.False(t, store.IsDir("/entry/counts"))
	assert.False(t, store.Exists("/missing"))

	// 4. 测试 Append
	w, err := store.Append("/entry/counts")
	require.NoError(t, err)
	_, err = io.WriteString(w, "3\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "1\n2\n3\n", readString(t, store, "/entry/counts"))

	size, err := store.Size("/entry/counts")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	// 5. 测试 List
	names, err := store.List("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"entry"}, names)
}

func TestDiskAdapter_Errors(t *testing.T) {
	store := NewWithFs(afero.NewMemMapFs())

	_, err := store.Open("/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Size("/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Remove("/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Mkdir("/entry"))
	err = store.Mkdir("/entry")
	assert.ErrorIs(t, err, storage.ErrExists)

	assert.False(t, store.ReadOnly())
}

func TestDiskAdapter_RenameAndRemove(t *testing.T) {
	store := NewWithFs(afero.NewMemMapFs())

	require.NoError(t, store.Mkdir("/entry"))
	require.NoError(t, store.Mkdir("/entry/sub"))
	writeString(t, store, "/entry/.attrs", `{"old":true}`)
	writeString(t, store, "/entry/.attrs.next", `{"new":true}`)

	// 原子替换：目标存在时被覆盖
	require.NoError(t, store.Rename("/entry/.attrs.next", "/entry/.attrs"))
	assert.Equal(t, `{"new":true}`, readString(t, store, "/entry/.attrs"))
	assert.False(t, store.Exists("/entry/.attrs.next"))

	// 递归删除
	writeString(t, store, "/entry/sub/data", "x")
	require.NoError(t, store.Remove("/entry"))
	assert.False(t, store.Exists("/entry"))
	assert.False(t, store.Exists("/entry/sub/data"))
}

func TestDiskAdapter_Truncate(t *testing.T) {
	store := NewWithFs(afero.NewMemMapFs())
	writeString(t, store, "/counts", "1\n2\n")

	// 追加之后截断回原来的长度
	w, err := store.Append("/counts")
	require.NoError(t, err)
	_, err = io.WriteString(w, "3\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, store.Truncate("/counts", 4))
	assert.Equal(t, "1\n2\n", readString(t, store, "/counts"))

	assert.ErrorIs(t, store.Truncate("/missing", 0), storage.ErrNotFound)
}
