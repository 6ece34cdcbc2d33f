package archive

import (
	"bytes"
	"io"
	"os"
	"testing"

	"nexuszip/pkg/storage"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArchive 在内存中构造一个小型归档
// entry/            (显式目录)
// entry/.attrs
// entry/counts
// entry/alias       (符号链接 -> counts)
// implicit/data     (父目录没有显式条目)
func buildArchive(t *testing.T) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	_, err := zw.Create("entry/")
	require.NoError(t, err)

	files := map[string]string{
		"entry/.attrs":  `{"NX_class":"NXentry"}`,
		"entry/counts":  "1\n2\n3\n",
		"implicit/data": "hello",
	}
	for _, name := range []string{"entry/.attrs", "entry/counts", "implicit/data"} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = io.WriteString(w, files[name])
		require.NoError(t, err)
	}

	hdr := &zip.FileHeader{Name: "entry/alias", Method: zip.Store}
	hdr.SetMode(os.ModeSymlink | 0755)
	w, err := zw.CreateHeader(hdr)
	require.NoError(t, err)
	_, err = io.WriteString(w, "counts")
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestArchiveAdapter_Index(t *testing.T) {
	r := buildArchive(t)
	a, err := NewFromReader(r, r.Size())
	require.NoError(t, err)
	defer a.Close()

	// 1. 目录推断
	assert.True(t, a.IsDir("/"))
	assert.True(t, a.IsDir("/entry"))
	assert.True(t, a.IsDir("/implicit"), "没有显式条目的父目录也应被识别")
	assert.False(t, a.IsDir("/entry/counts"))

	// 2. 存在性
	assert.True(t, a.Exists("/entry/counts"))
	assert.True(t, a.Exists("entry/.attrs"))
	assert.False(t, a.Exists("/entry/missing"))
	assert.False(t, a.Exists("/entr"), "前缀匹配必须以 / 为边界")

	// 3. 列目录
	names, err := a.List("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"entry", "implicit"}, names)

	names, err = a.List("/entry")
	require.NoError(t, err)
	assert.Equal(t, []string{".attrs", "alias", "counts"}, names)

	_, err = a.List("/entry/counts")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 4. 清单
	entries := a.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, "entry/.attrs", entries[0].Name)
	assert.Greater(t, entries[0].Offset, int64(0))
}

func TestArchiveAdapter_OpenAndSize(t *testing.T) {
	r := buildArchive(t)
	a, err := NewFromReader(r, r.Size())
	require.NoError(t, err)

	data, err := storage.ReadAll(a, "/entry/counts")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(data))

	size, err := a.Size("/entry/counts")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	// 符号链接被解析到目标内容
	data, err = storage.ReadAll(a, "/entry/alias")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(data))

	_, err = a.Open("/entry/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestArchiveAdapter_ReadOnly(t *testing.T) {
	r := buildArchive(t)
	a, err := NewFromReader(r, r.Size())
	require.NoError(t, err)

	assert.True(t, a.ReadOnly())
	assert.ErrorIs(t, a.Mkdir("/new"), storage.ErrReadOnly)
	assert.ErrorIs(t, a.Remove("/entry"), storage.ErrReadOnly)
	assert.ErrorIs(t, a.Rename("/entry/counts", "/x"), storage.ErrReadOnly)
	assert.ErrorIs(t, a.Truncate("/entry/counts", 0), storage.ErrReadOnly)

	_, err = a.Create("/entry/counts")
	assert.ErrorIs(t, err, storage.ErrReadOnly)
	_, err = a.Append("/entry/counts")
	assert.ErrorIs(t, err, storage.ErrReadOnly)

	// 只读调用之后内容保持不变
	data, err := storage.ReadAll(a, "/entry/counts")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(data))
}
