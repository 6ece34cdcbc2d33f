package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nexuszip/pkg/app"
	"nexuszip/pkg/catalog"
	"nexuszip/pkg/codec"
	"nexuszip/pkg/exporter"
	"nexuszip/pkg/nexus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// writeArchive 写入一个带组、字段与链接的小归档
func writeArchive(t *testing.T, name string) {
	t.Helper()
	f, err := nexus.Create(name, nexus.WithCreator("cli-test"))
	require.NoError(t, err)

	entry, err := f.Root().CreateGroup("entry", "NXentry", nil)
	require.NoError(t, err)
	data, err := codec.FromSlice([]int64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	_, err = entry.CreateField("counts", nexus.FieldOptions{DType: "int64", Units: "counts", Data: data})
	require.NoError(t, err)
	_, err = entry.CreateLink("alias", "counts")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// injectApp 用内存 sqlite 目录替换全局 App
// 每条命令结束后 App 会被关闭，所以每次执行前都要重新注入
func injectApp(t *testing.T, db *catalog.DB) {
	t.Helper()
	NXZ = &app.App{Catalog: catalog.NewRepository(db)}
}

func newTestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := catalog.NewWithConn(conn)
	require.NoError(t, db.AutoMigrate(catalog.Models()...))

	// 保持一个连接，避免共享内存库在命令之间被释放
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// run 执行一条命令并返回标准输出
func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--catalog", "none"))
	require.NoError(t, rootCmd.Execute(), "nxz %s", strings.Join(args, " "))

	// 重置子命令的标志变量
	catRaw, exportOutput, exportDir = false, "", ""
	attrsSet, attrsDelete = nil, nil
	return out.String()
}

func TestIntegration_InspectFlow(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "scan.nxz")
	writeArchive(t, name)

	// 1. ls
	out := run(t, "ls", name)
	assert.Contains(t, out, "/entry/counts")
	assert.Contains(t, out, "/entry/alias -> /entry/counts")

	// 2. cat 解码与原始负载
	out = run(t, "cat", name, "/entry/alias")
	assert.Equal(t, "[1 2 3]\n[4 5 6]\n", out)

	out = run(t, "cat", "--raw", name, "/entry/counts")
	assert.Equal(t, "1\t2\t3\n4\t5\t6\n", out)

	// 3. attrs 修改后重新打包
	run(t, "attrs", name, "--set", "run=42", "--set", "title=hello")
	out = run(t, "attrs", name)
	assert.Contains(t, out, "42")
	assert.Contains(t, out, `"hello"`)
	assert.Contains(t, out, `"cli-test"`)

	out = run(t, "attrs", name, "/entry/counts")
	assert.Contains(t, out, `"counts"`)

	// 4. export CBOR
	cborFile := filepath.Join(dir, "counts.cbor")
	run(t, "export", name, "/entry/counts", "-o", cborFile)
	raw, err := os.ReadFile(cborFile)
	require.NoError(t, err)
	doc, err := exporter.DecodeDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, doc.Shape)

	// 5. export --dir
	run(t, "export", name, "--dir", filepath.Join(dir, "restored"))
	restored, err := os.ReadFile(filepath.Join(dir, "restored", "entry", "alias"))
	require.NoError(t, err)
	assert.Equal(t, "1\t2\t3\n4\t5\t6\n", string(restored))
}

func TestIntegration_PackUnpack(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "scan.nxz")
	writeArchive(t, name)

	tree := filepath.Join(dir, "tree")
	out := run(t, "unpack", name, tree)
	assert.Contains(t, out, "Extracted")

	info, err := os.Lstat(filepath.Join(tree, "entry", "counts"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	repacked := filepath.Join(dir, "repacked.nxz")
	out = run(t, "pack", tree, repacked)
	assert.Contains(t, out, "Packed")

	out = run(t, "cat", repacked, "/entry/counts")
	assert.Equal(t, "[1 2 3]\n[4 5 6]\n", out)
}

func TestIntegration_Catalog(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nxz")
	b := filepath.Join(dir, "b.nxz")
	writeArchive(t, a)
	writeArchive(t, b)

	db := newTestCatalog(t)

	injectApp(t, db)
	out := run(t, "catalog", "add", a, b)
	assert.Contains(t, out, "recorded")

	injectApp(t, db)
	out = run(t, "catalog", "ls")
	assert.Contains(t, out, "a.nxz")
	assert.Contains(t, out, "b.nxz")

	injectApp(t, db)
	out = run(t, "catalog", "ls", "a.nxz")
	assert.Contains(t, out, "/entry/alias")
	assert.Contains(t, out, "/entry/counts")
}
