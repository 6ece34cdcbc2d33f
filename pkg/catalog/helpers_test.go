package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nexuszip/pkg/nexus"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo 构建隔离的测试环境，每个测试一个内存库
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	catalogDB := NewWithConn(db)
	require.NoError(t, catalogDB.AutoMigrate(Models()...))

	return NewRepository(catalogDB)
}

// mockSummary 生成一个带 n 个字段的概要
func mockSummary(name, creator string, ts time.Time, n int) *nexus.Summary {
	s := &nexus.Summary{
		FileName: name,
		FileTime: ts,
		Creator:  creator,
		Version:  nexus.NeXusVersion,
		Attrs:    map[string]any{"NX_class": "NXroot", "file_name": name},
		Groups:   1,
	}
	for i := 0; i < n; i++ {
		s.Fields = append(s.Fields, nexus.FieldSummary{
			Path:   fmt.Sprintf("/entry/f%d", i),
			DType:  "float64",
			Format: "<f8",
			Shape:  []int{i + 1},
			Bytes:  int64(8 * (i + 1)),
		})
		s.Bytes += int64(8 * (i + 1))
	}
	return s
}

// mustRecord 登记概要，失败则终止
func mustRecord(t *testing.T, repo *Repository, s *nexus.Summary, msgAndArgs ...any) {
	t.Helper()
	err := repo.Record(context.Background(), "/data/"+s.FileName, s)
	require.NoError(t, err, msgAndArgs...)
}
