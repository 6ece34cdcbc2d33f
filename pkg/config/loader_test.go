package config

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_File(t *testing.T) {
	viper.Reset()
	defer log.SetLevel(log.InfoLevel)

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
archive:
  creator: beamline-7
  compression_level: 9
catalog:
  driver: none
log:
  level: debug
`), 0644))

	require.NoError(t, Load(cfg))
	assert.Equal(t, "beamline-7", viper.GetString("archive.creator"))
	assert.Equal(t, 9, viper.GetInt("archive.compression_level"))
	assert.Equal(t, "none", viper.GetString("catalog.driver"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	// 未覆盖的键保持默认值
	assert.Equal(t, 5432, viper.GetInt("database.port"))
	assert.Equal(t, "us-east-1", viper.GetString("s3.region"))
}

func TestLoad_EnvOverride(t *testing.T) {
	viper.Reset()
	defer log.SetLevel(log.InfoLevel)

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("s3:\n  bucket: from-file\n"), 0644))
	t.Setenv("NXZ_S3_BUCKET", "from-env")

	require.NoError(t, Load(cfg))
	assert.Equal(t, "from-env", viper.GetString("s3.bucket"))
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	viper.Reset()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("archive: [unclosed"), 0644))
	assert.Error(t, Load(bad))

	viper.Reset()
	level := filepath.Join(dir, "level.yaml")
	require.NoError(t, os.WriteFile(level, []byte("log:\n  level: loud\n"), 0644))
	assert.ErrorContains(t, Load(level), "invalid log.level")
}
