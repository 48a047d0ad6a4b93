package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "searchmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50061", c.GRPCAddr)
	assert.Equal(t, 9091, c.ObservabilityPort)
	assert.Equal(t, "local", c.DefaultIndexManager)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "sqlite", c.Catalog.Driver)
	assert.True(t, c.Catalog.PublishOnStart)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoad_NoArgsUsesDefaults(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeFile(t, `
grpc_addr: ":7000"
observability_port: 7001
shutdown_timeout: 3s
catalog:
  driver: pgx
  dsn: postgres://localhost/searchmeta
  publish_on_start: false
log:
  level: debug
  pretty: false
`)

	c, err := Load([]string{"-config", path, "-grpc-addr", ":8000", "-log-level", "warn"})
	require.NoError(t, err)

	assert.Equal(t, ":8000", c.GRPCAddr, "flag overrides file")
	assert.Equal(t, 7001, c.ObservabilityPort, "file overrides default")
	assert.Equal(t, 3*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "pgx", c.Catalog.Driver)
	assert.Equal(t, "postgres://localhost/searchmeta", c.Catalog.DSN)
	assert.False(t, c.Catalog.PublishOnStart)
	assert.Equal(t, "warn", c.Log.Level)
	assert.False(t, c.Log.Pretty)
	assert.Equal(t, "local", c.DefaultIndexManager, "unset values keep defaults")
}

func TestLoad_DisableCatalog(t *testing.T) {
	c, err := Load([]string{"-catalog-driver", ""})
	require.NoError(t, err)
	assert.Empty(t, c.Catalog.Driver)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "read config")

	_, err = Load([]string{"-config", writeFile(t, "grpc_addr: [unterminated")})
	assert.ErrorContains(t, err, "parse config")

	_, err = Load([]string{"-no-such-flag"})
	assert.Error(t, err)

	_, err = Load([]string{"-catalog-driver", "mysql", "-observability-port", "70000"})
	assert.ErrorContains(t, err, "unsupported catalog driver")
	assert.ErrorContains(t, err, "out of range")
}
