package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "SHUTDOWN_TIMEOUT", "STORE_BACKEND", "AUTH_REQUIRED",
		"WORKER_MIN", "WORKER_MAX", "WORKER_COUNT", "SCALE_INTERVAL",
		"LOW_STOCK_THRESHOLD", "TRACING_EXPORTER", "KAFKA_BROKERS",
	} {
		unsetenv(t, k)
	}
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 15*time.Second, c.ShutdownTimeout)
	assert.Equal(t, BackendMemory, c.StoreBackend)
	assert.True(t, c.AuthRequired)
	assert.Equal(t, 2, c.WorkerMin)
	assert.Equal(t, 6, c.WorkerMax)
	assert.Equal(t, 500*time.Millisecond, c.ScaleInterval)
	assert.Equal(t, int64(5), c.LowStockThreshold)
	assert.Equal(t, "none", c.TracingExporter)
	assert.Empty(t, c.KafkaBrokers)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("WORKER_MIN", "2")
	t.Setenv("WORKER_MAX", "3")
	t.Setenv("WORKER_COUNT", "9")
	t.Setenv("SCALE_INTERVAL", "250ms")
	t.Setenv("AUTH_REQUIRED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, 2*time.Second, c.ShutdownTimeout)
	assert.Equal(t, 3, c.InitialWorkerCount, "initial workers clamp to max")
	assert.Equal(t, 250*time.Millisecond, c.ScaleInterval)
	assert.False(t, c.AuthRequired)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "firestore")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("STORE_BACKEND", BackendPostgres)
	t.Setenv("POSTGRES_DSN", "")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	unsetenv(t, "HTTP_ADDR")
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("HTTP_ADDR=:7070\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("HTTP_ADDR") })
	c, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.HTTPAddr)

	_, err = LoadFile(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
}

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	prev, ok := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if ok {
			_ = os.Setenv(key, prev)
		}
	})
}
