package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cafe-inventory/internal/config"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	obs.InitLogger()
	cfg := config.MustLoad()
	cfg.StoreBackend = config.BackendMemory
	cfg.TracingExporter = "none"
	cfg.KafkaBrokers = nil
	return cfg
}

func TestContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, memoryConfig(t))
	require.NoError(t, err)
	c.Start(ctx)

	created, err := Seed(ctx, c.Catalog())
	require.NoError(t, err)
	require.Len(t, created, len(SeedProducts))
	assert.Equal(t, "Muffin", created[0].Name)

	again, err := Seed(ctx, c.Catalog())
	require.NoError(t, err)
	assert.Empty(t, again)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	c.Shutdown(sctx)

	events := c.Journal().Recent(10)
	require.Len(t, events, len(SeedProducts))
	for _, ev := range events {
		assert.Equal(t, model.EventProductCreated, ev.Kind)
	}
	assert.True(t, c.Manager().IsShuttingDown())
}

func TestContainerRejectsBadSchedule(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StockAuditSchedule = "every now and then"
	_, err := NewContainer(context.Background(), cfg)
	require.Error(t, err)

	cfg = memoryConfig(t)
	cfg.SessionPruneSchedule = "whenever"
	_, err = NewContainer(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)

	st, ping, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, ping)
	require.NoError(t, st.Close())

	cfg.StoreBackend = config.BackendDocstore
	cfg.DocstoreURL = ""
	_, _, err = OpenStore(ctx, cfg)
	assert.Error(t, err)

	cfg.StoreBackend = "firestore"
	_, _, err = OpenStore(ctx, cfg)
	assert.Error(t, err)
}
