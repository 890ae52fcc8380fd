package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cafe-inventory/internal/config"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

type slowSink struct{ d time.Duration }

func (s slowSink) Handle(ctx context.Context, _ model.Event) error {
	select {
	case <-time.After(s.d):
	case <-ctx.Done():
	}
	return nil
}

func TestManagerScaler_UpAndDown(t *testing.T) {
	// Configure aggressive scaling
	t.Setenv("WORKER_MIN", "1")
	t.Setenv("WORKER_MAX", "3")
	t.Setenv("WORKER_COUNT", "1")
	t.Setenv("SCALE_INTERVAL", "50ms")
	t.Setenv("SCALE_UP_BACKLOG_PER_WORKER", "1")
	t.Setenv("SCALE_DOWN_IDLE_TICKS", "1")

	cfg, err := config.Load()
	require.NoError(t, err)
	obs.InitLogger()
	mgr := NewManager(cfg, New(2), slowSink{d: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)
	defer mgr.Stop()

	// Enqueue backlog to trigger scale up
	for i := 0; i < 50; i++ {
		_ = mgr.Enqueue(stockEvent("scale", int64(i)))
	}

	require.Eventually(t, func() bool { return mgr.WorkerCount() > 1 }, 2*time.Second, 25*time.Millisecond,
		"expected scale up, worker_count=%d", mgr.WorkerCount())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelDrain()
	require.True(t, mgr.DrainUntil(ctxDrain), "drain timeout")

	// Allow scaler to tick and scale down to min
	require.Eventually(t, func() bool { return mgr.WorkerCount() == cfg.WorkerMin }, 2*time.Second, 50*time.Millisecond)
}
