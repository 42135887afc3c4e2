package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerBound(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})
	ctx := context.Background()

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, c.AcquireWorker(ctx))
			defer c.ReleaseWorker()

			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int64(2))
}

func TestAcquireWorkerCanceled(t *testing.T) {
	c := NewController(Config{MaxWorkers: 1})
	require.NoError(t, c.AcquireWorker(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, c.AcquireWorker(ctx))
	c.ReleaseWorker()
}

func TestMemoryBudget(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 60))
	require.Equal(t, int64(60), c.MemoryUsed())

	blocked, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.Error(t, c.AcquireMemory(blocked, 60))

	c.ReleaseMemory(60)
	require.Equal(t, int64(0), c.MemoryUsed())
	require.NoError(t, c.AcquireMemory(ctx, 100))
	c.ReleaseMemory(100)
}

func TestNilController(t *testing.T) {
	var c *Controller
	ctx := context.Background()

	require.NoError(t, c.AcquireWorker(ctx))
	c.ReleaseWorker()
	require.NoError(t, c.AcquireMemory(ctx, 1<<40))
	c.ReleaseMemory(1 << 40)
	require.NoError(t, c.WaitIO(ctx, 1<<30))
	require.Positive(t, c.Workers())
}

func TestWaitIOSplitsBursts(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	// Larger than burst; must not error.
	require.NoError(t, c.WaitIO(context.Background(), (1<<20)+1234))
}
