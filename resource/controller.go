// Package resource budgets the pipeline's shared resources: worker slots for
// the extraction and scatter stages, an optional memory budget for loaded
// feature data, and an optional IO throughput limit for scatter writes.
package resource

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxWorkers bounds concurrent extraction/scatter tasks.
	// If 0, defaults to GOMAXPROCS.
	MaxWorkers int64

	// MemoryLimitBytes is a budget for feature data held in memory at once.
	// If 0, only tracking is performed.
	MemoryLimitBytes int64

	// IOLimitBytesPerSec throttles scatter write throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config. A nil Controller performs no limiting.
type Controller struct {
	cfg Config

	workerSem *semaphore.Weighted
	memSem    *semaphore.Weighted // nil if unlimited
	memUsed   atomic.Int64
	ioLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a controller for the given limits.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.MaxWorkers),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Workers returns the configured worker bound.
func (c *Controller) Workers() int64 {
	if c == nil {
		return int64(runtime.GOMAXPROCS(0))
	}
	return c.cfg.MaxWorkers
}

// AcquireWorker blocks until a worker slot is free or ctx is canceled.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workerSem.Acquire(ctx, 1)
}

// ReleaseWorker returns a worker slot.
func (c *Controller) ReleaseWorker() {
	if c != nil {
		c.workerSem.Release(1)
	}
}

// AcquireMemory reserves bytes against the memory budget, blocking until
// available or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns reserved bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsed returns the currently reserved bytes.
func (c *Controller) MemoryUsed() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// WaitIO blocks until the IO limiter admits a write of the given size.
// Oversized bursts are split across limiter waits.
func (c *Controller) WaitIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
