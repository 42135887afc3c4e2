package featurebank

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/k-tonal/featurebank/resource"
)

func TestSchedulerPreservesInputOrder(t *testing.T) {
	sources := make([]string, 32)
	for i := range sources {
		sources[i] = fmt.Sprintf("src%02d", i)
	}

	// Adversarial completion order: every task sleeps a random amount, so
	// results come back in scrambled order while slots stay positional.
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(11))
	ctrl := resource.NewController(resource.Config{MaxWorkers: 8})

	infos, ok, failed := runScheduler(context.Background(), ctrl, NoopLogger(), sources,
		func(ctx context.Context, src string) (SourceInfo, error) {
			mu.Lock()
			d := time.Duration(rng.Intn(5)) * time.Millisecond
			mu.Unlock()
			time.Sleep(d)
			return SourceInfo{Name: src}, nil
		})

	require.Empty(t, failed)
	for i, src := range sources {
		require.True(t, ok[i])
		require.Equal(t, src, infos[i].Name)
	}
}

func TestSchedulerIsolatesFailures(t *testing.T) {
	sources := []string{"a", "b", "c", "d"}
	ctrl := resource.NewController(resource.Config{MaxWorkers: 2})

	infos, ok, failed := runScheduler(context.Background(), ctrl, NoopLogger(), sources,
		func(ctx context.Context, src string) (SourceInfo, error) {
			if src == "b" || src == "d" {
				return SourceInfo{}, fmt.Errorf("broken %s", src)
			}
			return SourceInfo{Name: src}, nil
		})

	require.Len(t, failed, 2)
	require.Equal(t, []bool{true, false, true, false}, ok)
	require.Equal(t, "a", infos[0].Name)
	require.Equal(t, "c", infos[2].Name)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sources := []string{"a", "b", "c"}
	ctrl := resource.NewController(resource.Config{MaxWorkers: 1})

	var started int
	_, _, failed := runScheduler(ctx, ctrl, NoopLogger(), sources,
		func(ctx context.Context, src string) (SourceInfo, error) {
			started++
			cancel()
			return SourceInfo{Name: src}, nil
		})

	// The first source ran to completion; cancellation stopped new ones.
	require.Equal(t, 1, started)
	require.Len(t, failed, 1)
	require.True(t, strings.Contains(failed[0].Error(), "context canceled"))
}
