// Package bench drives concurrent alloc/free workloads against a
// *mcheap.Heap, for soak-testing a heap's O(1) guarantees under
// contention and reporting throughput as it runs.
package bench

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcheap/mcheap/pkg/mcheap"
)

// Workload configures a concurrent alloc/free run.
type Workload struct {
	Heap       *mcheap.Heap
	NumWorkers int           // <= 0 selects 4
	Requests   int64         // total alloc/free cycles to run, across all workers
	MinSize    uint32        // smallest request size, inclusive
	MaxSize    uint32        // largest request size, inclusive
	Progress   time.Duration // 0 disables the progress reporter
}

// Stats accumulates counters a Workload's workers update concurrently.
type Stats struct {
	Allocs    atomic.Int64
	Frees     atomic.Int64
	OutOfMem  atomic.Int64 // Alloc calls that failed with ErrOutOfMemory
	Completed atomic.Int64 // finished alloc/free cycles
}

// Run drives the workload to completion (or until ctx is cancelled),
// distributing Requests cycles across NumWorkers goroutines via
// golang.org/x/sync/errgroup, and returns the accumulated Stats. Unlike the
// teacher's manual WaitGroup pool, an errgroup lets a worker's unexpected
// error (anything but the expected ErrOutOfMemory under pressure) cancel
// its siblings and surface immediately.
func Run(ctx context.Context, w Workload) (*Stats, error) {
	if w.NumWorkers <= 0 {
		w.NumWorkers = 4
	}
	if w.MaxSize < w.MinSize {
		w.MaxSize = w.MinSize
	}

	stats := &Stats{}
	startTime := time.Now()

	var done chan struct{}
	if w.Progress > 0 {
		done = make(chan struct{})
		go reportProgress(done, stats, w.Requests, w.Progress, startTime)
	}

	perWorker := w.Requests / int64(w.NumWorkers)
	remainder := w.Requests % int64(w.NumWorkers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.NumWorkers; i++ {
		n := perWorker
		if int64(i) < remainder {
			n++
		}
		seed := int64(i) + 1
		g.Go(func() error {
			return worker(gctx, w, stats, n, seed)
		})
	}
	err := g.Wait()

	if done != nil {
		close(done)
	}
	return stats, err
}

func worker(ctx context.Context, w Workload, stats *Stats, n int64, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	spread := w.MaxSize - w.MinSize + 1

	live := make([]uintptr, 0, 64)
	for i := int64(0); i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Bias toward freeing once a backlog has built up, so live
		// allocations don't grow without bound over a long run.
		if len(live) > 0 && (rng.Intn(3) == 0 || len(live) >= 64) {
			idx := rng.Intn(len(live))
			w.Heap.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			stats.Frees.Add(1)
		} else {
			size := w.MinSize + uint32(rng.Int63n(int64(spread)))
			p, err := w.Heap.Alloc(size)
			if err == mcheap.ErrOutOfMemory {
				stats.OutOfMem.Add(1)
			} else if err != nil {
				return err
			} else {
				live = append(live, p)
				stats.Allocs.Add(1)
			}
		}
		stats.Completed.Add(1)
	}

	for _, p := range live {
		w.Heap.Free(p)
		stats.Frees.Add(1)
	}
	return nil
}

func reportProgress(done chan struct{}, stats *Stats, total int64, interval time.Duration, start time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			comp := stats.Completed.Load()
			elapsed := time.Since(start)
			rate := float64(comp) / elapsed.Seconds()
			pct := 0.0
			if total > 0 {
				pct = float64(comp) / float64(total) * 100
			}
			fmt.Printf("  [%s] %d/%d cycles (%.1f%%) | %d allocs | %d frees | %d oom | %.0f cycles/s\n",
				elapsed.Round(time.Second), comp, total, pct, stats.Allocs.Load(), stats.Frees.Load(), stats.OutOfMem.Load(), rate)
		}
	}
}
