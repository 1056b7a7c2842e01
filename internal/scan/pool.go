package scan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// analysisPool fans per-project analyses out over a bounded number of
// goroutines and gathers the secret-bearing results. The bound also caps
// open file descriptors and memory while scanning a large base directory.
type analysisPool struct {
	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	results []schema.ProjectAnalysis

	failed int64
	panics int64
}

// scanStats summarizes what the pool saw during one scan.
type scanStats struct {
	Collected int
	Failed    int64
	Panics    int64
}

func newAnalysisPool(size int) *analysisPool {
	if size <= 0 {
		size = 1
	}
	return &analysisPool{sem: make(chan struct{}, size)}
}

// analyze schedules one project analysis. It blocks while the pool is at
// capacity and returns the context error if cancelled while waiting.
// Analyses that error or panic are counted and dropped; analyses with no
// candidates are dropped silently.
func (p *analysisPool) analyze(ctx context.Context, fn func(ctx context.Context) (*schema.ProjectAnalysis, error)) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.panics, 1)
				atomic.AddInt64(&p.failed, 1)
			}
			<-p.sem
			p.wg.Done()
		}()

		analysis, err := fn(ctx)
		if err != nil {
			atomic.AddInt64(&p.failed, 1)
			return
		}
		if analysis == nil || analysis.EstimatedSecrets == 0 {
			return
		}
		p.mu.Lock()
		p.results = append(p.results, *analysis)
		p.mu.Unlock()
	}()
	return nil
}

// drain waits for every scheduled analysis and returns the collected
// results. Order is completion order; the scanner sorts before reporting.
func (p *analysisPool) drain() []schema.ProjectAnalysis {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

// stats snapshots the pool counters. Call after drain for final numbers.
func (p *analysisPool) stats() scanStats {
	p.mu.Lock()
	collected := len(p.results)
	p.mu.Unlock()
	return scanStats{
		Collected: collected,
		Failed:    atomic.LoadInt64(&p.failed),
		Panics:    atomic.LoadInt64(&p.panics),
	}
}
