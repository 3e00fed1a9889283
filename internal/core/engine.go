package core

/*
dnswarm — fast bulk DNS resolver and domain collector in Go
Copyright (C) 2025  Pepijn van der Stap <dnswarm@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/x-stp/dnswarm/internal/metrics"
	"github.com/x-stp/dnswarm/internal/resolver"
)

// Engine is the batch query engine: it partitions a domain snapshot into
// consecutive batches, drives a worker pool per batch, and merges the results
// into a running QueryReport.
//
// Batches run sequentially; domains within a batch run concurrently.
// Cancellation is cooperative and checked between batches only — a cancelled
// run returns its partial report flagged Cancelled rather than an error.
type Engine struct {
	resolver resolver.Resolver
	stats    *EngineStats
}

// EngineStats holds atomic counters updated during a run, safe to read from a
// stats-display goroutine while the run is in flight.
type EngineStats struct {
	TotalDomains     atomic.Int64
	ProcessedDomains atomic.Int64
	SuccessDomains   atomic.Int64
	FailedDomains    atomic.Int64
	StartTime        time.Time
}

// GetStartTime returns the start of the current run.
func (s *EngineStats) GetStartTime() time.Time { return s.StartTime }

// NewEngine creates an engine using the given resolve capability.
func NewEngine(res resolver.Resolver) *Engine {
	return &Engine{
		resolver: res,
		stats:    &EngineStats{},
	}
}

// GetStats returns the live counters of the engine's current run.
func (e *Engine) GetStats() *EngineStats { return e.stats }

// RunBatchQuery resolves every domain in domains under cfg and returns the
// merged report. onProgress, if non-nil, is invoked after every completed
// batch, strictly in batch order.
//
// The only terminal failures are configuration errors (checked before any
// query is issued) and an empty input; cancellation yields a partial report
// and a nil error.
func (e *Engine) RunBatchQuery(ctx context.Context, domains []string, cfg ResolverConfig, onProgress func(Progress)) (*QueryReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}

	e.stats.StartTime = time.Now()
	e.stats.TotalDomains.Store(int64(len(domains)))
	e.stats.ProcessedDomains.Store(0)
	e.stats.SuccessDomains.Store(0)
	e.stats.FailedDomains.Store(0)

	limiter := NewRateLimiter(cfg.QueriesPerSecond)
	pool := NewWorkerPool(cfg, limiter, e.resolver)

	batches := (len(domains) + cfg.BatchSize - 1) / cfg.BatchSize
	log.Printf("Starting batch query: %d domains, %d batches (size=%d, workers=%d, qps=%.1f, timeout=%v)",
		len(domains), batches, cfg.BatchSize, cfg.MaxWorkers, cfg.QueriesPerSecond, cfg.Timeout)

	report := &QueryReport{Results: make([]QueryResult, 0, len(domains))}
	start := time.Now()

	for b := 0; b < batches; b++ {
		// Cooperative cancellation point: between batches only.
		if ctx.Err() != nil {
			report.Cancelled = true
			log.Printf("Batch query cancelled after %d/%d batches (%d domains processed)",
				b, batches, len(report.Results))
			break
		}

		lo := b * cfg.BatchSize
		hi := lo + cfg.BatchSize
		if hi > len(domains) {
			hi = len(domains)
		}

		results := pool.Run(ctx, domains[lo:hi])
		report.merge(results)

		e.stats.ProcessedDomains.Store(int64(len(report.Results)))
		e.stats.SuccessDomains.Store(int64(report.SuccessCount))
		e.stats.FailedDomains.Store(int64(report.FailureCount))
		metrics.SetBatchProgress(len(report.Results), len(domains))

		if onProgress != nil {
			onProgress(Progress{
				Processed: len(report.Results),
				Remaining: len(domains) - len(report.Results),
				Success:   report.SuccessCount,
				Failure:   report.FailureCount,
				Batch:     b + 1,
				Batches:   batches,
			})
		}
	}

	// Cancellation can also land inside the final batch, after the last
	// top-of-loop check; the pool records the unissued domains but the flag
	// must still be set.
	if ctx.Err() != nil && !report.Cancelled {
		report.Cancelled = true
		log.Printf("Batch query cancelled during final batch (%d domains processed)", len(report.Results))
	}

	report.Elapsed = time.Since(start)
	if !report.Cancelled {
		log.Printf("Batch query complete: %d/%d resolved in %v (%.1f ok/s)",
			report.SuccessCount, len(report.Results), report.Elapsed.Round(time.Millisecond), report.Throughput())
	}
	return report, nil
}
