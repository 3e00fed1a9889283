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
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/x-stp/dnswarm/internal/metrics"
	"github.com/x-stp/dnswarm/internal/resolver"
)

// MaxWorkers is the absolute upper limit on concurrent resolver workers,
// regardless of configuration. Safeguard against runaway configs (or an
// over-enthusiastic tuner search space).
const MaxWorkers = 2048

// WorkerPool resolves one batch of domains with exactly cfg.MaxWorkers
// concurrent workers pulling from a shared FIFO queue. Each worker acquires a
// rate-limiter permit, then invokes the resolve capability under the
// configured timeout.
//
// A pool is created per batch and fully drains before Run returns; it holds
// no goroutines afterwards.
//
// Concurrency: workers write results into disjoint slice slots (indexed by
// queue position), so no lock is needed on the result slice. A worker holds
// its slot while blocked on the limiter; rate and concurrency are orthogonal
// resources.
type WorkerPool struct {
	cfg      ResolverConfig
	limiter  *RateLimiter
	resolver resolver.Resolver
}

// NewWorkerPool creates a pool for the given configuration. The limiter is
// shared across batches of a run; the resolve capability is injected.
func NewWorkerPool(cfg ResolverConfig, limiter *RateLimiter, res resolver.Resolver) *WorkerPool {
	if cfg.MaxWorkers > MaxWorkers {
		cfg.MaxWorkers = MaxWorkers
	}
	return &WorkerPool{cfg: cfg, limiter: limiter, resolver: res}
}

// Run resolves all domains and returns exactly one QueryResult per input
// domain, in input order. Completion order within the batch is unspecified.
//
// Cancellation: in-flight resolves run to natural completion or timeout.
// Domains not yet issued when ctx is cancelled are recorded as failures with
// kind Unexpected, so the one-result-per-domain invariant holds even for a
// cancelled batch.
func (p *WorkerPool) Run(ctx context.Context, domains []string) []QueryResult {
	results := make([]QueryResult, len(domains))
	if len(domains) == 0 {
		return results
	}

	workers := p.cfg.MaxWorkers
	if workers > len(domains) {
		workers = len(domains)
	}

	queue := make(chan int, len(domains))
	for i := range domains {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			setAffinity(id, id%runtime.NumCPU())
			for idx := range queue {
				results[idx] = p.resolveOne(ctx, domains[idx])
			}
		}(w)
	}
	wg.Wait()

	return results
}

// resolveOne performs a single rate-limited resolution. Any fault — including
// a panicking resolver implementation — is caught and converted into a
// recorded failure; one bad domain never aborts the pool.
func (p *WorkerPool) resolveOne(ctx context.Context, domain string) (result QueryResult) {
	result = QueryResult{Domain: domain}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result.Resolved = false
			result.ErrorKind = resolver.KindUnexpected
			result.Error = fmt.Sprintf("panic during resolve: %v", r)
			result.Latency = time.Since(start)
			metrics.ObserveResolve(string(resolver.KindUnexpected), result.Latency)
		}
	}()

	if err := p.limiter.Acquire(ctx); err != nil {
		// Cancelled while waiting for a permit; the query was never issued.
		result.ErrorKind = resolver.KindUnexpected
		result.Error = ErrCancelled.Error()
		result.Latency = time.Since(start)
		return result
	}

	// Deliberately detached from ctx: an issued query runs to completion or
	// timeout, bounding cancellation latency to one timeout period.
	queryCtx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	addrs, err := p.resolver.Resolve(queryCtx, domain)
	result.Latency = time.Since(start)

	if err != nil {
		re := resolver.Classify(domain, err)
		result.ErrorKind = re.Kind
		result.Error = re.Error()
		metrics.ObserveResolve(string(re.Kind), result.Latency)
		return result
	}

	result.Resolved = true
	result.Addresses = addrs
	metrics.ObserveResolve("ok", result.Latency)
	return result
}
