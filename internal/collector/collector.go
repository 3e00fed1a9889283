package collector

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

/*
Package collector discovers domains by breadth-first crawling from a seed.
Each crawled page contributes hostnames from its links and, in extended
mode, from script, stylesheet, image, meta and inline-script references.

The crawl is bounded: it stops when the collected set reaches the target
count, when the frontier empties, or on cancellation. Per-page fetch
failures are recorded and skipped, never aborting the crawl.
*/

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/x-stp/dnswarm/internal/client"
	"github.com/x-stp/dnswarm/internal/core"
	"github.com/x-stp/dnswarm/internal/metrics"
)

// Collector-specific constants.
const (
	// DefaultConcurrency is the fetch concurrency cap. It is independent of
	// the resolver worker count; crawling and resolving do not share pools.
	DefaultConcurrency = 10
	// DefaultTargetCount is how many domains a crawl collects before stopping.
	DefaultTargetCount = 100
	// MaxFrontierWaves caps BFS depth so a pathological link graph cannot
	// keep an unattended crawl alive indefinitely.
	MaxFrontierWaves = 50
)

// Config holds the parameters of one crawl run. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// TargetCount stops the crawl once this many domains are collected.
	TargetCount int
	// SubdomainsOnly restricts collection to strict subdomains of the
	// seed's registered domain.
	SubdomainsOnly bool
	// Extraction selects link-only or extended page extraction.
	Extraction ExtractionMode
	// Concurrency caps simultaneous page fetches within one frontier wave.
	Concurrency int
	// Client overrides the shared HTTP client; nil uses the shared one.
	Client *http.Client
	// UserAgent is sent with every page fetch; empty uses the client default.
	UserAgent string
}

// DefaultConfig returns crawl settings matching the shipped config defaults.
func DefaultConfig() Config {
	return Config{
		TargetCount: DefaultTargetCount,
		Extraction:  ExtractExtended,
		Concurrency: DefaultConcurrency,
	}
}

// Stats uses atomic counters for safe concurrent updates from fetch goroutines.
type Stats struct {
	PagesFetched atomic.Int64
	PagesFailed  atomic.Int64
	DomainsFound atomic.Int64
	StartTime    time.Time
}

// Collector performs bounded breadth-first domain discovery.
// Concurrency: page fetches within a wave run in parallel under a semaphore;
// the discovered set is the concurrent core.DomainSet. Waves are sequential,
// which is where cancellation is checked.
type Collector struct {
	cfg   Config
	stats *Stats
}

// New validates cfg and returns a ready Collector.
func New(cfg Config) (*Collector, error) {
	if cfg.TargetCount <= 0 {
		return nil, fmt.Errorf("collector: target count must be positive, got %d", cfg.TargetCount)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Collector{
		cfg:   cfg,
		stats: &Stats{StartTime: time.Now()},
	}, nil
}

// GetStats returns the collector's atomic counters for display goroutines.
func (c *Collector) GetStats() *Stats { return c.stats }

// pageResult carries the domains extracted from one fetched page.
type pageResult struct {
	host    string
	domains []string
	err     error
}

// Run crawls outward from seed until the target count is reached, the
// frontier empties, or the wave cap is hit. The returned set holds every
// accepted domain found so far; on cancellation it is partial and the error
// is core.ErrCancelled. A wave-capped stop logs the unvisited host count and
// emits a final progress event with a non-empty Frontier, whereas frontier
// exhaustion ends with Frontier zero.
//
// Operation: long-running, blocking. Cancellation is checked between
// frontier waves; in-flight fetches finish naturally first.
func (c *Collector) Run(ctx context.Context, seed string, onProgress func(core.CrawlProgress)) (*core.DomainSet, error) {
	seedDomain := core.NormalizeDomain(seed)
	if seedDomain == "" {
		return nil, fmt.Errorf("collector: invalid seed domain %q", seed)
	}
	base := core.RegisteredDomain(seedDomain)

	set := core.NewDomainSet()
	crawled := make(map[string]struct{})
	frontier := []string{seedDomain}

	log.Printf("Starting collection from %s (target %d, subdomains-only=%v)",
		seedDomain, c.cfg.TargetCount, c.cfg.SubdomainsOnly)

	for wave := 0; len(frontier) > 0 && set.Len() < c.cfg.TargetCount; wave++ {
		if err := ctx.Err(); err != nil {
			log.Printf("Collection cancelled with %d domains found.", set.Len())
			c.emit(set, frontier, onProgress)
			return set, core.ErrCancelled
		}
		if wave >= MaxFrontierWaves {
			// The final progress event keeps the unvisited frontier, so a
			// depth-capped stop is distinguishable from exhaustion.
			log.Printf("Collection reached wave limit (%d) with %d domains found, %d hosts unvisited.",
				MaxFrontierWaves, set.Len(), len(frontier))
			c.emit(set, frontier, onProgress)
			return set, nil
		}

		results := c.fetchWave(ctx, frontier, crawled)

		var next []string
		for _, pr := range results {
			if pr.err != nil {
				continue // recorded by fetchWave, page skipped
			}
			for _, domain := range pr.domains {
				if domain == seedDomain {
					continue
				}
				if c.cfg.SubdomainsOnly && !core.IsStrictSubdomain(domain, base) {
					continue
				}
				if !set.Add(domain) {
					continue // already collected
				}
				c.stats.DomainsFound.Add(1)
				metrics.IncCrawlDomainsFound()
				next = append(next, domain)
				if set.Len() >= c.cfg.TargetCount {
					c.emit(set, nil, onProgress)
					log.Printf("Collection reached target of %d domains.", c.cfg.TargetCount)
					return set, nil
				}
			}
		}

		frontier = next
		c.emit(set, frontier, onProgress)
	}

	log.Printf("Collection finished: %d domains found, frontier exhausted.", set.Len())
	return set, nil
}

// fetchWave fetches every not-yet-crawled host in the frontier concurrently,
// bounded by the configured concurrency cap, and returns the extraction
// results. Failures are counted but still returned so callers see the shape
// of the wave.
func (c *Collector) fetchWave(ctx context.Context, frontier []string, crawled map[string]struct{}) []pageResult {
	sem := make(chan struct{}, c.cfg.Concurrency)
	results := make([]pageResult, 0, len(frontier))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, host := range frontier {
		if _, done := crawled[host]; done {
			continue
		}
		crawled[host] = struct{}{}

		wg.Add(1)
		sem <- struct{}{}
		go func(host string) {
			defer wg.Done()
			defer func() { <-sem }()

			pr := c.fetchPage(ctx, host)

			mu.Lock()
			results = append(results, pr)
			mu.Unlock()
		}(host)
	}
	wg.Wait()

	return results
}

// fetchPage retrieves one host's root page and extracts its domains.
func (c *Collector) fetchPage(ctx context.Context, host string) pageResult {
	body, err := client.FetchPage(ctx, c.cfg.Client, "https://"+host+"/", c.cfg.UserAgent)
	if err != nil {
		c.stats.PagesFailed.Add(1)
		metrics.ObserveCrawlPage("failed")
		log.Printf("Fetch failed for %s: %v", host, err)
		return pageResult{host: host, err: err}
	}
	c.stats.PagesFetched.Add(1)
	metrics.ObserveCrawlPage("ok")

	refs, err := ExtractDomains(body, host, c.cfg.Extraction)
	if err != nil {
		c.stats.PagesFailed.Add(1)
		log.Printf("Parse failed for %s: %v", host, err)
		return pageResult{host: host, err: err}
	}

	domains := make([]string, 0, len(refs))
	for _, ref := range refs {
		domains = append(domains, ref.Domain)
	}
	return pageResult{host: host, domains: domains}
}

func (c *Collector) emit(set *core.DomainSet, frontier []string, onProgress func(core.CrawlProgress)) {
	metrics.SetCrawlFrontier(len(frontier))
	if onProgress == nil {
		return
	}
	onProgress(core.CrawlProgress{
		Found:    set.Len(),
		Frontier: len(frontier),
		Fetched:  int(c.stats.PagesFetched.Load()),
		Failed:   int(c.stats.PagesFailed.Load()),
	})
}
