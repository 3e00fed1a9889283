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
	"sort"
	"time"

	"github.com/x-stp/dnswarm/internal/metrics"
	"github.com/x-stp/dnswarm/internal/resolver"
)

// SearchSpace lists the candidate values the tuner may try per parameter.
// Empty slices pin the parameter at its baseline value.
type SearchSpace struct {
	QueriesPerSecond []float64
	MaxWorkers       []int
	Timeouts         []time.Duration
	BatchSizes       []int
}

// DefaultSearchSpace mirrors the ranges that proved useful in practice:
// coarse steps around the shipped defaults.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		QueriesPerSecond: []float64{5, 10, 15, 20, 25, 30},
		MaxWorkers:       []int{5, 10, 15, 20, 30, 50},
		Timeouts: []time.Duration{
			500 * time.Millisecond, time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second,
		},
		BatchSizes: []int{50, 100, 200, 500},
	}
}

// trials returns the total number of candidate evaluations the space implies.
func (s SearchSpace) trials() int {
	return len(s.QueriesPerSecond) + len(s.MaxWorkers) + len(s.Timeouts) + len(s.BatchSizes)
}

// TrialResult records one evaluated configuration.
type TrialResult struct {
	Config       ResolverConfig `json:"config"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
	Elapsed      time.Duration  `json:"elapsed"`
	// Score is successful resolutions per second multiplied by the success
	// rate. The multiplicative penalty makes a fast-but-unreliable
	// configuration score below a slower-but-reliable one.
	Score float64 `json:"score"`
}

// Tuner empirically searches the configuration space for the settings that
// maximize throughput without sacrificing reliability. It drives the batch
// query engine once per candidate configuration.
//
// Strategy: coordinate descent. Parameters are optimized one at a time in a
// fixed order; each candidate value is evaluated with all other parameters
// held at their current best, and the argmax is locked in before moving on.
// This keeps the trial count linear in the search space instead of
// combinatorial, at the cost of possibly missing cross-parameter interactions.
type Tuner struct {
	engine   *Engine
	baseline ResolverConfig
}

// NewTuner creates a tuner around the given resolve capability, starting its
// search from baseline.
func NewTuner(res resolver.Resolver, baseline ResolverConfig) *Tuner {
	return &Tuner{engine: NewEngine(res), baseline: baseline}
}

// Run evaluates the search space against the trial domains and returns the
// best trial plus the full list ranked by descending score. onTrial, if
// non-nil, is invoked after every completed trial.
//
// The trial count is bounded by the size of the search space; cancellation is
// checked between trials and returns the ranking accumulated so far together
// with ErrCancelled. Every trial's pool has fully drained before Run returns.
func (t *Tuner) Run(ctx context.Context, domains []string, space SearchSpace, onTrial func(TrialResult)) (*TrialResult, []TrialResult, error) {
	if len(domains) == 0 {
		return nil, nil, ErrNoDomains
	}
	if space.trials() == 0 {
		return nil, nil, ErrEmptySearchSpace
	}
	if err := t.baseline.Validate(); err != nil {
		return nil, nil, err
	}

	current := t.baseline
	var all []TrialResult
	log.Printf("Starting performance test: %d trial domains, %d candidate configurations", len(domains), space.trials())

	// Parameter order matches the original tool: rate first, since every
	// later measurement is taken under the chosen rate ceiling.
	passes := []struct {
		name  string
		count int
		apply func(cfg *ResolverConfig, i int)
	}{
		{"QueriesPerSecond", len(space.QueriesPerSecond), func(cfg *ResolverConfig, i int) { cfg.QueriesPerSecond = space.QueriesPerSecond[i] }},
		{"MaxWorkers", len(space.MaxWorkers), func(cfg *ResolverConfig, i int) { cfg.MaxWorkers = space.MaxWorkers[i] }},
		{"Timeout", len(space.Timeouts), func(cfg *ResolverConfig, i int) { cfg.Timeout = space.Timeouts[i] }},
		{"BatchSize", len(space.BatchSizes), func(cfg *ResolverConfig, i int) { cfg.BatchSize = space.BatchSizes[i] }},
	}

	for _, pass := range passes {
		var best *TrialResult
		for i := 0; i < pass.count; i++ {
			if ctx.Err() != nil {
				return bestOf(all), ranked(all), ErrCancelled
			}

			cfg := current
			pass.apply(&cfg, i)
			if cfg.Validate() != nil {
				continue // skip unusable candidates rather than aborting the search
			}

			trial, err := t.runTrial(ctx, domains, cfg)
			if err != nil {
				log.Printf("Trial failed for %s candidate %d: %v", pass.name, i, err)
				continue
			}

			all = append(all, trial)
			metrics.IncTunerTrials()
			if onTrial != nil {
				onTrial(trial)
			}
			if best == nil || trial.Score > best.Score {
				copied := trial
				best = &copied
			}
		}
		if best != nil {
			current = best.Config
			log.Printf("Best %s so far: score=%.2f (qps=%.1f workers=%d timeout=%v batch=%d)",
				pass.name, best.Score, current.QueriesPerSecond, current.MaxWorkers, current.Timeout, current.BatchSize)
		}
	}

	if len(all) == 0 {
		return nil, nil, ErrEmptySearchSpace
	}
	return bestOf(all), ranked(all), nil
}

// runTrial executes one full batch query under cfg and scores it.
func (t *Tuner) runTrial(ctx context.Context, domains []string, cfg ResolverConfig) (TrialResult, error) {
	report, err := t.engine.RunBatchQuery(ctx, domains, cfg, nil)
	if err != nil {
		return TrialResult{}, err
	}
	trial := TrialResult{
		Config:       cfg,
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
		Elapsed:      report.Elapsed,
		Score:        report.Throughput() * report.SuccessRate(),
	}
	return trial, nil
}

// ranked returns trials sorted by descending score. Ties break toward the
// lower query rate, the politer configuration.
func ranked(trials []TrialResult) []TrialResult {
	out := make([]TrialResult, len(trials))
	copy(out, trials)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Config.QueriesPerSecond < out[j].Config.QueriesPerSecond
	})
	return out
}

func bestOf(trials []TrialResult) *TrialResult {
	if len(trials) == 0 {
		return nil
	}
	r := ranked(trials)
	return &r[0]
}

// trialSeeds are well-known domains used when no trial set is supplied.
var trialSeeds = []string{
	"google.com", "cloudflare.com", "github.com", "wikipedia.org", "amazon.com",
	"microsoft.com", "apple.com", "mozilla.org", "netflix.com", "reddit.com",
	"stackoverflow.com", "debian.org", "kernel.org", "golang.org", "nytimes.com",
	"bbc.co.uk", "archive.org", "gnu.org", "letsencrypt.org", "eff.org",
}

// trialPrefixes expand the seeds into subdomain variants to get a trial set
// large enough for meaningful throughput measurements.
var trialPrefixes = []string{"www", "mail", "blog", "news", "shop", "m", "api", "dev"}

// DefaultTrialDomains returns the built-in trial corpus: the seed domains plus
// common-prefix variants of each.
func DefaultTrialDomains() []string {
	out := make([]string, 0, len(trialSeeds)*(len(trialPrefixes)+1))
	out = append(out, trialSeeds...)
	for _, d := range trialSeeds {
		for _, p := range trialPrefixes {
			out = append(out, p+"."+d)
		}
	}
	return out
}
