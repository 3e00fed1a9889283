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
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RateLimiter bounds outbound query issuance with a token bucket: the bucket
// holds one second's worth of tokens and refills continuously at the
// configured rate, so short bursts up to the per-second budget are allowed
// while the sliding one-second window never exceeds it by more than the
// bucket capacity.
//
// A rate of 0 means unbounded: Acquire grants immediately. That is a valid
// configuration state, not an error.
//
// Concurrency: token state lives inside rate.Limiter, which serializes
// concurrent waiters internally; the counters here are atomic. This is the
// only structure in a run that many workers mutate concurrently.
type RateLimiter struct {
	limiter *rate.Limiter // nil when unbounded
	granted atomic.Int64
}

// NewRateLimiter creates a limiter for the given queries-per-second rate.
// qps <= 0 yields an unbounded limiter.
func NewRateLimiter(qps float64) *RateLimiter {
	if qps <= 0 {
		return &RateLimiter{}
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// Acquire blocks until issuing one more query stays within the configured
// rate, then grants exactly one permit. It returns the context's error if ctx
// is cancelled while waiting; no token is consumed in that case.
//
// Hot path: called once per resolve by every worker.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	if rl.limiter == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		rl.granted.Add(1)
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		return err
	}
	rl.granted.Add(1)
	return nil
}

// Granted returns the number of permits handed out so far.
func (rl *RateLimiter) Granted() int64 { return rl.granted.Load() }

// Rate returns the configured rate in queries per second, 0 when unbounded.
func (rl *RateLimiter) Rate() float64 {
	if rl.limiter == nil {
		return 0
	}
	return float64(rl.limiter.Limit())
}
