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
	"time"

	"github.com/x-stp/dnswarm/internal/resolver"
)

// QueryResult is the immutable per-domain outcome of one resolution attempt.
// Exactly one is produced per input domain per run.
type QueryResult struct {
	Domain    string             `json:"domain"`
	Resolved  bool               `json:"resolved"`
	Addresses []string           `json:"addresses,omitempty"`
	ErrorKind resolver.ErrorKind `json:"error_kind,omitempty"`
	Error     string             `json:"error,omitempty"`
	Latency   time.Duration      `json:"latency"`
}

// QueryReport aggregates the results of one batch query run. Results preserve
// the input domain ordering regardless of completion order, so exports are
// deterministic.
type QueryReport struct {
	Results      []QueryResult `json:"results"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	Elapsed      time.Duration `json:"elapsed"`
	// Cancelled marks a partial report produced by cooperative cancellation.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Throughput returns successful resolutions per second over the whole run.
func (r *QueryReport) Throughput() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.SuccessCount) / secs
}

// SuccessRate returns the fraction of processed domains that resolved.
func (r *QueryReport) SuccessRate() float64 {
	total := r.SuccessCount + r.FailureCount
	if total == 0 {
		return 0
	}
	return float64(r.SuccessCount) / float64(total)
}

// merge appends a batch's results and updates the aggregates.
func (r *QueryReport) merge(results []QueryResult) {
	for i := range results {
		if results[i].Resolved {
			r.SuccessCount++
		} else {
			r.FailureCount++
		}
	}
	r.Results = append(r.Results, results...)
}

// Progress is emitted after every completed batch, strictly in batch order.
type Progress struct {
	Processed int
	Remaining int
	Success   int
	Failure   int
	Batch     int
	Batches   int
}

// CrawlProgress is emitted by the collector as the frontier advances.
type CrawlProgress struct {
	Found    int
	Frontier int
	Fetched  int
	Failed   int
}
