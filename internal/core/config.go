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
	"fmt"
	"time"
)

// Default resolver configuration values. These match the shipped config.ini
// defaults; the tuner exists to find better ones for a given environment.
const (
	DefaultQueriesPerSecond = 12.0
	DefaultMaxWorkers       = 12
	DefaultTimeout          = 1 * time.Second
	DefaultBatchSize        = 100
)

// ResolverConfig is the immutable per-run configuration of a batch query run.
// A value of QueriesPerSecond == 0 means unbounded issuance; all other fields
// must be positive. Construct one, Validate it, and hand it to the engine —
// it is never mutated by a run.
type ResolverConfig struct {
	// QueriesPerSecond caps outbound query issuance. 0 disables the cap.
	QueriesPerSecond float64
	// MaxWorkers is the exact number of concurrent resolver workers per batch.
	MaxWorkers int
	// Timeout bounds a single resolve call.
	Timeout time.Duration
	// BatchSize is the number of domains processed per pool invocation.
	BatchSize int
}

// DefaultResolverConfig returns the shipped defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		QueriesPerSecond: DefaultQueriesPerSecond,
		MaxWorkers:       DefaultMaxWorkers,
		Timeout:          DefaultTimeout,
		BatchSize:        DefaultBatchSize,
	}
}

// ConfigurationError reports an invalid ResolverConfig field. Configuration
// validation is the only per-run failure that aborts before any query is
// issued.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the standard error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Validate checks the configuration. It returns a *ConfigurationError for the
// first invalid field found, nil otherwise.
func (c ResolverConfig) Validate() error {
	if c.QueriesPerSecond < 0 {
		return &ConfigurationError{Field: "QueriesPerSecond", Reason: "must be >= 0 (0 = unbounded)"}
	}
	if c.MaxWorkers <= 0 {
		return &ConfigurationError{Field: "MaxWorkers", Reason: "must be > 0"}
	}
	if c.Timeout <= 0 {
		return &ConfigurationError{Field: "Timeout", Reason: "must be > 0"}
	}
	if c.BatchSize <= 0 {
		return &ConfigurationError{Field: "BatchSize", Reason: "must be > 0"}
	}
	return nil
}
