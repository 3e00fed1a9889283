/*
Package resolver defines the resolve capability consumed by the core engine and
provides two implementations: one backed by the OS / net.Resolver stack, and one
speaking directly to a configured DNS server.

The core never parses DNS packets itself; everything wire-level lives behind the
Resolver interface defined here.
*/
package resolver

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
	"errors"
	"fmt"
	"net"
)

// Resolver is the external resolve capability: a name either maps to one or
// more addresses, or the lookup fails with a classified error. Implementations
// must honor context cancellation and deadlines.
type Resolver interface {
	Resolve(ctx context.Context, domain string) ([]string, error)
}

// ErrorKind classifies a failed resolution.
type ErrorKind string

// Resolution error kinds. Timeout covers deadline expiry, ResolutionFailed
// covers answers from the resolver itself (NXDOMAIN, SERVFAIL, empty answer),
// and Unexpected is everything else (including recovered panics in workers).
const (
	KindTimeout          ErrorKind = "timeout"
	KindResolutionFailed ErrorKind = "resolution_failed"
	KindUnexpected       ErrorKind = "unexpected"
)

// ResolveError is the classified failure returned by Resolver implementations.
// It wraps the underlying cause so callers can still errors.Is/As through it.
type ResolveError struct {
	Kind   ErrorKind
	Domain string
	Reason string
	Err    error
}

// Error implements the standard error interface.
func (e *ResolveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("resolve %s: %s: %s", e.Domain, e.Kind, e.Reason)
	}
	return fmt.Sprintf("resolve %s: %s", e.Domain, e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ResolveError) Unwrap() error { return e.Err }

// NewError creates a ResolveError with the given classification.
func NewError(kind ErrorKind, domain, reason string, err error) *ResolveError {
	return &ResolveError{Kind: kind, Domain: domain, Reason: reason, Err: err}
}

// Classify converts an arbitrary lookup error into a ResolveError. Errors that
// are already classified pass through unchanged.
//
// net.DNSError carries both the timeout and the not-found signal for lookups
// going through the net package, so it is inspected first. Context deadline
// expiry counts as a timeout as well: the per-query deadline is the only
// deadline a single resolve runs under.
func Classify(domain string, err error) *ResolveError {
	if err == nil {
		return nil
	}

	var re *ResolveError
	if errors.As(err, &re) {
		return re
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsTimeout:
			return NewError(KindTimeout, domain, "lookup timed out", err)
		case dnsErr.IsNotFound:
			return NewError(KindResolutionFailed, domain, "no such host", err)
		default:
			return NewError(KindResolutionFailed, domain, dnsErr.Err, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, domain, "deadline exceeded", err)
	}

	return NewError(KindUnexpected, domain, err.Error(), err)
}
