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
	"net"
	"time"

	"github.com/miekg/dns"
)

// DirectResolver sends plain DNS A queries straight to a single server,
// bypassing the OS stack entirely. Useful when measuring a specific upstream
// (the tuner cares about the resolver under test, not the local cache).
type DirectResolver struct {
	// ServerAddress is the upstream in "ip:port" form.
	ServerAddress string
}

// NewDirectResolver creates a DirectResolver for the given "ip:port" upstream.
func NewDirectResolver(server string) *DirectResolver {
	return &DirectResolver{ServerAddress: server}
}

// Resolve queries the configured server for A records of domain. The client
// timeout is derived from the context deadline so a single exchange never
// outlives the per-query budget.
func (dr *DirectResolver) Resolve(ctx context.Context, domain string) ([]string, error) {
	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(domain), dns.TypeA)

	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	client := &dns.Client{
		UDPSize: 1024,
		Timeout: timeout,
		Dialer:  &net.Dialer{Timeout: timeout},
	}

	reply, _, err := client.ExchangeContext(ctx, query, dr.ServerAddress)
	if err != nil {
		var nErr net.Error
		if errors.As(err, &nErr) && nErr.Timeout() {
			return nil, NewError(KindTimeout, domain, "exchange timed out", err)
		}
		return nil, Classify(domain, err)
	}

	if re := classifyRcode(domain, reply.Rcode); re != nil {
		return nil, re
	}

	var addrs []string
	for _, rr := range reply.Answer {
		switch record := rr.(type) {
		case *dns.A:
			addrs = append(addrs, record.A.String())
		case *dns.AAAA:
			addrs = append(addrs, record.AAAA.String())
		}
	}
	if len(addrs) == 0 {
		return nil, NewError(KindResolutionFailed, domain, "no address records in answer", nil)
	}
	return addrs, nil
}

// classifyRcode maps a DNS response code onto the error taxonomy. Success
// returns nil; NXDOMAIN and SERVFAIL (and everything else non-success) are
// resolver-reported failures, not transport faults.
func classifyRcode(domain string, rcode int) *ResolveError {
	switch rcode {
	case dns.RcodeSuccess:
		return nil
	case dns.RcodeNameError:
		return NewError(KindResolutionFailed, domain, "NXDOMAIN", nil)
	case dns.RcodeServerFailure:
		return NewError(KindResolutionFailed, domain, "SERVFAIL", nil)
	default:
		return NewError(KindResolutionFailed, domain, dns.RcodeToString[rcode], nil)
	}
}
