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
	"net"
	"time"
)

// SystemResolver resolves through the net package. With an empty server it
// uses the host's configured resolver; with a server ("ip:53") it forces the
// pure-Go resolver and dials that server for every lookup.
//
// Resolving through the system stack is what warms the local DNS cache, which
// is the whole point of a bulk query run, so this is the default
// implementation.
type SystemResolver struct {
	resolver *net.Resolver
}

// NewSystemResolver creates a SystemResolver. server may be empty.
func NewSystemResolver(server string) *SystemResolver {
	r := &net.Resolver{}
	if server != "" {
		r = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: 2 * time.Second}
				return d.DialContext(ctx, network, server)
			},
		}
	}
	return &SystemResolver{resolver: r}
}

// Resolve looks up the IP addresses for domain. The caller bounds the lookup
// through ctx; failures come back classified.
func (sr *SystemResolver) Resolve(ctx context.Context, domain string) ([]string, error) {
	ips, err := sr.resolver.LookupIPAddr(ctx, domain)
	if err != nil {
		return nil, Classify(domain, err)
	}
	if len(ips) == 0 {
		return nil, NewError(KindResolutionFailed, domain, "empty answer", nil)
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.IP.String())
	}
	return addrs, nil
}
