/*
Package core provides the central logic for dnswarm: the rate-limited resolver
worker pool, the batch query engine driving it, and the performance tuner built
on top. It also defines the shared data structures (domains, domain sets, query
reports) used across these components.
*/
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
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/net/publicsuffix"
)

// NormalizeDomain canonicalizes a hostname: lowercase, surrounding whitespace
// and the trailing dot stripped, port removed. Returns "" for inputs that do
// not look like a hostname at all.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	if s == "" || strings.ContainsAny(s, " /\\@") {
		return ""
	}
	return s
}

// DomainFromURL extracts the normalized hostname from a URL or bare host
// string. Inputs without a scheme are treated as "http://<input>" so that
// url.Parse fills in the host part.
func DomainFromURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return NormalizeDomain(u.Hostname())
}

// RegisteredDomain returns the effective registrable domain (eTLD+1) for a
// normalized hostname, e.g. "a.b.example.co.uk" -> "example.co.uk". Falls back
// to the input when the public suffix list has no answer.
func RegisteredDomain(domain string) string {
	base, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return base
}

// IsStrictSubdomain reports whether domain is a strict subdomain of the
// registered domain of seed. The registered domain itself does not count.
func IsStrictSubdomain(domain, seed string) bool {
	base := RegisteredDomain(NormalizeDomain(seed))
	d := NormalizeDomain(domain)
	if base == "" || d == "" || d == base {
		return false
	}
	return strings.HasSuffix(d, "."+base)
}

// domainSetShards fixes the shard count of a DomainSet. Sharding by hash keeps
// lock contention down when many crawl fetches insert concurrently.
const domainSetShards = 32

type domainShard struct {
	mu      sync.Mutex
	members map[string]struct{}
}

// DomainSet is a deduplicated, concurrency-safe set of normalized domains.
// It only grows (via Add) until explicitly cleared; runs operate on snapshots,
// never on the live set.
//
// Concurrency: membership is sharded by xxh3 of the domain so concurrent
// inserts from crawl workers rarely touch the same lock.
type DomainSet struct {
	shards [domainSetShards]domainShard
}

// NewDomainSet creates an empty DomainSet.
func NewDomainSet() *DomainSet {
	ds := &DomainSet{}
	for i := range ds.shards {
		ds.shards[i].members = make(map[string]struct{})
	}
	return ds
}

func (ds *DomainSet) shard(domain string) *domainShard {
	return &ds.shards[xxh3.HashString(domain)%domainSetShards]
}

// Add normalizes and inserts a domain. It reports whether the domain was new.
// Empty / unparseable inputs are rejected.
func (ds *DomainSet) Add(raw string) bool {
	d := NormalizeDomain(raw)
	if d == "" {
		return false
	}
	sh := ds.shard(d)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.members[d]; ok {
		return false
	}
	sh.members[d] = struct{}{}
	return true
}

// Contains reports set membership for the normalized form of raw.
func (ds *DomainSet) Contains(raw string) bool {
	d := NormalizeDomain(raw)
	if d == "" {
		return false
	}
	sh := ds.shard(d)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.members[d]
	return ok
}

// Len returns the number of members.
func (ds *DomainSet) Len() int {
	n := 0
	for i := range ds.shards {
		ds.shards[i].mu.Lock()
		n += len(ds.shards[i].members)
		ds.shards[i].mu.Unlock()
	}
	return n
}

// Snapshot returns the members as a sorted slice. Sorting makes snapshots
// deterministic, which keeps batch partitioning and exports reproducible for
// the same set.
func (ds *DomainSet) Snapshot() []string {
	out := make([]string, 0, ds.Len())
	for i := range ds.shards {
		ds.shards[i].mu.Lock()
		for d := range ds.shards[i].members {
			out = append(out, d)
		}
		ds.shards[i].mu.Unlock()
	}
	sort.Strings(out)
	return out
}

// Clear removes all members.
func (ds *DomainSet) Clear() {
	for i := range ds.shards {
		ds.shards[i].mu.Lock()
		ds.shards[i].members = make(map[string]struct{})
		ds.shards[i].mu.Unlock()
	}
}
