package resolver

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSystemResolverAgainstCustomServer(t *testing.T) {
	t.Parallel()

	addr := startTestDNSServer(t)
	sr := NewSystemResolver(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	addrs, err := sr.Resolve(ctx, "ok.test")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(addrs) == 0 || addrs[0] != "192.0.2.10" {
		t.Fatalf("expected [192.0.2.10], got %v", addrs)
	}
}

func TestSystemResolverNotFound(t *testing.T) {
	t.Parallel()

	addr := startTestDNSServer(t)
	sr := NewSystemResolver(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := sr.Resolve(ctx, "missing.test")
	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResolveError, got %v", err)
	}
	if re.Kind != KindResolutionFailed {
		t.Fatalf("expected resolution_failed for NXDOMAIN, got %s", re.Kind)
	}
}
