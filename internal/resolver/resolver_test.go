package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/miekg/dns"
)

func TestClassifyDNSErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"timeout", &net.DNSError{Err: "i/o timeout", IsTimeout: true}, KindTimeout},
		{"not found", &net.DNSError{Err: "no such host", IsNotFound: true}, KindResolutionFailed},
		{"other dns error", &net.DNSError{Err: "server misbehaving"}, KindResolutionFailed},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("lookup: %w", context.DeadlineExceeded), KindTimeout},
		{"unknown", errors.New("disk on fire"), KindUnexpected},
	}
	for _, tc := range cases {
		re := Classify("example.com", tc.err)
		if re.Kind != tc.want {
			t.Fatalf("%s: Classify returned kind %s, want %s", tc.name, re.Kind, tc.want)
		}
		if re.Domain != "example.com" {
			t.Fatalf("%s: domain not carried: %q", tc.name, re.Domain)
		}
	}
}

func TestClassifyNil(t *testing.T) {
	t.Parallel()

	if re := Classify("example.com", nil); re != nil {
		t.Fatalf("Classify(nil) = %v, want nil", re)
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	t.Parallel()

	orig := NewError(KindTimeout, "example.com", "already classified", nil)
	re := Classify("other.com", fmt.Errorf("wrapped: %w", orig))
	if re != orig {
		t.Fatalf("expected the original classified error back, got %v", re)
	}
}

func TestResolveErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := &net.DNSError{Err: "no such host", IsNotFound: true}
	re := Classify("example.com", cause)

	var dnsErr *net.DNSError
	if !errors.As(re, &dnsErr) {
		t.Fatal("expected errors.As to reach the wrapped *net.DNSError")
	}
	var classified *ResolveError
	if !errors.As(error(re), &classified) {
		t.Fatal("expected errors.As to match *ResolveError")
	}
}

func TestResolveErrorMessage(t *testing.T) {
	t.Parallel()

	re := NewError(KindResolutionFailed, "example.com", "NXDOMAIN", nil)
	want := "resolve example.com: resolution_failed: NXDOMAIN"
	if re.Error() != want {
		t.Fatalf("Error() = %q, want %q", re.Error(), want)
	}

	bare := NewError(KindTimeout, "example.com", "", nil)
	if bare.Error() != "resolve example.com: timeout" {
		t.Fatalf("Error() without reason = %q", bare.Error())
	}
}

func TestClassifyRcode(t *testing.T) {
	t.Parallel()

	if re := classifyRcode("example.com", dns.RcodeSuccess); re != nil {
		t.Fatalf("success rcode must classify as nil, got %v", re)
	}

	cases := []struct {
		rcode  int
		reason string
	}{
		{dns.RcodeNameError, "NXDOMAIN"},
		{dns.RcodeServerFailure, "SERVFAIL"},
		{dns.RcodeRefused, "REFUSED"},
	}
	for _, tc := range cases {
		re := classifyRcode("example.com", tc.rcode)
		if re == nil {
			t.Fatalf("rcode %d: expected error", tc.rcode)
		}
		if re.Kind != KindResolutionFailed {
			t.Fatalf("rcode %d: expected kind %s, got %s", tc.rcode, KindResolutionFailed, re.Kind)
		}
		if re.Reason != tc.reason {
			t.Fatalf("rcode %d: expected reason %q, got %q", tc.rcode, tc.reason, re.Reason)
		}
	}
}
