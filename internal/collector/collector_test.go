package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/x-stp/dnswarm/internal/core"
)

// pageMap serves canned HTML per hostname regardless of scheme or path.
// Hosts without a page get a 404.
type pageMap map[string]string

func (p pageMap) RoundTrip(req *http.Request) (*http.Response, error) {
	body, ok := p[req.URL.Hostname()]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		body = "not found"
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func testClient(pages pageMap) *http.Client {
	return &http.Client{Transport: pages}
}

func TestRunSubdomainOnlyFiltersForeignDomains(t *testing.T) {
	t.Parallel()

	pages := pageMap{
		"example.com": `<html><body>
			<a href="https://a.example.com/page">a</a>
			<a href="https://b.example.com/page">b</a>
			<a href="https://other.com/page">other</a>
		</body></html>`,
	}

	c, err := New(Config{
		TargetCount:    3,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    4,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	set, err := c.Run(context.Background(), "example.com", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := set.Snapshot()
	want := []string{"a.example.com", "b.example.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

// headerRecorder wraps pageMap and keeps the User-Agent of each request.
type headerRecorder struct {
	pages pageMap
	mu    sync.Mutex
	uas   []string
}

func (h *headerRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	h.mu.Lock()
	h.uas = append(h.uas, req.Header.Get("User-Agent"))
	h.mu.Unlock()
	return h.pages.RoundTrip(req)
}

func TestRunSendsConfiguredUserAgent(t *testing.T) {
	t.Parallel()

	const ua = "Mozilla/5.0 (crawl test)"
	rec := &headerRecorder{pages: pageMap{
		"example.com": `<a href="https://a.example.com/">a</a>`,
	}}

	c, err := New(Config{
		TargetCount:    5,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    2,
		Client:         &http.Client{Transport: rec},
		UserAgent:      ua,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := c.Run(context.Background(), "example.com", nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(rec.uas) == 0 {
		t.Fatal("no requests recorded")
	}
	for i, got := range rec.uas {
		if got != ua {
			t.Fatalf("request %d: expected User-Agent %q, got %q", i, ua, got)
		}
	}
}

func TestRunDeduplicatesRepeatedLinks(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		sb.WriteString(`<a href="https://dup.example.com/p">x</a>`)
	}
	sb.WriteString("</body></html>")

	pages := pageMap{"example.com": sb.String()}

	c, err := New(Config{
		TargetCount:    10,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    2,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	set, err := c.Run(context.Background(), "example.com", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected exactly 1 domain, got %d: %v", set.Len(), set.Snapshot())
	}
	if !set.Contains("dup.example.com") {
		t.Fatalf("expected dup.example.com in set, got %v", set.Snapshot())
	}
}

func TestRunStopsAtTargetCount(t *testing.T) {
	t.Parallel()

	pages := pageMap{
		"example.com": `<html><body>
			<a href="https://a.example.com/">a</a>
			<a href="https://b.example.com/">b</a>
			<a href="https://c.example.com/">c</a>
			<a href="https://d.example.com/">d</a>
		</body></html>`,
	}

	c, err := New(Config{
		TargetCount:    2,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    4,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	set, err := c.Run(context.Background(), "example.com", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected crawl to stop at 2 domains, got %d", set.Len())
	}
}

func TestRunFollowsFrontierAcrossWaves(t *testing.T) {
	t.Parallel()

	// a.example.com is only reachable from the seed; deep.example.com only
	// from a.example.com. Both must end up in the set.
	pages := pageMap{
		"example.com":   `<a href="https://a.example.com/">a</a>`,
		"a.example.com": `<a href="https://deep.example.com/">deep</a>`,
	}

	c, err := New(Config{
		TargetCount:    5,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    2,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	set, err := c.Run(context.Background(), "example.com", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := set.Snapshot()
	sort.Strings(got)
	want := []string{"a.example.com", "deep.example.com"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRunSkipsFailedPages(t *testing.T) {
	t.Parallel()

	// broken.example.com 404s; the crawl must still finish and keep the
	// domains found on the seed page.
	pages := pageMap{
		"example.com": `<a href="https://broken.example.com/">x</a>
			<a href="https://ok.example.com/">y</a>`,
		"ok.example.com": `<html></html>`,
	}

	c, err := New(Config{
		TargetCount:    10,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    2,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	set, err := c.Run(context.Background(), "example.com", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !set.Contains("broken.example.com") || !set.Contains("ok.example.com") {
		t.Fatalf("expected both discovered domains regardless of fetch outcome, got %v", set.Snapshot())
	}
	if c.GetStats().PagesFailed.Load() == 0 {
		t.Fatal("expected at least one recorded page failure")
	}
}

func TestRunCancelledReturnsPartialSet(t *testing.T) {
	t.Parallel()

	pages := pageMap{"example.com": `<a href="https://a.example.com/">a</a>`}

	c, err := New(Config{
		TargetCount:    10,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    2,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set, err := c.Run(ctx, "example.com", nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if set == nil {
		t.Fatal("expected a (possibly empty) partial set on cancellation")
	}
}

func TestRunEmitsProgress(t *testing.T) {
	t.Parallel()

	pages := pageMap{
		"example.com": `<a href="https://a.example.com/">a</a>`,
	}

	c, err := New(Config{
		TargetCount:    10,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    2,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var events int
	var lastFound int
	_, err = c.Run(context.Background(), "example.com", func(p core.CrawlProgress) {
		events++
		lastFound = p.Found
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if events == 0 {
		t.Fatal("expected at least one progress event")
	}
	if lastFound != 1 {
		t.Fatalf("expected final Found=1, got %d", lastFound)
	}
}

func TestRunWaveCapKeepsFrontierInFinalProgress(t *testing.T) {
	t.Parallel()

	// A link chain deeper than the wave cap: each host references the next.
	pages := pageMap{}
	for i := 0; i <= MaxFrontierWaves+5; i++ {
		pages[fmt.Sprintf("w%d.example.com", i)] =
			fmt.Sprintf(`<a href="https://w%d.example.com/">next</a>`, i+1)
	}

	c, err := New(Config{
		TargetCount:    1000,
		SubdomainsOnly: true,
		Extraction:     ExtractLinks,
		Concurrency:    2,
		Client:         testClient(pages),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var last core.CrawlProgress
	set, err := c.Run(context.Background(), "w0.example.com", func(p core.CrawlProgress) {
		last = p
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if set.Len() != MaxFrontierWaves {
		t.Fatalf("expected %d domains from a depth-capped crawl, got %d", MaxFrontierWaves, set.Len())
	}
	// A frontier exhaustion ends with Frontier zero; the depth cap does not.
	if last.Frontier == 0 {
		t.Fatal("expected the final progress event to keep the unvisited frontier")
	}
}

func TestNewRejectsNonPositiveTarget(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{TargetCount: 0}); err == nil {
		t.Fatal("expected error for zero target count")
	}
}
