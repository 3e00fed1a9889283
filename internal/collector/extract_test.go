package collector

import (
	"testing"
)

func refsToDomains(refs []PageRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Domain)
	}
	return out
}

func containsDomain(refs []PageRef, domain string) bool {
	for _, r := range refs {
		if r.Domain == domain {
			return true
		}
	}
	return false
}

func TestExtractDomainsLinksOnly(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<a href="https://a.example.com/page">a</a>
		<a href="http://b.example.com">b</a>
		<a href="/relative/path">rel</a>
		<a href="#fragment">frag</a>
		<a href="mailto:someone@example.com">mail</a>
		<script src="https://cdn.example.com/app.js"></script>
	</body></html>`)

	refs, err := ExtractDomains(body, "example.com", ExtractLinks)
	if err != nil {
		t.Fatalf("ExtractDomains failed: %v", err)
	}

	if !containsDomain(refs, "a.example.com") || !containsDomain(refs, "b.example.com") {
		t.Fatalf("missing linked domains, got %v", refsToDomains(refs))
	}
	// Relative links resolve to the page's own host.
	if !containsDomain(refs, "example.com") {
		t.Fatalf("expected page host from relative link, got %v", refsToDomains(refs))
	}
	// Links-only mode must ignore script references.
	if containsDomain(refs, "cdn.example.com") {
		t.Fatalf("script domain leaked into links-only mode: %v", refsToDomains(refs))
	}
}

func TestExtractDomainsExtended(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head>
		<link href="https://fonts.example.net/style.css" rel="stylesheet">
		<meta property="og:image" content="https://img.example.org/logo.png">
		<script src="//cdn.example.com/app.js"></script>
		<script>
			var endpoint = "https://api.example.io/v1";
			fetch('http://tracker.example.dev/ping');
		</script>
	</head><body>
		<img src="https://static.example.co/pic.jpg">
	</body></html>`)

	refs, err := ExtractDomains(body, "example.com", ExtractExtended)
	if err != nil {
		t.Fatalf("ExtractDomains failed: %v", err)
	}

	for _, want := range []string{
		"fonts.example.net",
		"img.example.org",
		"cdn.example.com",
		"api.example.io",
		"tracker.example.dev",
		"static.example.co",
	} {
		if !containsDomain(refs, want) {
			t.Fatalf("expected %s in extended extraction, got %v", want, refsToDomains(refs))
		}
	}
}

func TestExtractDomainsDeduplicates(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<a href="https://dup.example.com/a">1</a>
		<a href="https://dup.example.com/b">2</a>
		<a href="https://DUP.example.com/c">3</a>
	</body></html>`)

	refs, err := ExtractDomains(body, "example.com", ExtractLinks)
	if err != nil {
		t.Fatalf("ExtractDomains failed: %v", err)
	}

	count := 0
	for _, r := range refs {
		if r.Domain == "dup.example.com" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected dup.example.com exactly once, got %d in %v", count, refsToDomains(refs))
	}
}

func TestRefDomainSkipsNonNetworkSchemes(t *testing.T) {
	t.Parallel()

	cases := []string{
		"mailto:x@example.com",
		"javascript:void(0)",
		"tel:+15551234",
		"data:text/plain;base64,aGk=",
		"#anchor",
		"",
	}
	for _, raw := range cases {
		if got := refDomain(raw, "example.com"); got != "" {
			t.Fatalf("refDomain(%q) = %q, expected empty", raw, got)
		}
	}
}

func TestRefDomainSchemeRelative(t *testing.T) {
	t.Parallel()

	if got := refDomain("//cdn.example.com/lib.js", "example.com"); got != "cdn.example.com" {
		t.Fatalf("expected cdn.example.com, got %q", got)
	}
}
