package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInitHTTPClientFillsDefaults(t *testing.T) {
	sharedClient = nil
	clientInitialized = false

	InitHTTPClient(&Config{})
	c := GetHTTPClient()

	tr, ok := c.Transport.(*http.Transport)
	if !ok || tr == nil {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr.MaxIdleConns == 0 {
		t.Fatalf("expected MaxIdleConns defaulted, got %d", tr.MaxIdleConns)
	}
	if tr.MaxIdleConnsPerHost == 0 {
		t.Fatalf("expected MaxIdleConnsPerHost defaulted, got %d", tr.MaxIdleConnsPerHost)
	}
	if tr.MaxConnsPerHost == 0 {
		t.Fatalf("expected MaxConnsPerHost defaulted, got %d", tr.MaxConnsPerHost)
	}
}

func TestConfigureTurboModeSetsPerHostIdleConns(t *testing.T) {
	sharedClient = nil
	clientInitialized = false

	ConfigureTurboMode()
	c := GetHTTPClient()

	tr, ok := c.Transport.(*http.Transport)
	if !ok || tr == nil {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost == 0 {
		t.Fatalf("expected MaxIdleConnsPerHost set, got %d", tr.MaxIdleConnsPerHost)
	}
	if tr.MaxConnsPerHost == 0 {
		t.Fatalf("expected MaxConnsPerHost set, got %d", tr.MaxConnsPerHost)
	}
}

func TestFetchPageSetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	data, err := FetchPage(context.Background(), srv.Client(), srv.URL, "")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if !strings.Contains(string(data), "ok") {
		t.Fatalf("unexpected body: %q", data)
	}
	if gotUA != DefaultUserAgent {
		t.Fatalf("expected User-Agent %q, got %q", DefaultUserAgent, gotUA)
	}
}

func TestFetchPageSendsConfiguredUserAgent(t *testing.T) {
	const ua = "Mozilla/5.0 (custom crawler)"
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	if _, err := FetchPage(context.Background(), srv.Client(), srv.URL, ua); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if gotUA != ua {
		t.Fatalf("expected User-Agent %q, got %q", ua, gotUA)
	}
}

func TestFetchPageRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FetchPage(context.Background(), srv.Client(), srv.URL, ""); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetchPageDecodesDeclaredCharset(t *testing.T) {
	// "héllo" in ISO-8859-1: e9 for é.
	body := []byte("<html><body>h\xe9llo</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write(body)
	}))
	defer srv.Close()

	data, err := FetchPage(context.Background(), srv.Client(), srv.URL, "")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if !strings.Contains(string(data), "héllo") {
		t.Fatalf("expected decoded UTF-8 body, got %q", data)
	}
}
