package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/x-stp/dnswarm/internal/config"
	"github.com/x-stp/dnswarm/internal/core"
)

func TestGatherDomainsDeduplicatesArgs(t *testing.T) {
	origInput := queryInput
	queryInput = ""
	defer func() { queryInput = origInput }()

	got, err := gatherDomains([]string{"a.com", "A.com.", "b.com", "a.com"})
	if err != nil {
		t.Fatalf("gatherDomains failed: %v", err)
	}
	want := []string{"a.com", "b.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestGatherDomainsDeduplicatesAcrossInputAndArgs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domains.json")
	if err := os.WriteFile(path, []byte(`["a.com", "b.com"]`), 0o644); err != nil {
		t.Fatalf("writing input file: %v", err)
	}

	origInput := queryInput
	queryInput = path
	defer func() { queryInput = origInput }()

	got, err := gatherDomains([]string{"b.com", "c.com"})
	if err != nil {
		t.Fatalf("gatherDomains failed: %v", err)
	}
	want := []string{"a.com", "b.com", "c.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func sampleQueryReport() *core.QueryReport {
	return &core.QueryReport{
		Results: []core.QueryResult{
			{Domain: "a.com", Resolved: true, Addresses: []string{"192.0.2.1"}},
			{Domain: "b.com", Resolved: false, Error: "NXDOMAIN"},
			{Domain: "c.com", Resolved: true, Addresses: []string{"192.0.2.2"}},
		},
		SuccessCount: 2,
		FailureCount: 1,
	}
}

func TestExportQueryOutputSuppressesDNSInfo(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Export.IncludeDNSInfo = false

	dir := t.TempDir()
	path, err := exportQueryOutput(settings, dir, "json", sampleQueryReport())
	if err != nil {
		t.Fatalf("exportQueryOutput failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	var domains []string
	if err := json.Unmarshal(data, &domains); err != nil {
		t.Fatalf("output is not a bare domain list: %v", err)
	}
	if len(domains) != 2 || domains[0] != "a.com" || domains[1] != "c.com" {
		t.Fatalf("expected [a.com c.com], got %v", domains)
	}
	if strings.Contains(string(data), "192.0.2.1") {
		t.Fatal("suppressed output must not carry addresses")
	}
}

func TestExportQueryOutputFullReport(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Export.IncludeDNSInfo = true

	dir := t.TempDir()
	path, err := exportQueryOutput(settings, dir, "json", sampleQueryReport())
	if err != nil {
		t.Fatalf("exportQueryOutput failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "192.0.2.1") {
		t.Fatal("full report must carry per-domain addresses")
	}
}
