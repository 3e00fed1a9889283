package export

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

/*
Package export serializes domain sets and query reports. Supported formats
are JSON, CSV and XLSX; the import side accepts JSON domain lists (bare
array or {"domains": [...]}) and CSV/plain-text files with one domain per
line (first column for CSV).
*/

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/x-stp/dnswarm/internal/core"
	"github.com/x-stp/dnswarm/internal/util"
)

// Format names accepted by ExportReport.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// reportDocument is the JSON shape of a full query report.
type reportDocument struct {
	Domains      []string           `json:"domains"`
	Results      []core.QueryResult `json:"results"`
	SuccessCount int                `json:"success_count"`
	FailureCount int                `json:"failure_count"`
	ElapsedSec   float64            `json:"elapsed_seconds"`
	Cancelled    bool               `json:"cancelled,omitempty"`
}

// WriteDomainsJSON writes domains as a JSON array, one entry per domain.
func WriteDomainsJSON(w io.Writer, domains []string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if domains == nil {
		domains = []string{}
	}
	return enc.Encode(domains)
}

// WriteReportJSON writes the full report: the successful-domain list plus
// every per-domain result.
func WriteReportJSON(w io.Writer, report *core.QueryReport) error {
	doc := reportDocument{
		Domains:      SuccessfulDomains(report),
		Results:      report.Results,
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
		ElapsedSec:   report.Elapsed.Seconds(),
		Cancelled:    report.Cancelled,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteReportCSV writes one row per result: domain, status, addresses.
// Addresses are joined with ";" so the row stays a single CSV record.
func WriteReportCSV(w io.Writer, report *core.QueryReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"domain", "status", "addresses"}); err != nil {
		return err
	}
	for _, r := range report.Results {
		if err := cw.Write([]string{r.Domain, resultStatus(r), strings.Join(r.Addresses, ";")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReportWorkbook builds an XLSX workbook with a results sheet and a summary
// sheet. The caller owns the returned file and must Close it.
func ReportWorkbook(report *core.QueryReport) (*excelize.File, error) {
	f := excelize.NewFile()

	const sheet = "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Domain", "Status", "Addresses", "Latency (ms)"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for row, r := range report.Results {
		values := []interface{}{
			r.Domain,
			resultStatus(r),
			strings.Join(r.Addresses, ";"),
			float64(r.Latency.Microseconds()) / 1000.0,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	summaryRows := [][]interface{}{
		{"Total", len(report.Results)},
		{"Successful", report.SuccessCount},
		{"Failed", report.FailureCount},
		{"Elapsed (s)", report.Elapsed.Seconds()},
		{"Throughput (qps)", report.Throughput()},
		{"Success rate", report.SuccessRate()},
		{"Cancelled", report.Cancelled},
	}
	for row, pair := range summaryRows {
		for col, v := range pair {
			cell, err := excelize.CoordinatesToCellName(col+1, row+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(summary, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// ExportReport writes report to dir under a timestamped filename in the
// given format and returns the written path.
func ExportReport(dir, baseName, format string, report *core.QueryReport) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}

	switch format {
	case FormatJSON, FormatCSV:
		path := filepath.Join(dir, util.TimestampedFilename(baseName, format))
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("creating export file %s: %w", path, err)
		}
		defer f.Close()

		if format == FormatJSON {
			err = WriteReportJSON(f, report)
		} else {
			err = WriteReportCSV(f, report)
		}
		if err != nil {
			return "", fmt.Errorf("writing %s export: %w", format, err)
		}
		return path, nil

	case FormatXLSX:
		path := filepath.Join(dir, util.TimestampedFilename(baseName, format))
		wb, err := ReportWorkbook(report)
		if err != nil {
			return "", fmt.Errorf("building workbook: %w", err)
		}
		defer wb.Close()
		if err := wb.SaveAs(path); err != nil {
			return "", fmt.Errorf("writing xlsx export %s: %w", path, err)
		}
		return path, nil

	default:
		return "", fmt.Errorf("unknown export format %q (want json, csv or xlsx)", format)
	}
}

// ExportDomains writes the successful-domain list of report as a JSON array
// and returns the written path.
func ExportDomains(dir, baseName string, domains []string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, util.TimestampedFilename(baseName, "json"))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteDomainsJSON(f, domains); err != nil {
		return "", fmt.Errorf("writing domain list: %w", err)
	}
	return path, nil
}

// SuccessfulDomains returns the domains that resolved, in report order.
func SuccessfulDomains(report *core.QueryReport) []string {
	out := make([]string, 0, report.SuccessCount)
	for _, r := range report.Results {
		if r.Resolved {
			out = append(out, r.Domain)
		}
	}
	return out
}

func resultStatus(r core.QueryResult) string {
	if r.Resolved {
		return "ok"
	}
	return string(r.ErrorKind)
}
