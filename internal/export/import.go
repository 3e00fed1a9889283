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

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/x-stp/dnswarm/internal/core"
)

// ImportDomains reads a domain list from path. The format is chosen by
// extension: .json expects a bare array or a {"domains": [...]} object,
// .csv takes the first column of each row, anything else is treated as
// plain text with one domain per line. Entries are normalized and
// deduplicated; unparseable entries are skipped.
func ImportDomains(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file %s: %w", path, err)
	}
	defer f.Close()

	var raw []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		raw, err = readJSONDomains(f)
	case ".csv":
		raw, err = readCSVDomains(f)
	default:
		raw, err = readLineDomains(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing import file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(raw))
	domains := make([]string, 0, len(raw))
	for _, entry := range raw {
		domain := core.NormalizeDomain(entry)
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}

	if len(domains) == 0 {
		return nil, fmt.Errorf("import file %s: %w", path, core.ErrNoDomains)
	}
	return domains, nil
}

func readJSONDomains(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Domains []string `json:"domains"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("neither a JSON array nor a domains object: %w", err)
	}
	return doc.Domains, nil
}

func readCSVDomains(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // rows may have differing column counts

	var out []string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}
		first := strings.TrimSpace(record[0])
		if first == "" || strings.EqualFold(first, "domain") {
			continue // header or blank row
		}
		out = append(out, first)
	}
	return out, nil
}

func readLineDomains(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
