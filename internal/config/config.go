package config

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
Package config persists tool settings in an INI file. The file is a boundary
concern only: it is read once at startup into a Settings value, converted to
the immutable per-run configurations the core consumes, and written back only
when the user applies tuned parameters.
*/

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/ini.v1"

	"github.com/x-stp/dnswarm/internal/core"
)

// DefaultFile is the settings file looked up in the working directory.
const DefaultFile = "config.ini"

// GeneralSettings covers collection-wide options.
type GeneralSettings struct {
	TargetCount   int    `ini:"TargetCount"`
	DataDirectory string `ini:"DataDirectory"`
}

// DNSSettings mirrors the resolver configuration. Timeout is stored as
// seconds in the file, fractional values allowed.
type DNSSettings struct {
	QueriesPerSecond float64 `ini:"QueriesPerSecond"`
	MaxWorkers       int     `ini:"MaxWorkers"`
	Timeout          float64 `ini:"Timeout"`
	BatchSize        int     `ini:"BatchSize"`
}

// CrawlerSettings controls page fetching and extraction during collection.
type CrawlerSettings struct {
	ParseJavaScript bool   `ini:"ParseJavaScript"`
	ParseCSS        bool   `ini:"ParseCSS"`
	ParseImages     bool   `ini:"ParseImages"`
	ParseMetaTags   bool   `ini:"ParseMetaTags"`
	UserAgent       string `ini:"UserAgent"`
	Timeout         int    `ini:"Timeout"`
	CollectThreads  int    `ini:"CollectThreads"`
}

// ExportSettings picks the default serialization of results.
type ExportSettings struct {
	DefaultFormat  string `ini:"DefaultFormat"`
	IncludeDNSInfo bool   `ini:"IncludeDNSInfo"`
}

// Settings is the full persisted configuration.
type Settings struct {
	General GeneralSettings `ini:"General"`
	DNS     DNSSettings     `ini:"DNS"`
	Crawler CrawlerSettings `ini:"Crawler"`
	Export  ExportSettings  `ini:"Export"`
}

// DefaultSettings returns the shipped defaults.
func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			TargetCount:   2000,
			DataDirectory: "data",
		},
		DNS: DNSSettings{
			QueriesPerSecond: core.DefaultQueriesPerSecond,
			MaxWorkers:       core.DefaultMaxWorkers,
			Timeout:          core.DefaultTimeout.Seconds(),
			BatchSize:        core.DefaultBatchSize,
		},
		Crawler: CrawlerSettings{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			Timeout:        10,
			CollectThreads: 5,
		},
		Export: ExportSettings{
			DefaultFormat:  "json",
			IncludeDNSInfo: true,
		},
	}
}

// Load reads path, layering file values over defaults so a sparse file still
// yields a complete Settings. A missing file is not an error: defaults are
// written to path and returned.
func Load(path string) (*Settings, error) {
	s := DefaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if saveErr := s.Save(path); saveErr != nil {
			return nil, fmt.Errorf("creating default settings file %s: %w", path, saveErr)
		}
		return s, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading settings from %s: %w", path, err)
	}
	if err := file.MapTo(s); err != nil {
		return nil, fmt.Errorf("parsing settings from %s: %w", path, err)
	}
	return s, nil
}

// Save writes the settings to path in INI form.
func (s *Settings) Save(path string) error {
	file := ini.Empty()
	if err := file.ReflectFrom(s); err != nil {
		return fmt.Errorf("serializing settings: %w", err)
	}
	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("writing settings to %s: %w", path, err)
	}
	return nil
}

// ResolverConfig converts the DNS section into the per-run configuration
// consumed by the batch engine.
func (s *Settings) ResolverConfig() core.ResolverConfig {
	return core.ResolverConfig{
		QueriesPerSecond: s.DNS.QueriesPerSecond,
		MaxWorkers:       s.DNS.MaxWorkers,
		Timeout:          time.Duration(s.DNS.Timeout * float64(time.Second)),
		BatchSize:        s.DNS.BatchSize,
	}
}

// ApplyTuned writes a tuned resolver configuration back into the DNS section.
func (s *Settings) ApplyTuned(cfg core.ResolverConfig) {
	s.DNS.QueriesPerSecond = cfg.QueriesPerSecond
	s.DNS.MaxWorkers = cfg.MaxWorkers
	s.DNS.Timeout = cfg.Timeout.Seconds()
	s.DNS.BatchSize = cfg.BatchSize
}

// ExtendedExtraction reports whether any of the crawler's extra extraction
// sources are enabled.
func (s *Settings) ExtendedExtraction() bool {
	c := s.Crawler
	return c.ParseJavaScript || c.ParseCSS || c.ParseImages || c.ParseMetaTags
}

// CrawlTimeout returns the crawler's page fetch timeout.
func (s *Settings) CrawlTimeout() time.Duration {
	return time.Duration(s.Crawler.Timeout) * time.Second
}
