package collector

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
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/x-stp/dnswarm/internal/core"
)

// inlineURLPattern matches absolute URLs inside inline script text.
// Only the host portion is captured.
var inlineURLPattern = regexp.MustCompile(`["']https?://([^/'"]+)["']`)

// ExtractionMode selects which page elements yield domains.
type ExtractionMode int

const (
	// ExtractLinks considers anchor hrefs only.
	ExtractLinks ExtractionMode = iota
	// ExtractExtended additionally considers script, stylesheet, image and
	// meta references, plus absolute URLs embedded in inline scripts.
	ExtractExtended
)

// PageRef is a single domain reference found on a page, with the element
// kind it came from.
type PageRef struct {
	Domain string
	Source string // "a", "script", "link", "img", "meta", "inline"
}

// ExtractDomains parses an HTML page and returns every resolvable domain
// referenced by it, deduplicated, in first-seen order. pageHost is used to
// resolve scheme-relative and relative references.
func ExtractDomains(body []byte, pageHost string, mode ExtractionMode) ([]PageRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var refs []PageRef

	add := func(raw, source string) {
		domain := refDomain(raw, pageHost)
		if domain == "" {
			return
		}
		if _, dup := seen[domain]; dup {
			return
		}
		seen[domain] = struct{}{}
		refs = append(refs, PageRef{Domain: domain, Source: source})
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(href, "a")
	})

	if mode == ExtractExtended {
		doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			add(src, "script")
		})
		doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			add(href, "link")
		})
		doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			add(src, "img")
		})
		doc.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
			content, _ := s.Attr("content")
			// Meta content is free text; only URL-shaped values count.
			if strings.Contains(content, "://") || strings.HasPrefix(content, "//") {
				add(content, "meta")
			}
		})
		doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			if _, hasSrc := s.Attr("src"); hasSrc {
				return
			}
			for _, m := range inlineURLPattern.FindAllStringSubmatch(s.Text(), -1) {
				add("//"+m[1], "inline")
			}
		})
	}

	return refs, nil
}

// refDomain turns one raw attribute value into a normalized domain, or ""
// when the reference carries no usable host (fragments, mailto, relative
// paths, data URIs).
func refDomain(raw, pageHost string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "data:"):
		return ""
	}

	// Scheme-relative references inherit the page's scheme.
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	if strings.Contains(raw, "://") {
		return core.DomainFromURL(raw)
	}

	// Relative path: the reference stays on the page's own host.
	return core.NormalizeDomain(pageHost)
}
