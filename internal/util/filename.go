package util

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
	"strings"
	"time"
)

// SanitizeFilename creates a filesystem-safe filename from a domain or other string.
// Replaces common problematic characters with underscores and limits length.
// Performance is not critical for this setup utility.
func SanitizeFilename(input string) string {
	// Replace problematic characters with underscore.
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, input)
	// Limit filename length to avoid OS issues.
	maxLength := 100 // Arbitrary limit
	if len(replaced) > maxLength {
		return replaced[:maxLength]
	}
	return replaced
}

// TimestampedFilename builds "<prefix>_<UTC timestamp>.<ext>" with the prefix
// sanitized. Used for export files so repeated runs never clobber each other.
func TimestampedFilename(prefix, ext string) string {
	ts := time.Now().UTC().Format("20060102_150405")
	return SanitizeFilename(prefix) + "_" + ts + "." + ext
}
