package core

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

import "errors"

// Common error values used within the core package.
var (
	// ErrCancelled marks work stopped by cooperative cancellation. It is a
	// status, not a fault: runs interrupted this way still return their
	// partial report, flagged Cancelled.
	ErrCancelled = errors.New("run cancelled")
	// ErrNoDomains indicates a run was requested over an empty domain set.
	ErrNoDomains = errors.New("no domains to query")
	// ErrEmptySearchSpace indicates the tuner was given no candidate values.
	ErrEmptySearchSpace = errors.New("empty search space")
)
