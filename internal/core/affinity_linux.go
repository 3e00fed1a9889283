//go:build linux
// +build linux

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

package core

import (
	"log"
	"runtime"

	"golang.org/x/sys/unix"
)

// setAffinity attempts to bind the calling worker's OS thread to a specific
// CPU core. Linux-only cache-locality optimization; best-effort and safe to
// fail silently apart from a warning.
func setAffinity(workerID, cpuID int) {
	// Pin the goroutine to its OS thread so the affinity call applies to the
	// thread the worker actually runs on. The thread is released when the
	// worker goroutine exits.
	runtime.LockOSThread()

	var cpuSet unix.CPUSet
	cpuSet.Zero()
	cpuSet.Set(cpuID)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &cpuSet); err != nil {
		log.Printf("Warning: failed to set CPU affinity for worker %d on core %d (tid: %d): %v", workerID, cpuID, tid, err)
	}
}
