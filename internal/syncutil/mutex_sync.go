//go:build !deadlock

// Package syncutil provides the mutex types used across the controller,
// queue, telemetry and transport layers. By default they are zero-overhead
// wrappers around sync.Mutex and sync.RWMutex. Build with -tags=deadlock to
// swap in github.com/sasha-s/go-deadlock and catch lock-ordering mistakes
// between the queue worker and the telemetry loop during development.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.RWMutex to expose its interface
type RWMutex struct {
	sync.RWMutex
}
