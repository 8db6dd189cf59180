// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package breaker

import (
	"sort"
	"sync"
)

// Well-known dependency names.
const (
	TimeSeries = "timeseries"
	KVStore    = "kvstore"
)

// Registry owns one Breaker per dependency name. Breakers are independent:
// one opening never changes another's state.
type Registry struct {
	mu       sync.RWMutex
	defaults Settings
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry. defaults fills in any setting a
// registered breaker leaves zero.
func NewRegistry(defaults Settings) *Registry {
	return &Registry{
		defaults: defaults,
		breakers: make(map[string]*Breaker),
	}
}

// Register creates (or replaces) the breaker for s.Name.
func (r *Registry) Register(s Settings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = r.defaults.FailureThreshold
	}
	if s.RecoveryTimeout <= 0 {
		s.RecoveryTimeout = r.defaults.RecoveryTimeout
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = r.defaults.CallTimeout
	}

	b := New(s)
	r.mu.Lock()
	r.breakers[s.Name] = b
	r.mu.Unlock()
	return b
}

// Get returns the breaker for name, creating one from the defaults on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	s := r.defaults
	s.Name = name
	b = New(s)
	r.breakers[name] = b
	return b
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns every breaker's state keyed by name.
func (r *Registry) Snapshot() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Snapshot, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Snapshot()
	}
	return out
}
