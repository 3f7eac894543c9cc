// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/domain"
)

// stateRank orders the lifecycle for the forward-only rule. Failed sits
// outside the ordering: any state may fail, and a retry from Failed
// re-enters Adding.
var stateRank = map[domain.CacheState]int{
	domain.CacheStateNotAdded:    0,
	domain.CacheStateAdding:      1,
	domain.CacheStateAwaitingURL: 2,
	domain.CacheStatePlayable:    3,
}

// Registry tracks the per-hash cache lifecycle in memory. State survives
// only for the process lifetime; on startup it is rebuilt from the debrid
// library listing, so losing it on restart is safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry

	listenerMu sync.RWMutex
	listeners  []func(domain.CacheEntry)
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]domain.CacheEntry),
	}
}

func normalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// Get returns the entry for a hash, matching case-insensitively.
func (r *Registry) Get(hash string) (domain.CacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[normalizeHash(hash)]
	return entry, ok
}

// Snapshot copies out every tracked entry, for polling callers.
func (r *Registry) Snapshot() []domain.CacheEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]domain.CacheEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Ensure returns the existing entry for a hash or creates one in
// NotAdded. Two hashes differing only by case collapse to one entry.
func (r *Registry) Ensure(hash string) domain.CacheEntry {
	key := normalizeHash(hash)

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = domain.CacheEntry{
			Hash:      key,
			FileIndex: -1,
			State:     domain.CacheStateNotAdded,
		}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	if !ok {
		r.notify(entry)
	}
	return entry
}

// Update applies fn to the entry under the lock and validates the state
// transition. Transitions only move forward; Failed is reachable from
// anywhere and a retry from Failed re-enters Adding.
func (r *Registry) Update(hash string, fn func(*domain.CacheEntry)) (domain.CacheEntry, error) {
	key := normalizeHash(hash)

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = domain.CacheEntry{
			Hash:      key,
			FileIndex: -1,
			State:     domain.CacheStateNotAdded,
		}
	}

	previous := entry.State
	fn(&entry)
	entry.Hash = key

	if !transitionAllowed(previous, entry.State) {
		r.mu.Unlock()
		return domain.CacheEntry{}, fmt.Errorf("invalid cache state transition %s -> %s for %s", previous, entry.State, key)
	}

	r.entries[key] = entry
	r.mu.Unlock()

	if previous != entry.State {
		log.Debug().
			Str("hash", key).
			Str("from", string(previous)).
			Str("to", string(entry.State)).
			Msg("Cache entry state changed")
	}

	r.notify(entry)
	return entry, nil
}

func transitionAllowed(from, to domain.CacheState) bool {
	if from == to {
		return true
	}
	if to == domain.CacheStateFailed {
		return true
	}
	if from == domain.CacheStateFailed {
		// A failed entry resets into the add path, never silently back to
		// a terminal state.
		return to == domain.CacheStateAdding || to == domain.CacheStateNotAdded
	}
	return stateRank[to] > stateRank[from]
}

// Delete forgets an entry entirely, used when the torrent is removed
// from the backend library.
func (r *Registry) Delete(hash string) {
	r.mu.Lock()
	delete(r.entries, normalizeHash(hash))
	r.mu.Unlock()
}

// Subscribe registers a callback invoked after every entry change. The
// callback must not block; it runs on the mutating goroutine.
func (r *Registry) Subscribe(fn func(domain.CacheEntry)) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify(entry domain.CacheEntry) {
	r.listenerMu.RLock()
	defer r.listenerMu.RUnlock()
	for _, fn := range r.listeners {
		fn(entry)
	}
}
