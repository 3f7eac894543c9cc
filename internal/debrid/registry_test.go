// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/domain"
)

const testHash = "abcdef0123456789abcdef0123456789abcdef01"

func TestRegistryCollapsesHashCase(t *testing.T) {
	registry := NewRegistry()

	registry.Ensure("ABCDEF0123456789ABCDEF0123456789ABCDEF01")
	registry.Ensure(testHash)

	assert.Len(t, registry.Snapshot(), 1)

	entry, ok := registry.Get("AbCdEf0123456789abcdef0123456789abcdef01")
	require.True(t, ok)
	assert.Equal(t, testHash, entry.Hash)
}

func TestRegistryForwardOnlyTransitions(t *testing.T) {
	registry := NewRegistry()
	registry.Ensure(testHash)

	_, err := registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStateAdding
	})
	require.NoError(t, err)

	_, err = registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStateAwaitingURL
	})
	require.NoError(t, err)

	// Moving backwards is rejected.
	_, err = registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStateAdding
	})
	require.Error(t, err)

	entry, _ := registry.Get(testHash)
	assert.Equal(t, domain.CacheStateAwaitingURL, entry.State)
}

func TestRegistryFailureResetsIntoAddPath(t *testing.T) {
	registry := NewRegistry()
	registry.Ensure(testHash)

	_, err := registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStatePlayable
	})
	require.NoError(t, err)

	// Any state may fail.
	_, err = registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStateFailed
	})
	require.NoError(t, err)

	// A retry from Failed re-enters Adding, never jumps straight back to
	// a terminal state.
	_, err = registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStatePlayable
	})
	require.Error(t, err)

	_, err = registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStateAdding
	})
	require.NoError(t, err)
}

func TestRegistrySkippingAddingIsAllowed(t *testing.T) {
	registry := NewRegistry()
	registry.Ensure(testHash)

	// A hash discovered in the library jumps past Adding.
	_, err := registry.Update(testHash, func(e *domain.CacheEntry) {
		e.TorrentID = "42"
		e.State = domain.CacheStateAwaitingURL
	})
	require.NoError(t, err)
}

func TestRegistrySubscribeObservesChanges(t *testing.T) {
	registry := NewRegistry()

	var states []domain.CacheState
	registry.Subscribe(func(entry domain.CacheEntry) {
		states = append(states, entry.State)
	})

	registry.Ensure(testHash)
	_, err := registry.Update(testHash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStateAdding
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.CacheState{domain.CacheStateNotAdded, domain.CacheStateAdding}, states)
}
