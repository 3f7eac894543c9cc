// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"

	"github.com/streamgate/streamgate/internal/domain"
)

// Source is a pluggable stream/torrent provider queried during aggregation.
type Source interface {
	Name() string
	// Unlimited reports whether the source returns unbounded result sets
	// (indexer-style). Unlimited sources are exempt from bucket capping and
	// are the only ones expected to populate the "extra" quality bucket.
	Unlimited() bool
	// SupportsCachedOnly reports whether the source can pre-filter to
	// debrid-cached content. Sources without this capability are skipped
	// entirely for cached-only searches.
	SupportsCachedOnly() bool
	Search(ctx context.Context, query string, cachedOnly bool) ([]domain.RawResult, error)
}

// ResultSet is the aggregated output of one search call.
type ResultSet struct {
	Results    []domain.RawResult `json:"results"`
	TotalCount int                `json:"totalCount"`
	// CountsBySource has an entry per source that completed successfully;
	// failed or timed-out sources are absent.
	CountsBySource map[string]int `json:"countsBySource"`
}
