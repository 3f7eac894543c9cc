// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ranking filters, buckets, and sorts parsed stream descriptors.
// All operations are pure: they never mutate their input slice and are safe
// to call concurrently.
package ranking

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/streamgate/streamgate/internal/domain"
)

// bucketCap bounds each quality bucket outside addon and cached-only modes.
const bucketCap = 10

// Engine ranks descriptors. It knows which sources are unlimited (indexer
// style, unbounded result sets); those are exempt from bucket capping and
// are the only ones surfaced in the "other" quality bucket.
type Engine struct {
	unlimited map[string]struct{}
}

func NewEngine(unlimitedSources []string) *Engine {
	set := make(map[string]struct{}, len(unlimitedSources))
	for _, name := range unlimitedSources {
		set[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &Engine{unlimited: set}
}

func (e *Engine) isUnlimited(addon string) bool {
	_, ok := e.unlimited[strings.ToLower(addon)]
	return ok
}

// BucketRequest selects one quality bucket view over a result set.
type BucketRequest struct {
	Quality domain.Quality
	// Addon, when set, restricts the bucket to one source and lifts the cap.
	Addon string
	Sort  domain.SortOrder
	// CachedOnly marks a cached-only search; capping is lifted there too.
	CachedOnly bool
}

// Bucket returns the descriptors for one quality bucket, deduplicated by
// infohash, sorted by size, and capped. Season packs never appear here.
// Buckets are mutually exclusive: each descriptor belongs to exactly one
// quality, and the "other" bucket only carries unlimited-source results.
func (e *Engine) Bucket(descriptors []domain.StreamDescriptor, req BucketRequest) []domain.StreamDescriptor {
	selected := make([]domain.StreamDescriptor, 0, len(descriptors))
	seen := make(map[string]struct{}, len(descriptors))

	for _, d := range descriptors {
		if d.IsSeasonPack {
			continue
		}
		if d.Quality != req.Quality {
			continue
		}
		if req.Quality == domain.QualityOther && !e.isUnlimited(d.Addon) {
			continue
		}
		if req.Addon != "" && !strings.EqualFold(d.Addon, req.Addon) {
			continue
		}
		if hash := d.Raw.NormalizedHash(); hash != "" {
			if _, dup := seen[hash]; dup {
				continue
			}
			seen[hash] = struct{}{}
		}
		selected = append(selected, d)
	}

	sortBySize(selected, req.Sort)

	if req.Addon != "" || req.CachedOnly {
		return selected
	}
	return e.capBucket(selected)
}

// capBucket keeps the first bucketCap limited-source entries; unlimited
// sources are exempt and pass through in place.
func (e *Engine) capBucket(selected []domain.StreamDescriptor) []domain.StreamDescriptor {
	capped := make([]domain.StreamDescriptor, 0, len(selected))
	limited := 0
	for _, d := range selected {
		if e.isUnlimited(d.Addon) {
			capped = append(capped, d)
			continue
		}
		if limited >= bucketCap {
			continue
		}
		limited++
		capped = append(capped, d)
	}
	return capped
}

// SeasonPacks lists season-pack descriptors separately from the quality
// buckets, always largest first regardless of the caller's sort order.
func (e *Engine) SeasonPacks(descriptors []domain.StreamDescriptor) []domain.StreamDescriptor {
	packs := make([]domain.StreamDescriptor, 0, len(descriptors))
	seen := make(map[string]struct{}, len(descriptors))

	for _, d := range descriptors {
		if !d.IsSeasonPack {
			continue
		}
		if hash := d.Raw.NormalizedHash(); hash != "" {
			if _, dup := seen[hash]; dup {
				continue
			}
			seen[hash] = struct{}{}
		}
		packs = append(packs, d)
	}

	sortBySize(packs, domain.SortSizeDesc)
	return packs
}

// FilterRelevant drops descriptors whose title does not fuzzily match the
// query, guarding against indexers that answer broad queries with noise.
func (e *Engine) FilterRelevant(descriptors []domain.StreamDescriptor, query string) []domain.StreamDescriptor {
	query = strings.TrimSpace(query)
	if query == "" {
		return descriptors
	}

	needle := strings.ReplaceAll(query, " ", "")
	relevant := make([]domain.StreamDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if fuzzy.MatchNormalizedFold(needle, d.Raw.Title) {
			relevant = append(relevant, d)
		}
	}
	return relevant
}

// sortBySize orders in place; the sort is stable so equal sizes keep their
// discovery order.
func sortBySize(descriptors []domain.StreamDescriptor, order domain.SortOrder) {
	if order == domain.SortSizeAsc {
		sort.SliceStable(descriptors, func(i, j int) bool {
			return descriptors[i].SizeBytes < descriptors[j].SizeBytes
		})
		return
	}
	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].SizeBytes > descriptors[j].SizeBytes
	})
}
