// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/domain"
	"github.com/streamgate/streamgate/internal/metrics"
)

const (
	// DefaultSourceTimeout bounds each per-source request independently.
	DefaultSourceTimeout = 30 * time.Second

	DefaultResponseCacheTTL = 10 * time.Minute
)

// Service fans a query out to every enabled source and merges the results.
type Service struct {
	sources       []Source
	sourceTimeout time.Duration

	responseCache *ttlcache.Cache[string, *ResultSet]
	cacheTTL      time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithSourceTimeout overrides the per-source request timeout.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sourceTimeout = d
		}
	}
}

// WithResponseCacheTTL overrides how long aggregated responses are reused.
func WithResponseCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// NewService creates a search aggregator over the given sources.
func NewService(sources []Source, opts ...Option) *Service {
	s := &Service{
		sources:       sources,
		sourceTimeout: DefaultSourceTimeout,
		cacheTTL:      DefaultResponseCacheTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.responseCache = ttlcache.New(ttlcache.Options[string, *ResultSet]{}.
		SetDefaultTTL(s.cacheTTL))

	return s
}

// Sources returns the configured sources.
func (s *Service) Sources() []Source {
	return s.sources
}

// SourceByName returns the source with the given name, or nil.
func (s *Service) SourceByName(name string) Source {
	for _, src := range s.sources {
		if strings.EqualFold(src.Name(), name) {
			return src
		}
	}
	return nil
}

type sourceExecResult struct {
	name    string
	results []domain.RawResult
	err     error
}

// Search queries every enabled source concurrently and merges the results.
// A failing or timed-out source never aborts the others; its count is simply
// absent from CountsBySource. The call errors only when no source could be
// queried at all, or every queried source failed.
func (s *Service) Search(ctx context.Context, query domain.SearchQuery) (*ResultSet, error) {
	if strings.TrimSpace(query.Query) == "" {
		return nil, errors.New("search query is required")
	}

	cacheKey := s.cacheKey(query)
	if cached, ok := s.responseCache.Get(cacheKey); ok {
		log.Debug().Str("query", query.Query).Msg("Serving aggregated search response from cache")
		return cached, nil
	}

	enabled := s.selectSources(query)
	if len(enabled) == 0 {
		if query.CachedOnly {
			return nil, errors.New("no enabled sources support cached-only search")
		}
		return nil, errors.New("no sources enabled for search")
	}

	resultsChan := make(chan sourceExecResult, len(enabled))

	for _, src := range enabled {
		go func(src Source) {
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic in source goroutine: %v", r)
					log.Error().
						Err(err).
						Str("source", src.Name()).
						Msg("Recovered from panic in source search")
					resultsChan <- sourceExecResult{name: src.Name(), err: err}
				}
			}()

			resultsChan <- s.executeSourceSearch(ctx, src, query)
		}(src)
	}

	set := &ResultSet{
		CountsBySource: make(map[string]int, len(enabled)),
	}

	var (
		failures  int
		timeouts  int
		successes int
		lastErr   error
	)

	for range enabled {
		select {
		case <-ctx.Done():
			return set, ctx.Err()
		case result := <-resultsChan:
			if result.err != nil {
				metrics.SourceFailures.WithLabelValues(result.name).Inc()
				if isTimeoutError(result.err) {
					timeouts++
				} else {
					failures++
					lastErr = result.err
				}
				continue
			}
			successes++
			set.CountsBySource[result.name] = len(result.results)
			set.Results = append(set.Results, result.results...)
		}
	}

	if successes == 0 {
		if timeouts > 0 && failures == 0 {
			return nil, fmt.Errorf("all %d sources timed out", timeouts)
		}
		return nil, fmt.Errorf("all %d sources failed (last error: %w)", failures+timeouts, lastErr)
	}

	if failures > 0 || timeouts > 0 {
		log.Warn().
			Int("sources_failed", failures).
			Int("sources_timed_out", timeouts).
			Int("sources_successful", successes).
			Msg("Some sources failed or timed out during search")
	}

	set.TotalCount = len(set.Results)
	metrics.SearchesTotal.Inc()

	log.Debug().
		Str("query", query.Query).
		Int("sources_requested", len(enabled)).
		Int("sources_successful", successes).
		Int("results", set.TotalCount).
		Msg("Search completion summary")

	// Degraded result sets stay uncached so a recovered source is picked
	// up on the next search instead of after the full TTL.
	if failures == 0 && timeouts == 0 {
		s.responseCache.Set(cacheKey, set, ttlcache.DefaultTTL)
	}

	return set, nil
}

// selectSources resolves the per-search selection against configured sources.
// Cached-only searches skip sources that cannot pre-filter to cached content
// rather than filtering their results after the fact.
func (s *Service) selectSources(query domain.SearchQuery) []Source {
	selection := make(map[string]domain.SourceSelection, len(query.Sources))
	for _, sel := range query.Sources {
		selection[strings.ToLower(sel.Name)] = sel
	}

	var enabled []Source
	for _, src := range s.sources {
		if sel, ok := selection[strings.ToLower(src.Name())]; ok && !sel.Enabled {
			continue
		}
		if query.CachedOnly && !src.SupportsCachedOnly() {
			log.Debug().
				Str("source", src.Name()).
				Msg("Skipping source without cached-only support")
			continue
		}
		enabled = append(enabled, src)
	}
	return enabled
}

func (s *Service) executeSourceSearch(ctx context.Context, src Source, query domain.SearchQuery) sourceExecResult {
	searchCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
	defer cancel()

	start := time.Now()
	results, err := src.Search(searchCtx, query.Query, query.CachedOnly)
	if err != nil {
		log.Error().
			Err(err).
			Str("source", src.Name()).
			Msg("Failed to search source")
		return sourceExecResult{name: src.Name(), err: err}
	}

	if limit := s.maxResultsFor(src, query); limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = src.Name()
		}
	}

	log.Debug().
		Str("source", src.Name()).
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("Source search completed")

	return sourceExecResult{name: src.Name(), results: results}
}

func (s *Service) maxResultsFor(src Source, query domain.SearchQuery) int {
	for _, sel := range query.Sources {
		if strings.EqualFold(sel.Name, src.Name()) {
			return sel.MaxResults
		}
	}
	return 0
}

func (s *Service) cacheKey(query domain.SearchQuery) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(query.Query)))
	if query.CachedOnly {
		b.WriteString("|cached")
	}

	names := make([]string, 0, len(query.Sources))
	for _, sel := range query.Sources {
		if !sel.Enabled {
			continue
		}
		names = append(names, fmt.Sprintf("%s:%d", strings.ToLower(sel.Name), sel.MaxResults))
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("|")
		b.WriteString(name)
	}
	return b.String()
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
