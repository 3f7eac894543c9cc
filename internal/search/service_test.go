// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/domain"
)

type fakeSource struct {
	name       string
	unlimited  bool
	cachedOnly bool
	results    []domain.RawResult
	err        error
	delay      time.Duration
	panics     bool
}

func (f *fakeSource) Name() string             { return f.name }
func (f *fakeSource) Unlimited() bool          { return f.unlimited }
func (f *fakeSource) SupportsCachedOnly() bool { return f.cachedOnly }

func (f *fakeSource) Search(ctx context.Context, query string, cachedOnly bool) ([]domain.RawResult, error) {
	if f.panics {
		panic("source blew up")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func makeResults(source string, n int) []domain.RawResult {
	results := make([]domain.RawResult, n)
	for i := range results {
		results[i] = domain.RawResult{
			Source:    source,
			Title:     "Some.Release.2160p.WEB-DL",
			InfoHash:  "abcdef0123456789abcdef0123456789abcdef01",
			FileIndex: -1,
		}
	}
	return results
}

func TestServiceSearchMergesAllSources(t *testing.T) {
	svc := NewService([]Source{
		&fakeSource{name: "alpha", results: makeResults("alpha", 3)},
		&fakeSource{name: "beta", results: makeResults("beta", 2)},
	})

	set, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161"})
	require.NoError(t, err)

	assert.Equal(t, 5, set.TotalCount)
	assert.Equal(t, 3, set.CountsBySource["alpha"])
	assert.Equal(t, 2, set.CountsBySource["beta"])
}

func TestServiceSearchPartialFailureReturnsResults(t *testing.T) {
	svc := NewService([]Source{
		&fakeSource{name: "alpha", results: makeResults("alpha", 4)},
		&fakeSource{name: "broken", err: errors.New("boom")},
		&fakeSource{name: "slow", delay: time.Second},
		&fakeSource{name: "beta", results: makeResults("beta", 1)},
	}, WithSourceTimeout(50*time.Millisecond))

	set, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161"})
	require.NoError(t, err)

	assert.Equal(t, 5, set.TotalCount)
	assert.Contains(t, set.CountsBySource, "alpha")
	assert.Contains(t, set.CountsBySource, "beta")
	assert.NotContains(t, set.CountsBySource, "broken")
	assert.NotContains(t, set.CountsBySource, "slow")
}

func TestServiceSearchAllSourcesFailed(t *testing.T) {
	svc := NewService([]Source{
		&fakeSource{name: "alpha", err: errors.New("down")},
		&fakeSource{name: "beta", err: errors.New("also down")},
	})

	_, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 sources failed")
}

func TestServiceSearchRecoversFromSourcePanic(t *testing.T) {
	svc := NewService([]Source{
		&fakeSource{name: "panicky", panics: true},
		&fakeSource{name: "beta", results: makeResults("beta", 2)},
	})

	set, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161"})
	require.NoError(t, err)
	assert.Equal(t, 2, set.TotalCount)
	assert.NotContains(t, set.CountsBySource, "panicky")
}

func TestServiceSearchCachedOnlySkipsIncapableSources(t *testing.T) {
	incapable := &fakeSource{name: "raw-indexer", results: makeResults("raw-indexer", 5)}
	capable := &fakeSource{name: "debrid-addon", cachedOnly: true, results: makeResults("debrid-addon", 2)}

	svc := NewService([]Source{incapable, capable})

	set, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161", CachedOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 2, set.TotalCount)
	assert.NotContains(t, set.CountsBySource, "raw-indexer")
}

func TestServiceSearchCachedOnlyNoCapableSources(t *testing.T) {
	svc := NewService([]Source{
		&fakeSource{name: "raw-indexer", results: makeResults("raw-indexer", 5)},
	})

	_, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161", CachedOnly: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cached-only")
}

func TestServiceSearchRespectsPerSourceCap(t *testing.T) {
	svc := NewService([]Source{
		&fakeSource{name: "alpha", results: makeResults("alpha", 10)},
	})

	set, err := svc.Search(context.Background(), domain.SearchQuery{
		Query: "tt0111161",
		Sources: []domain.SourceSelection{
			{Name: "alpha", Enabled: true, MaxResults: 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, set.TotalCount)
	assert.Equal(t, 3, set.CountsBySource["alpha"])
}

func TestServiceSearchDisabledSelectionSkipsSource(t *testing.T) {
	svc := NewService([]Source{
		&fakeSource{name: "alpha", results: makeResults("alpha", 3)},
		&fakeSource{name: "beta", results: makeResults("beta", 2)},
	})

	set, err := svc.Search(context.Background(), domain.SearchQuery{
		Query: "tt0111161",
		Sources: []domain.SourceSelection{
			{Name: "alpha", Enabled: false},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, set.TotalCount)
	assert.NotContains(t, set.CountsBySource, "alpha")
}

func TestServiceSearchCachesResponses(t *testing.T) {
	src := &fakeSource{name: "alpha", results: makeResults("alpha", 2)}
	svc := NewService([]Source{src}, WithResponseCacheTTL(time.Minute))

	first, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161"})
	require.NoError(t, err)

	// Mutating the source afterwards must not change the cached response.
	src.results = makeResults("alpha", 9)

	second, err := svc.Search(context.Background(), domain.SearchQuery{Query: "TT0111161 "})
	require.NoError(t, err)
	assert.Equal(t, first.TotalCount, second.TotalCount)
}

func TestServiceSearchDoesNotCacheDegradedResponses(t *testing.T) {
	healthy := &fakeSource{name: "alpha", results: makeResults("alpha", 2)}
	flaky := &fakeSource{name: "beta", err: errors.New("down")}
	svc := NewService([]Source{healthy, flaky}, WithResponseCacheTTL(time.Minute))

	first, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161"})
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalCount)

	// Once the flaky source recovers, the next search must see its
	// results instead of a cached partial response.
	flaky.err = nil
	flaky.results = makeResults("beta", 3)

	second, err := svc.Search(context.Background(), domain.SearchQuery{Query: "tt0111161"})
	require.NoError(t, err)
	assert.Equal(t, 5, second.TotalCount)
	assert.Contains(t, second.CountsBySource, "beta")
}

func TestServiceSearchEmptyQuery(t *testing.T) {
	svc := NewService([]Source{&fakeSource{name: "alpha"}})

	_, err := svc.Search(context.Background(), domain.SearchQuery{Query: "   "})
	require.Error(t, err)
}

func TestSourceByName(t *testing.T) {
	alpha := &fakeSource{name: "Alpha"}
	svc := NewService([]Source{alpha})

	assert.Equal(t, Source(alpha), svc.SourceByName("alpha"))
	assert.Nil(t, svc.SourceByName("missing"))
}
