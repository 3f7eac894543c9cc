// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addonFixture = `{
  "streams": [
    {
      "name": "TRT+\n4k",
      "title": "Movie.Name.2024.2160p.WEB-DL.DV.HDR.H265\n👤 142 💾 24.5 GB ⚙️ RARBG",
      "infoHash": "ABCDEF0123456789ABCDEF0123456789ABCDEF01",
      "fileIdx": 2,
      "behaviorHints": {"videoSize": 26306674688}
    },
    {
      "name": "TRT\n1080p",
      "title": "Movie.Name.2024.1080p.BluRay.x264\n👤 87 💾 8.2 GB ⚙️ YTS",
      "infoHash": "1111111111111111111111111111111111111111"
    },
    {
      "name": "HTTP",
      "title": "Movie Name 2024 1080p",
      "url": "https://cdn.example.com/movie.mkv",
      "behaviorHints": {"filename": "Movie.Name.2024.1080p.mkv"}
    },
    {
      "name": "Junk",
      "title": "no hash and no url"
    }
  ]
}`

func TestAddonSourceSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream/movie/tt0111161.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(addonFixture))
	}))
	defer server.Close()

	src := NewAddonSource("torrentio", server.URL, true, server.Client())

	results, err := src.Search(context.Background(), "tt0111161", false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	first := results[0]
	assert.Equal(t, "torrentio", first.Source)
	assert.Equal(t, "Movie.Name.2024.2160p.WEB-DL.DV.HDR.H265", first.Title)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", first.InfoHash)
	assert.Equal(t, 2, first.FileIndex)
	assert.Equal(t, 142, first.Seeders)
	assert.Equal(t, "24.5 GB", first.SizeHint)
	assert.Equal(t, int64(26306674688), first.SizeBytes)
	assert.True(t, first.Cached)

	second := results[1]
	assert.Equal(t, -1, second.FileIndex)
	assert.False(t, second.Cached)

	direct := results[2]
	assert.Empty(t, direct.InfoHash)
	assert.Equal(t, "https://cdn.example.com/movie.mkv", direct.URL)
	assert.True(t, direct.IsDirect())
	assert.True(t, direct.Cached)
}

func TestAddonSourceSearchCachedOnlyFiltersUncached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(addonFixture))
	}))
	defer server.Close()

	src := NewAddonSource("torrentio", server.URL, true, server.Client())

	results, err := src.Search(context.Background(), "tt0111161", true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Cached)
	}
}

func TestAddonSourceSeriesIDUsesSeriesEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"streams":[]}`))
	}))
	defer server.Close()

	src := NewAddonSource("torrentio", server.URL, false, server.Client())

	_, err := src.Search(context.Background(), "tt0903747:1:5", false)
	require.NoError(t, err)
	assert.Equal(t, "/stream/series/tt0903747:1:5.json", gotPath)
}

func TestAddonSourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewAddonSource("torrentio", server.URL, false, server.Client())

	_, err := src.Search(context.Background(), "tt0111161", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
