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

const torznabFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <title>Jackett</title>
    <item>
      <title>Show.Name.S01.COMPLETE.1080p.WEB-DL</title>
      <link>https://indexer.example.com/dl/1</link>
      <size>16106127360</size>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
      <enclosure url="https://indexer.example.com/torrent/1.torrent" type="application/x-bittorrent" />
      <torznab:attr name="infohash" value="ABCDEF0123456789ABCDEF0123456789ABCDEF01" />
      <torznab:attr name="seeders" value="55" />
      <torznab:attr name="peers" value="12" />
    </item>
    <item>
      <title>Show.Name.S01E02.720p.HDTV</title>
      <link>magnet:?xt=urn:btih:FFFF567890ABCDEF1234567890ABCDEF12345678&amp;dn=Show.Name</link>
      <size>734003200</size>
      <torznab:attr name="seeders" value="9" />
    </item>
    <item>
      <title></title>
      <link>https://indexer.example.com/dl/3</link>
    </item>
  </channel>
</rss>`

func TestTorznabSourceSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "search", r.URL.Query().Get("t"))
		assert.Equal(t, "show name", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(torznabFixture))
	}))
	defer server.Close()

	src := NewTorznabSource("jackett", server.URL, "secret", server.Client())

	results, err := src.Search(context.Background(), "show name", false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "jackett", first.Source)
	assert.Equal(t, "Show.Name.S01.COMPLETE.1080p.WEB-DL", first.Title)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", first.InfoHash)
	assert.Equal(t, int64(16106127360), first.SizeBytes)
	assert.Equal(t, 55, first.Seeders)
	assert.Equal(t, 12, first.Leechers)
	assert.Equal(t, "https://indexer.example.com/torrent/1.torrent", first.URL)
	assert.False(t, first.Published.IsZero())

	second := results[1]
	assert.Equal(t, "ffff567890abcdef1234567890abcdef12345678", second.InfoHash)
	assert.Equal(t, 9, second.Seeders)
}

func TestTorznabSourceDropsHashlessItems(t *testing.T) {
	// Some indexers only hand out a .torrent download link with no
	// infohash attribute. Those results cannot enter the debrid
	// lifecycle and must never leak out looking like direct streams.
	fixture := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Movie.Name.2024.1080p.BluRay</title>
      <link>https://indexer.example.com/dl/9</link>
      <enclosure url="https://indexer.example.com/torrent/9.torrent" type="application/x-bittorrent" />
      <torznab:attr name="seeders" value="31" />
    </item>
    <item>
      <title>Movie.Name.2024.2160p.WEB-DL</title>
      <enclosure url="https://indexer.example.com/torrent/10.torrent" type="application/x-bittorrent" />
      <torznab:attr name="infohash" value="1234567890abcdef1234567890abcdef12345678" />
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(fixture))
	}))
	defer server.Close()

	src := NewTorznabSource("jackett", server.URL, "", server.Client())

	results, err := src.Search(context.Background(), "movie name", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1234567890abcdef1234567890abcdef12345678", results[0].InfoHash)
	assert.False(t, results[0].IsDirect())
}

func TestTorznabSourceRejectsCachedOnly(t *testing.T) {
	src := NewTorznabSource("jackett", "http://localhost", "", nil)

	_, err := src.Search(context.Background(), "show name", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cached-only")
}

func TestTorznabSourceAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	src := NewTorznabSource("jackett", server.URL, "wrong", server.Client())

	_, err := src.Search(context.Background(), "show name", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestInfoHashFromMagnet(t *testing.T) {
	assert.Equal(t,
		"abcdef0123456789abcdef0123456789abcdef01",
		infoHashFromMagnet("magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01&dn=x"))
	assert.Empty(t, infoHashFromMagnet("https://example.com/not-a-magnet"))
	assert.Empty(t, infoHashFromMagnet("magnet:?dn=missing-xt"))
}
