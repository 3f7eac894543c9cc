// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"
	"time"
)

// Quality is the coarse resolution bucket a release falls into.
type Quality string

const (
	QualityFourK  Quality = "4K"
	QualityFullHD Quality = "1080p"
	// QualityOther covers 720p and anything the classifier could not place higher.
	QualityOther Quality = "other"
)

// SortOrder controls size ordering inside a quality bucket.
type SortOrder string

const (
	SortSizeAsc  SortOrder = "size_asc"
	SortSizeDesc SortOrder = "size_desc"
)

// SourceSelection enables a source for one search and caps its results.
type SourceSelection struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	MaxResults int    `json:"maxResults,omitempty"`
}

// SearchQuery is the caller-facing search input.
type SearchQuery struct {
	Query      string            `json:"query"`
	CachedOnly bool              `json:"cachedOnly,omitempty"`
	Sources    []SourceSelection `json:"sources,omitempty"`
}

// RawResult is a single release candidate as returned by a source, before
// any parsing. It only lives for the duration of one search response.
type RawResult struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	SizeHint  string    `json:"sizeHint,omitempty"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
	Seeders   int       `json:"seeders,omitempty"`
	Leechers  int       `json:"leechers,omitempty"`
	Published time.Time `json:"published,omitzero"`
	InfoHash  string    `json:"infoHash,omitempty"`
	URL       string    `json:"url,omitempty"`
	// FileIndex selects a file inside a multi-file torrent; -1 means unset.
	FileIndex int `json:"fileIndex"`
	// Cached marks results the source already knows to be debrid-cached.
	Cached bool `json:"cached,omitempty"`
}

// NormalizedHash returns the canonical (lowercased) infohash used as the
// dedup and lifecycle key.
func (r RawResult) NormalizedHash() string {
	return strings.ToLower(strings.TrimSpace(r.InfoHash))
}

// IsDirect reports whether the result carries a directly playable URL
// instead of an infohash-backed torrent.
func (r RawResult) IsDirect() bool {
	return r.InfoHash == "" && r.URL != ""
}

// StreamDescriptor is the structured view of a RawResult. It is derived
// exactly once per result and is immutable.
type StreamDescriptor struct {
	Quality      Quality  `json:"quality"`
	Codec        string   `json:"codec,omitempty"`
	HDR          string   `json:"hdr,omitempty"`
	Audio        string   `json:"audio,omitempty"`
	SizeBytes    int64    `json:"sizeBytes"`
	Seeders      int      `json:"seeders"`
	SourceType   string   `json:"sourceType,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	IsSeasonPack bool     `json:"isSeasonPack"`
	Addon        string   `json:"addon"`
	IsCached     bool     `json:"isCached"`
	IsDirectURL  bool     `json:"isDirectUrl"`

	// Raw carries the originating result so callers can feed the descriptor
	// back into cache resolution without a second lookup.
	Raw RawResult `json:"raw"`
}

// CacheState tracks the debrid lifecycle of one infohash.
type CacheState string

const (
	CacheStateNotAdded    CacheState = "not_added"
	CacheStateAdding      CacheState = "adding"
	CacheStateAwaitingURL CacheState = "added_awaiting_url"
	CacheStatePlayable    CacheState = "playable"
	CacheStateFailed      CacheState = "failed"
)

// CacheEntry is the per-hash debrid lifecycle record. Hash is always the
// lowercased infohash.
type CacheEntry struct {
	Hash      string     `json:"hash"`
	TorrentID string     `json:"torrentId,omitempty"`
	FileIndex int        `json:"fileIndex"`
	StreamURL string     `json:"streamUrl,omitempty"`
	State     CacheState `json:"state"`
}

// FileDescriptor describes one playable file inside a multi-file torrent.
type FileDescriptor struct {
	Index     int    `json:"index"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	// Link is the debrid-internal locked link; it still needs unlocking
	// before playback.
	Link string `json:"-"`
}

// WatchResumeProbe asks whether a previously stored URL is still servable.
// Either Hash (debrid-backed) or DirectURL is set.
type WatchResumeProbe struct {
	Hash      string `json:"hash,omitempty"`
	DirectURL string `json:"directUrl,omitempty"`
	FileIndex int    `json:"fileIndex"`
}
