// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/streamgate/streamgate/internal/buildinfo"
	"github.com/streamgate/streamgate/internal/domain"
)

const maxStreamsPerAddonCall = 200

// AddonSource queries a stremio stream-protocol addon. The addon returns a
// stream list for a media id; entries carry either an infoHash (torrent) or
// a direct playback URL.
type AddonSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
	cachedOnly bool
}

var _ Source = (*AddonSource)(nil)

// NewAddonSource builds an addon-protocol source. cachedOnly marks addons
// configured with a debrid key, which pre-filter to cached content server-side.
func NewAddonSource(name, baseURL string, cachedOnly bool, client *http.Client) *AddonSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &AddonSource{
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: client,
		cachedOnly: cachedOnly,
	}
}

func (a *AddonSource) Name() string {
	if a.name != "" {
		return a.name
	}
	return "addon"
}

func (a *AddonSource) Unlimited() bool { return false }

func (a *AddonSource) SupportsCachedOnly() bool { return a.cachedOnly }

// addonStreamResponse mirrors the stremio stream endpoint payload.
type addonStreamResponse struct {
	Streams []addonStream `json:"streams"`
}

type addonStream struct {
	Name          string `json:"name"`
	Title         string `json:"title"`
	InfoHash      string `json:"infoHash"`
	FileIdx       *int   `json:"fileIdx"`
	URL           string `json:"url"`
	BehaviorHints struct {
		VideoSize int64  `json:"videoSize"`
		Filename  string `json:"filename"`
	} `json:"behaviorHints"`
}

// seriesIDPattern matches addon ids that address a specific episode
// (e.g. "tt0903747:1:5").
var seriesIDPattern = regexp.MustCompile(`:\d+:\d+$`)

var (
	addonSizePattern    = regexp.MustCompile(`([\d.,]+)\s*([KMGTP]?i?B)`)
	addonSeedersPattern = regexp.MustCompile(`👤\s*(\d+)`)
)

func (a *AddonSource) Search(ctx context.Context, query string, cachedOnly bool) ([]domain.RawResult, error) {
	id := strings.TrimSpace(query)
	if id == "" {
		return nil, nil
	}

	mediaType := "movie"
	if seriesIDPattern.MatchString(id) {
		mediaType = "series"
	}

	endpoint := fmt.Sprintf("%s/stream/%s/%s.json", a.baseURL, mediaType, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build addon request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("addon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("addon %s returned %d: %s", a.Name(), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload addonStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode addon response: %w", err)
	}

	results := make([]domain.RawResult, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		if len(results) >= maxStreamsPerAddonCall {
			break
		}

		raw, ok := a.convertStream(stream, cachedOnly)
		if !ok {
			continue
		}
		results = append(results, raw)
	}

	return results, nil
}

func (a *AddonSource) convertStream(stream addonStream, cachedOnly bool) (domain.RawResult, bool) {
	infoHash := strings.ToLower(strings.TrimSpace(stream.InfoHash))
	directURL := strings.TrimSpace(stream.URL)
	if infoHash == "" && directURL == "" {
		return domain.RawResult{}, false
	}

	title := deriveTitle(stream.Title)
	if title == "" {
		title = strings.TrimSpace(stream.BehaviorHints.Filename)
	}

	fileIdx := -1
	if stream.FileIdx != nil {
		fileIdx = *stream.FileIdx
	}

	// Cached-marker convention: addons flag debrid-cached entries with a "+"
	// suffix in the provider label (e.g. "[AD+]").
	cached := strings.Contains(stream.Name, "+") || directURL != ""
	if cachedOnly && !cached {
		return domain.RawResult{}, false
	}

	raw := domain.RawResult{
		Source:    a.Name(),
		Title:     title,
		SizeHint:  extractSizeHint(stream.Title),
		SizeBytes: stream.BehaviorHints.VideoSize,
		Seeders:   extractSeeders(stream.Title),
		InfoHash:  infoHash,
		URL:       directURL,
		FileIndex: fileIdx,
		Cached:    cached,
	}

	return raw, true
}

// deriveTitle keeps the first line of a multi-line addon title; addons pack
// size/seeder/provider decorations into the following lines.
func deriveTitle(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) == 0 {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(lines[0])
}

func extractSizeHint(raw string) string {
	match := addonSizePattern.FindStringSubmatch(raw)
	if len(match) != 3 {
		return ""
	}
	return fmt.Sprintf("%s %s", strings.ReplaceAll(match[1], ",", ""), normalizeUnit(match[2]))
}

func normalizeUnit(unit string) string {
	return strings.ToUpper(strings.ReplaceAll(unit, "i", ""))
}

func extractSeeders(raw string) int {
	match := addonSeedersPattern.FindStringSubmatch(raw)
	if len(match) != 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}
