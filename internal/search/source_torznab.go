// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/streamgate/streamgate/internal/buildinfo"
	"github.com/streamgate/streamgate/internal/domain"
)

// TorznabSource queries a torznab-compatible indexer (Jackett, Prowlarr, or a
// native tracker API). Torznab indexers return raw torrents with no debrid
// awareness, so they never support cached-only pre-filtering and are treated
// as unlimited for bucketing purposes.
type TorznabSource struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Source = (*TorznabSource)(nil)

func NewTorznabSource(name, baseURL, apiKey string, client *http.Client) *TorznabSource {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &TorznabSource{
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: client,
	}
}

func (t *TorznabSource) Name() string {
	if t.name != "" {
		return t.name
	}
	return "torznab"
}

func (t *TorznabSource) Unlimited() bool { return true }

func (t *TorznabSource) SupportsCachedOnly() bool { return false }

// torznabFeed models the torznab search response, a plain RSS feed with
// torznab:attr extensions per item.
type torznabFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []torznabItem `xml:"item"`
	} `xml:"channel"`
}

type torznabItem struct {
	Title     string `xml:"title"`
	Link      string `xml:"link"`
	Size      int64  `xml:"size"`
	PubDate   string `xml:"pubDate"`
	Enclosure struct {
		URL string `xml:"url,attr"`
	} `xml:"enclosure"`
	Attrs []torznabAttr `xml:"attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (t *TorznabSource) Search(ctx context.Context, query string, cachedOnly bool) ([]domain.RawResult, error) {
	if cachedOnly {
		return nil, fmt.Errorf("source %s does not support cached-only search", t.Name())
	}

	params := url.Values{}
	params.Set("t", "search")
	params.Set("q", strings.TrimSpace(query))
	if t.apiKey != "" {
		params.Set("apikey", t.apiKey)
	}

	endpoint := fmt.Sprintf("%s/api?%s", t.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build torznab request: %w", err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torznab request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("torznab %s rejected the API key (status %d)", t.Name(), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("torznab %s returned %d: %s", t.Name(), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var feed torznabFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode torznab response: %w", err)
	}

	return t.convertFeed(feed), nil
}

func (t *TorznabSource) convertFeed(feed torznabFeed) []domain.RawResult {
	results := make([]domain.RawResult, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}

		raw := domain.RawResult{
			Source:    t.Name(),
			Title:     title,
			SizeBytes: item.Size,
			URL:       firstNonEmpty(item.Enclosure.URL, item.Link),
			FileIndex: -1,
		}

		if item.PubDate != "" {
			if published, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
				raw.Published = published
			}
		}

		for _, attr := range item.Attrs {
			switch strings.ToLower(attr.Name) {
			case "infohash":
				raw.InfoHash = strings.ToLower(strings.TrimSpace(attr.Value))
			case "seeders":
				raw.Seeders, _ = strconv.Atoi(attr.Value)
			case "peers", "leechers":
				raw.Leechers, _ = strconv.Atoi(attr.Value)
			case "size":
				if raw.SizeBytes == 0 {
					raw.SizeBytes, _ = strconv.ParseInt(attr.Value, 10, 64)
				}
			case "magneturl":
				if raw.InfoHash == "" && strings.HasPrefix(attr.Value, "magnet:") {
					raw.InfoHash = infoHashFromMagnet(attr.Value)
				}
			}
		}

		if raw.InfoHash == "" && strings.HasPrefix(raw.URL, "magnet:") {
			raw.InfoHash = infoHashFromMagnet(raw.URL)
		}

		// Torznab results are torrents, never direct streams. An item
		// whose infohash cannot be determined (only a .torrent download
		// link) has nothing the debrid lifecycle can act on, and keeping
		// it would misclassify the download link as a playable URL.
		if raw.InfoHash == "" {
			continue
		}

		results = append(results, raw)
	}
	return results
}

// infoHashFromMagnet pulls the btih hash out of a magnet link without fully
// parsing the URI; malformed links yield an empty hash.
func infoHashFromMagnet(magnet string) string {
	u, err := url.Parse(magnet)
	if err != nil {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if strings.HasPrefix(xt, "urn:btih:") {
			return strings.ToLower(strings.TrimPrefix(xt, "urn:btih:"))
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
