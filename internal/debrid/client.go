// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package debrid drives the cache backend: adding torrents by hash,
// listing the account library, resolving time-limited playback URLs, and
// tracking the per-hash lifecycle.
package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/buildinfo"
	"github.com/streamgate/streamgate/internal/domain"
)

const (
	// DefaultBaseURL is the production AllDebrid API host.
	DefaultBaseURL = "https://api.alldebrid.com"

	clientAgent = "streamgate"
)

// Magnet status codes as documented by the backend.
const (
	magnetStatusInQueue     = 0
	magnetStatusDownloading = 1
	magnetStatusCompressing = 2
	magnetStatusUploading   = 3
	magnetStatusReady       = 4
	// Codes 5 and above are terminal failures (upload failed, too big,
	// took too long, deleted on hoster, internal errors).
	magnetStatusFirstError = 5
)

// Client is a thin wrapper over the AllDebrid REST API. Request and
// response shapes follow the documented v4/v4.1 contract exactly.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}
}

// apiResponse is the generic envelope every endpoint answers with.
type apiResponse[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type magnetUploadData struct {
	Magnets []uploadedMagnet `json:"magnets"`
}

type uploadedMagnet struct {
	Magnet string `json:"magnet,omitempty"`
	Name   string `json:"name,omitempty"`
	ID     int    `json:"id,omitempty"`
	Hash   string `json:"hash,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Ready  bool   `json:"ready,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// statusData uses a RawMessage because the backend returns an object when
// queried by id and an array when listing the whole library.
type statusData struct {
	Magnets json.RawMessage `json:"magnets"`
}

type magnetStatus struct {
	ID         int        `json:"id"`
	Filename   string     `json:"filename"`
	Size       int64      `json:"size"`
	Hash       string     `json:"hash,omitempty"`
	Status     string     `json:"status"`
	StatusCode int        `json:"statusCode"`
	Files      []fileNode `json:"files,omitempty"`
}

// fileNode is one entry of the v4.1 nested file tree: n=name, s=size,
// l=locked link, e=child entries for directories.
type fileNode struct {
	N string     `json:"n"`
	S int64      `json:"s,omitempty"`
	L string     `json:"l,omitempty"`
	E []fileNode `json:"e,omitempty"`
}

type unlockData struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Delayed  int    `json:"delayed,omitempty"`
}

type instantData struct {
	Magnets []struct {
		Magnet  string `json:"magnet"`
		Hash    string `json:"hash"`
		Instant bool   `json:"instant"`
	} `json:"magnets"`
}

// Torrent is the provider-facing view of one library entry.
type Torrent struct {
	ID       string
	Hash     string
	Name     string
	Size     int64
	Ready    bool
	Failed   bool
	Progress string
	Files    []domain.FileDescriptor
}

// UnlockedLink is a freshly resolved, time-limited download URL.
type UnlockedLink struct {
	URL      string
	Filename string
	Filesize int64
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	op := method + " " + path

	var body io.Reader
	if form != nil {
		form.Set("agent", clientAgent)
		body = strings.NewReader(form.Encode())
	}

	endpoint := c.baseURL + path
	if form == nil {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		endpoint += sep + "agent=" + url.QueryEscape(clientAgent)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Op: op}
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// envelopeError converts a non-success API envelope into a typed error.
func envelopeError(op, code, message string) error {
	switch {
	case strings.HasPrefix(code, "AUTH_"):
		return &AuthError{Op: op}
	case code == "MAGNET_INVALID_ID", code == "MAGNET_NOT_FOUND":
		return &NotFoundError{}
	default:
		return fmt.Errorf("%s failed: %s (%s)", op, message, code)
	}
}

// UploadMagnet submits a magnet URI (or bare hash wrapped into one) and
// returns the created library entry.
func (c *Client) UploadMagnet(ctx context.Context, magnet string) (*Torrent, error) {
	magnet = strings.TrimSpace(magnet)
	if magnet == "" {
		return nil, &AddError{Reason: "magnet is required"}
	}

	form := url.Values{}
	form.Set("magnets[]", magnet)

	var result apiResponse[magnetUploadData]
	if err := c.do(ctx, http.MethodPost, "/v4/magnet/upload", form, &result); err != nil {
		return nil, err
	}

	if result.Status != "success" {
		code, message := "", "unknown error"
		if result.Error != nil {
			code, message = result.Error.Code, result.Error.Message
		}
		return nil, envelopeError("magnet upload", code, message)
	}

	if len(result.Data.Magnets) == 0 {
		return nil, &AddError{Reason: "backend returned no magnet data"}
	}

	uploaded := result.Data.Magnets[0]
	if uploaded.Error != nil {
		return nil, &AddError{
			Hash:   uploaded.Hash,
			Reason: fmt.Sprintf("%s (%s)", uploaded.Error.Message, uploaded.Error.Code),
		}
	}

	log.Debug().
		Int("id", uploaded.ID).
		Str("hash", uploaded.Hash).
		Bool("ready", uploaded.Ready).
		Msg("Magnet uploaded to debrid backend")

	return &Torrent{
		ID:    strconv.Itoa(uploaded.ID),
		Hash:  strings.ToLower(uploaded.Hash),
		Name:  uploaded.Name,
		Size:  uploaded.Size,
		Ready: uploaded.Ready,
	}, nil
}

// Status fetches one library entry by id, including its file tree.
func (c *Client) Status(ctx context.Context, torrentID string) (*Torrent, error) {
	torrentID = strings.TrimSpace(torrentID)
	if torrentID == "" {
		return nil, &NotFoundError{ID: torrentID}
	}

	path := "/v4.1/magnet/status?id=" + url.QueryEscape(torrentID)

	var result apiResponse[statusData]
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	if result.Status != "success" {
		code, message := "", "unknown error"
		if result.Error != nil {
			code, message = result.Error.Code, result.Error.Message
		}
		if code == "MAGNET_INVALID_ID" || code == "MAGNET_NOT_FOUND" {
			return nil, &NotFoundError{ID: torrentID}
		}
		return nil, envelopeError("magnet status", code, message)
	}

	statuses, err := decodeMagnetStatuses(result.Data.Magnets)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, &NotFoundError{ID: torrentID}
	}

	torrent := convertStatus(statuses[0])
	return &torrent, nil
}

// ListLibrary fetches every magnet in the account. Used to mark results
// as already cached and to rebuild lifecycle state on startup.
func (c *Client) ListLibrary(ctx context.Context) ([]Torrent, error) {
	var result apiResponse[statusData]
	if err := c.do(ctx, http.MethodGet, "/v4.1/magnet/status", nil, &result); err != nil {
		return nil, err
	}

	if result.Status != "success" {
		code, message := "", "unknown error"
		if result.Error != nil {
			code, message = result.Error.Code, result.Error.Message
		}
		return nil, envelopeError("library listing", code, message)
	}

	statuses, err := decodeMagnetStatuses(result.Data.Magnets)
	if err != nil {
		return nil, err
	}

	torrents := make([]Torrent, 0, len(statuses))
	for _, status := range statuses {
		torrents = append(torrents, convertStatus(status))
	}
	return torrents, nil
}

// Unlock exchanges a locked file link for a time-limited download URL.
// A delayed answer means the backend is still preparing the file; that
// case surfaces as a ResolveError with NotReady set.
func (c *Client) Unlock(ctx context.Context, link string) (*UnlockedLink, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, &ResolveError{Err: fmt.Errorf("link is required")}
	}

	form := url.Values{}
	form.Set("link", link)

	var result apiResponse[unlockData]
	if err := c.do(ctx, http.MethodPost, "/v4/link/unlock", form, &result); err != nil {
		return nil, err
	}

	if result.Status != "success" {
		code, message := "", "unknown error"
		if result.Error != nil {
			code, message = result.Error.Code, result.Error.Message
		}
		return nil, envelopeError("link unlock", code, message)
	}

	if result.Data.Delayed > 0 {
		return nil, &ResolveError{
			NotReady: true,
			RetryIn:  time.Duration(result.Data.Delayed) * time.Second,
		}
	}

	return &UnlockedLink{
		URL:      result.Data.Link,
		Filename: result.Data.Filename,
		Filesize: result.Data.Filesize,
	}, nil
}

// Delete removes a magnet from the account library.
func (c *Client) Delete(ctx context.Context, torrentID string) error {
	torrentID = strings.TrimSpace(torrentID)
	if torrentID == "" {
		return &NotFoundError{ID: torrentID}
	}

	form := url.Values{}
	form.Set("id", torrentID)

	var result apiResponse[json.RawMessage]
	if err := c.do(ctx, http.MethodPost, "/v4/magnet/delete", form, &result); err != nil {
		return err
	}

	if result.Status != "success" {
		code, message := "", "unknown error"
		if result.Error != nil {
			code, message = result.Error.Code, result.Error.Message
		}
		if code == "MAGNET_INVALID_ID" {
			return &NotFoundError{ID: torrentID}
		}
		return envelopeError("magnet delete", code, message)
	}

	log.Debug().Str("id", torrentID).Msg("Magnet deleted from debrid library")
	return nil
}

// InstantAvailable checks which of the given hashes are already cached
// server-side. A failed check degrades to "not cached" rather than an
// error: availability is advisory.
func (c *Client) InstantAvailable(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}

	params := url.Values{}
	for _, hash := range hashes {
		params.Add("magnets[]", strings.ToLower(strings.TrimSpace(hash)))
	}

	var result apiResponse[instantData]
	if err := c.do(ctx, http.MethodGet, "/v4/magnet/instant?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}

	available := make(map[string]bool, len(hashes))
	if result.Status != "success" {
		log.Debug().Interface("error", result.Error).Msg("Instant availability check did not succeed")
		return available, nil
	}

	for _, magnet := range result.Data.Magnets {
		if magnet.Instant {
			available[strings.ToLower(magnet.Hash)] = true
		}
	}
	return available, nil
}

func decodeMagnetStatuses(raw json.RawMessage) ([]magnetStatus, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var single magnetStatus
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("decode magnet status: %w", err)
		}
		return []magnetStatus{single}, nil
	}

	var many []magnetStatus
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("decode magnet status list: %w", err)
	}
	return many, nil
}

func convertStatus(status magnetStatus) Torrent {
	torrent := Torrent{
		ID:       strconv.Itoa(status.ID),
		Hash:     strings.ToLower(status.Hash),
		Name:     status.Filename,
		Size:     status.Size,
		Ready:    status.StatusCode == magnetStatusReady,
		Failed:   status.StatusCode >= magnetStatusFirstError,
		Progress: status.Status,
	}
	flattenFileTree(status.Files, "", &torrent.Files)
	return torrent
}

// flattenFileTree walks the nested v4.1 tree depth-first, assigning file
// indices in traversal order so they stay stable across calls.
func flattenFileTree(nodes []fileNode, basePath string, out *[]domain.FileDescriptor) {
	for _, node := range nodes {
		path := node.N
		if basePath != "" {
			path = basePath + "/" + node.N
		}

		if len(node.E) > 0 {
			flattenFileTree(node.E, path, out)
			continue
		}
		if node.L == "" {
			continue
		}
		*out = append(*out, domain.FileDescriptor{
			Index:     len(*out),
			Path:      path,
			SizeBytes: node.S,
			Link:      node.L,
		})
	}
}
