// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/streamgate/streamgate/internal/domain"
	"github.com/streamgate/streamgate/internal/metrics"
)

// Resolver drives the add-to-cache and URL-resolution lifecycle on top of
// the REST client, keyed by lowercased infohash. Concurrent adds for the
// same hash collapse into one backend request.
type Resolver struct {
	client   *Client
	registry *Registry
	adds     singleflight.Group
}

func NewResolver(client *Client, registry *Registry) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{
		client:   client,
		registry: registry,
	}
}

// Registry exposes the lifecycle state for polling and subscriptions.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// normalizeMagnet accepts either a magnet URI or a bare hex infohash and
// returns the canonical hash plus an uploadable magnet URI.
func normalizeMagnet(hashOrMagnet string) (hash, magnet string, err error) {
	input := strings.TrimSpace(hashOrMagnet)

	if strings.HasPrefix(strings.ToLower(input), "magnet:") {
		parsed, err := metainfo.ParseMagnetUri(input)
		if err != nil {
			return "", "", &AddError{Reason: fmt.Sprintf("invalid magnet uri: %v", err)}
		}
		return strings.ToLower(parsed.InfoHash.HexString()), input, nil
	}

	infoHash, err := hashFromHex(input)
	if err != nil {
		return "", "", &AddError{Hash: input, Reason: "invalid infohash"}
	}
	return strings.ToLower(infoHash.HexString()), metainfo.Magnet{InfoHash: infoHash}.String(), nil
}

func hashFromHex(input string) (metainfo.Hash, error) {
	var h metainfo.Hash
	if err := h.FromHexString(strings.ToLower(input)); err != nil {
		return metainfo.Hash{}, err
	}
	return h, nil
}

// CheckLibrary looks the hash up in the account's library listing. A hit
// records the torrent id and skips the Adding state entirely; a miss
// returns nil without error.
func (r *Resolver) CheckLibrary(ctx context.Context, hash string) (*domain.CacheEntry, error) {
	key := normalizeHash(hash)
	if key == "" {
		return nil, &NotFoundError{Hash: hash}
	}

	torrents, err := r.client.ListLibrary(ctx)
	if err != nil {
		return nil, err
	}

	for _, torrent := range torrents {
		if torrent.Hash != key {
			continue
		}

		r.registry.Ensure(key)
		entry, err := r.registry.Update(key, func(e *domain.CacheEntry) {
			e.TorrentID = torrent.ID
			if e.State == domain.CacheStateNotAdded || e.State == domain.CacheStateAdding {
				e.State = domain.CacheStateAwaitingURL
			}
		})
		if err != nil {
			return nil, err
		}
		return &entry, nil
	}

	return nil, nil
}

// AddToCache pushes a hash or magnet into the debrid backend. Calls for
// the same hash while one is in flight attach to the pending request and
// observe the same resulting entry.
func (r *Resolver) AddToCache(ctx context.Context, hashOrMagnet string) (domain.CacheEntry, error) {
	hash, magnet, err := normalizeMagnet(hashOrMagnet)
	if err != nil {
		return domain.CacheEntry{}, err
	}

	result, err, shared := r.adds.Do(hash, func() (any, error) {
		return r.addToCache(ctx, hash, magnet)
	})
	if err != nil {
		return domain.CacheEntry{}, err
	}
	if shared {
		log.Debug().Str("hash", hash).Msg("Attached to in-flight add for same hash")
	}
	return result.(domain.CacheEntry), nil
}

func (r *Resolver) addToCache(ctx context.Context, hash, magnet string) (domain.CacheEntry, error) {
	if existing, ok := r.registry.Get(hash); ok && existing.TorrentID != "" &&
		existing.State != domain.CacheStateFailed {
		return existing, nil
	}

	r.registry.Ensure(hash)
	if _, err := r.registry.Update(hash, func(e *domain.CacheEntry) {
		e.State = domain.CacheStateAdding
	}); err != nil {
		return domain.CacheEntry{}, err
	}

	torrent, err := r.client.UploadMagnet(ctx, magnet)
	if err != nil {
		if _, ferr := r.registry.Update(hash, func(e *domain.CacheEntry) {
			e.State = domain.CacheStateFailed
		}); ferr != nil {
			log.Error().Err(ferr).Str("hash", hash).Msg("Failed to record add failure")
		}

		var (
			authErr *AuthError
			netErr  *NetworkError
			rateErr *RateLimitError
		)
		if errors.As(err, &authErr) || errors.As(err, &netErr) || errors.As(err, &rateErr) {
			return domain.CacheEntry{}, err
		}
		return domain.CacheEntry{}, &AddError{Hash: hash, Err: err}
	}

	entry, err := r.registry.Update(hash, func(e *domain.CacheEntry) {
		e.TorrentID = torrent.ID
		e.State = domain.CacheStateAwaitingURL
	})
	if err != nil {
		return domain.CacheEntry{}, err
	}

	metrics.CacheAddsTotal.Inc()
	log.Info().
		Str("hash", hash).
		Str("torrentId", torrent.ID).
		Bool("ready", torrent.Ready).
		Msg("Torrent added to debrid cache")

	return entry, nil
}

// ListFiles enumerates the playable files of an added torrent so a caller
// can pick one without eagerly resolving every candidate.
func (r *Resolver) ListFiles(ctx context.Context, hash string) ([]domain.FileDescriptor, error) {
	entry, ok := r.registry.Get(hash)
	if !ok || entry.TorrentID == "" {
		return nil, &NotFoundError{Hash: normalizeHash(hash)}
	}

	torrent, err := r.client.Status(ctx, entry.TorrentID)
	if err != nil {
		return nil, err
	}
	if torrent.Failed {
		return nil, &ResolveError{Hash: entry.Hash, Err: fmt.Errorf("torrent failed on backend: %s", torrent.Progress)}
	}
	if !torrent.Ready {
		return nil, &ResolveError{Hash: entry.Hash, NotReady: true}
	}
	return torrent.Files, nil
}

// ResolveURL resolves a fresh time-limited playback URL for one file of
// an added torrent. fileIndex -1 selects the largest file. A backend
// still preparing the torrent surfaces as ResolveError with NotReady.
func (r *Resolver) ResolveURL(ctx context.Context, hash string, fileIndex int) (string, error) {
	key := normalizeHash(hash)
	entry, ok := r.registry.Get(key)
	if !ok || entry.TorrentID == "" {
		return "", &NotFoundError{Hash: key}
	}

	torrent, err := r.client.Status(ctx, entry.TorrentID)
	if err != nil {
		return "", err
	}

	if torrent.Failed {
		if _, uerr := r.registry.Update(key, func(e *domain.CacheEntry) {
			e.State = domain.CacheStateFailed
		}); uerr != nil {
			log.Error().Err(uerr).Str("hash", key).Msg("Failed to record backend failure")
		}
		return "", &ResolveError{Hash: key, Err: fmt.Errorf("torrent failed on backend: %s", torrent.Progress)}
	}

	if !torrent.Ready || len(torrent.Files) == 0 {
		return "", &ResolveError{Hash: key, NotReady: true}
	}

	file, err := selectFile(torrent.Files, fileIndex)
	if err != nil {
		return "", &ResolveError{Hash: key, Err: err}
	}

	unlocked, err := r.client.Unlock(ctx, file.Link)
	if err != nil {
		var resolveErr *ResolveError
		if errors.As(err, &resolveErr) {
			resolveErr.Hash = key
			return "", resolveErr
		}
		return "", err
	}

	if _, err := r.registry.Update(key, func(e *domain.CacheEntry) {
		e.FileIndex = file.Index
		e.StreamURL = unlocked.URL
		e.State = domain.CacheStatePlayable
	}); err != nil {
		return "", err
	}

	metrics.URLResolutionsTotal.Inc()
	return unlocked.URL, nil
}

// ResolveURLWait polls ResolveURL until the backend finishes preparing
// the file or the context expires. Only the not-ready case is retried.
func (r *Resolver) ResolveURLWait(ctx context.Context, hash string, fileIndex int, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = 3 * time.Second
	}

	var resolved string
	err := retry.Do(
		func() error {
			url, err := r.ResolveURL(ctx, hash, fileIndex)
			if err != nil {
				return err
			}
			resolved = url
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(20),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var resolveErr *ResolveError
			return errors.As(err, &resolveErr) && resolveErr.NotReady
		}),
	)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// selectFile picks by explicit index, or the largest file when the caller
// has no preference.
func selectFile(files []domain.FileDescriptor, fileIndex int) (domain.FileDescriptor, error) {
	if fileIndex >= 0 {
		for _, file := range files {
			if file.Index == fileIndex {
				return file, nil
			}
		}
		return domain.FileDescriptor{}, fmt.Errorf("file index %d out of range (%d files)", fileIndex, len(files))
	}

	largest := files[0]
	for _, file := range files[1:] {
		if file.SizeBytes > largest.SizeBytes {
			largest = file
		}
	}
	return largest, nil
}

// Rehydrate rebuilds the in-memory lifecycle registry from the account
// library on startup. Returns how many entries were restored.
func (r *Resolver) Rehydrate(ctx context.Context) (int, error) {
	torrents, err := r.client.ListLibrary(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, torrent := range torrents {
		if torrent.Hash == "" {
			continue
		}

		r.registry.Ensure(torrent.Hash)
		state := domain.CacheStateAdding
		switch {
		case torrent.Failed:
			state = domain.CacheStateFailed
		case torrent.Ready:
			state = domain.CacheStateAwaitingURL
		}

		if _, err := r.registry.Update(torrent.Hash, func(e *domain.CacheEntry) {
			e.TorrentID = torrent.ID
			e.State = state
		}); err != nil {
			log.Warn().Err(err).Str("hash", torrent.Hash).Msg("Skipping library entry during rehydration")
			continue
		}
		restored++
	}

	log.Info().Int("entries", restored).Msg("Rehydrated cache state from debrid library")
	return restored, nil
}

// Remove deletes the torrent from the backend library and forgets its
// lifecycle entry.
func (r *Resolver) Remove(ctx context.Context, hash string) error {
	key := normalizeHash(hash)
	entry, ok := r.registry.Get(key)
	if !ok || entry.TorrentID == "" {
		return &NotFoundError{Hash: key}
	}

	if err := r.client.Delete(ctx, entry.TorrentID); err != nil {
		return err
	}

	r.registry.Delete(key)
	return nil
}

// CheckCached reports which hashes the backend already has cached, for
// marking search results. Lookup failures degrade to "not cached".
func (r *Resolver) CheckCached(ctx context.Context, hashes []string) map[string]bool {
	normalized := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		if key := normalizeHash(hash); key != "" {
			normalized = append(normalized, key)
		}
	}

	available, err := r.client.InstantAvailable(ctx, normalized)
	if err != nil {
		log.Warn().Err(err).Msg("Instant availability check failed")
		return map[string]bool{}
	}
	return available
}
