// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/debrid"
)

type CacheHandler struct {
	resolver *debrid.Resolver
}

func NewCacheHandler(resolver *debrid.Resolver) *CacheHandler {
	return &CacheHandler{resolver: resolver}
}

// List returns every tracked lifecycle entry, for polling clients.
func (h *CacheHandler) List(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.resolver.Registry().Snapshot())
}

type addCacheRequest struct {
	// HashOrMagnet accepts a bare hex infohash or a full magnet URI.
	HashOrMagnet string `json:"hashOrMagnet"`
}

// Add pushes a torrent into the debrid backend. Concurrent adds for the
// same hash collapse into one backend call.
func (h *CacheHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.HashOrMagnet == "" {
		RespondError(w, http.StatusBadRequest, "hashOrMagnet is required")
		return
	}

	entry, err := h.resolver.AddToCache(r.Context(), req.HashOrMagnet)
	if err != nil {
		log.Error().Err(err).Msg("Add to cache failed")
		respondDebridError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, entry)
}

type checkCacheRequest struct {
	Hashes []string `json:"hashes"`
}

// Check reports instant availability for a batch of hashes.
func (h *CacheHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	RespondJSON(w, http.StatusOK, h.resolver.CheckCached(r.Context(), req.Hashes))
}

// Get returns the lifecycle entry for one hash. A hash never seen locally
// falls back to the backend library before reporting 404.
func (h *CacheHandler) Get(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	if entry, ok := h.resolver.Registry().Get(hash); ok {
		RespondJSON(w, http.StatusOK, entry)
		return
	}

	entry, err := h.resolver.CheckLibrary(r.Context(), hash)
	if err != nil {
		respondDebridError(w, err)
		return
	}
	if entry == nil {
		RespondError(w, http.StatusNotFound, "Hash not tracked and not in debrid library")
		return
	}
	RespondJSON(w, http.StatusOK, entry)
}

func (h *CacheHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.resolver.Remove(r.Context(), chi.URLParam(r, "hash")); err != nil {
		respondDebridError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// Files enumerates the playable files of an added torrent so the caller
// can pick one from a season pack.
func (h *CacheHandler) Files(w http.ResponseWriter, r *http.Request) {
	files, err := h.resolver.ListFiles(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		respondDebridError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, files)
}

type resolveRequest struct {
	// FileIndex selects a file; -1 (or omitted via default) picks the largest.
	FileIndex int `json:"fileIndex"`
	// Wait polls until the backend finishes preparing instead of answering
	// 202 immediately.
	Wait bool `json:"wait,omitempty"`
}

// Resolve produces a fresh time-limited playback URL for one file.
func (h *CacheHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	req := resolveRequest{FileIndex: -1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	var (
		url string
		err error
	)
	if req.Wait {
		url, err = h.resolver.ResolveURLWait(r.Context(), hash, req.FileIndex, 3*time.Second)
	} else {
		url, err = h.resolver.ResolveURL(r.Context(), hash, req.FileIndex)
	}
	if err != nil {
		respondDebridError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"url": url})
}
