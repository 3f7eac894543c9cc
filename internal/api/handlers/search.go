// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/debrid"
	"github.com/streamgate/streamgate/internal/domain"
	"github.com/streamgate/streamgate/internal/metadata"
	"github.com/streamgate/streamgate/internal/ranking"
	"github.com/streamgate/streamgate/internal/search"
)

type SearchHandler struct {
	searchService *search.Service
	rankingEngine *ranking.Engine
	resolver      *debrid.Resolver
}

func NewSearchHandler(searchService *search.Service, rankingEngine *ranking.Engine, resolver *debrid.Resolver) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		rankingEngine: rankingEngine,
		resolver:      resolver,
	}
}

type searchRequest struct {
	domain.SearchQuery
	// FilterTitle, when set, drops results whose title does not fuzzily
	// match it. Useful against indexers answering broad queries with noise.
	FilterTitle string `json:"filterTitle,omitempty"`
}

type searchResponse struct {
	Results        []domain.StreamDescriptor `json:"results"`
	TotalCount     int                       `json:"totalCount"`
	CountsBySource map[string]int            `json:"countsBySource"`
}

// Search fans the query out to all enabled sources, parses every title
// into a descriptor, and marks results the debrid backend already has.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	set, err := h.searchService.Search(r.Context(), req.SearchQuery)
	if err != nil {
		log.Error().Err(err).Str("query", req.Query).Msg("Search failed")
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	descriptors := metadata.ParseAll(set.Results)

	if req.FilterTitle != "" {
		descriptors = h.rankingEngine.FilterRelevant(descriptors, req.FilterTitle)
	}

	h.markCached(r, descriptors)

	RespondJSON(w, http.StatusOK, searchResponse{
		Results:        descriptors,
		TotalCount:     len(descriptors),
		CountsBySource: set.CountsBySource,
	})
}

// markCached overlays the backend's instant-availability verdict onto
// descriptors the sources did not already flag as cached.
func (h *SearchHandler) markCached(r *http.Request, descriptors []domain.StreamDescriptor) {
	if h.resolver == nil {
		return
	}

	hashes := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if !d.IsCached && !d.IsDirectURL {
			if hash := d.Raw.NormalizedHash(); hash != "" {
				hashes = append(hashes, hash)
			}
		}
	}
	if len(hashes) == 0 {
		return
	}

	cached := h.resolver.CheckCached(r.Context(), hashes)
	for i := range descriptors {
		if cached[descriptors[i].Raw.NormalizedHash()] {
			descriptors[i].IsCached = true
			descriptors[i].Raw.Cached = true
		}
	}
}

type sourceInfo struct {
	Name               string `json:"name"`
	Unlimited          bool   `json:"unlimited"`
	SupportsCachedOnly bool   `json:"supportsCachedOnly"`
}

func (h *SearchHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources := h.searchService.Sources()
	infos := make([]sourceInfo, 0, len(sources))
	for _, src := range sources {
		infos = append(infos, sourceInfo{
			Name:               src.Name(),
			Unlimited:          src.Unlimited(),
			SupportsCachedOnly: src.SupportsCachedOnly(),
		})
	}
	RespondJSON(w, http.StatusOK, infos)
}
