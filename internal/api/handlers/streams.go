// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/streamgate/streamgate/internal/domain"
	"github.com/streamgate/streamgate/internal/metadata"
	"github.com/streamgate/streamgate/internal/ranking"
)

// StreamsHandler serves ranking views over a result set the caller holds.
// Raw results are ephemeral, so the caller posts them back for bucketing
// instead of the server keeping per-client result state.
type StreamsHandler struct {
	rankingEngine *ranking.Engine
}

func NewStreamsHandler(rankingEngine *ranking.Engine) *StreamsHandler {
	return &StreamsHandler{rankingEngine: rankingEngine}
}

type bucketRequest struct {
	Results    []domain.RawResult `json:"results"`
	Quality    domain.Quality     `json:"quality"`
	Addon      string             `json:"addon,omitempty"`
	SortOrder  domain.SortOrder   `json:"sortOrder,omitempty"`
	CachedOnly bool               `json:"cachedOnly,omitempty"`
}

func (h *StreamsHandler) Bucket(w http.ResponseWriter, r *http.Request) {
	var req bucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	switch req.Quality {
	case domain.QualityFourK, domain.QualityFullHD, domain.QualityOther:
	default:
		RespondError(w, http.StatusBadRequest, "Unknown quality bucket")
		return
	}

	sortOrder := req.SortOrder
	if sortOrder == "" {
		sortOrder = domain.SortSizeDesc
	}

	bucket := h.rankingEngine.Bucket(metadata.ParseAll(req.Results), ranking.BucketRequest{
		Quality:    req.Quality,
		Addon:      req.Addon,
		Sort:       sortOrder,
		CachedOnly: req.CachedOnly,
	})

	RespondJSON(w, http.StatusOK, bucket)
}

type seasonPacksRequest struct {
	Results []domain.RawResult `json:"results"`
}

func (h *StreamsHandler) SeasonPacks(w http.ResponseWriter, r *http.Request) {
	var req seasonPacksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	packs := h.rankingEngine.SeasonPacks(metadata.ParseAll(req.Results))
	RespondJSON(w, http.StatusOK, packs)
}
