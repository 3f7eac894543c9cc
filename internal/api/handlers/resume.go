// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/debrid"
	"github.com/streamgate/streamgate/internal/domain"
)

type ResumeHandler struct {
	lifecycle *debrid.Lifecycle
}

func NewResumeHandler(lifecycle *debrid.Lifecycle) *ResumeHandler {
	return &ResumeHandler{lifecycle: lifecycle}
}

// Revalidate decides whether a previously stored stream is still
// servable. Stored debrid URLs are never trusted; a fresh URL comes back
// with a Valid verdict. Backend errors surface as errors so a stale URL
// is never silently reported playable.
func (h *ResumeHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	probe := domain.WatchResumeProbe{FileIndex: -1}
	if err := json.NewDecoder(r.Body).Decode(&probe); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if probe.Hash == "" && probe.DirectURL == "" {
		RespondError(w, http.StatusBadRequest, "Either hash or directUrl is required")
		return
	}

	verdict, err := h.lifecycle.Revalidate(r.Context(), probe)
	if err != nil {
		log.Error().Err(err).Str("hash", probe.Hash).Msg("Revalidation failed")
		respondDebridError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, verdict)
}
