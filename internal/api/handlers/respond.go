// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/debrid"
)

// RespondJSON writes data as a JSON response with the given status.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// RespondError writes a JSON error body with the given status.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// respondDebridError maps the debrid error taxonomy onto HTTP statuses.
// The not-ready case gets 202 so callers know to poll rather than fail.
func respondDebridError(w http.ResponseWriter, err error) {
	var resolveErr *debrid.ResolveError
	if errors.As(err, &resolveErr) && resolveErr.NotReady {
		RespondJSON(w, http.StatusAccepted, map[string]any{
			"notReady":       true,
			"retryInSeconds": int(resolveErr.RetryIn.Seconds()),
		})
		return
	}

	switch {
	case errors.Is(err, &debrid.AuthError{}):
		RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, &debrid.NotFoundError{}):
		RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, &debrid.RateLimitError{}):
		RespondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, &debrid.AddError{}):
		RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, &debrid.NetworkError{}):
		RespondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, &debrid.ResolveError{}):
		RespondError(w, http.StatusBadGateway, err.Error())
	default:
		RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
