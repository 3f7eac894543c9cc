// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/streamgate/streamgate/internal/buildinfo"
)

type VersionHandler struct {
	version string
}

func NewVersionHandler(version string) *VersionHandler {
	return &VersionHandler{version: version}
}

func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	})
}
