// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/buildinfo"
	"github.com/streamgate/streamgate/internal/domain"
	"github.com/streamgate/streamgate/internal/metrics"
)

// ReasonRemovedFromLibrary distinguishes "the user deleted the torrent
// outside the app" from transient failures, so callers can offer
// "remove from history" instead of a retry.
const ReasonRemovedFromLibrary = "removed from library"

// Verdict is the outcome of a resume revalidation.
type Verdict struct {
	Valid bool `json:"valid"`
	// URL carries the freshly resolved playback URL when Valid.
	URL string `json:"url,omitempty"`
	// Reason explains an expiry; empty when Valid.
	Reason string `json:"reason,omitempty"`
}

// Lifecycle revalidates previously issued playback URLs on resume. It
// owns no storage; the watch-history collaborator persists the decision.
type Lifecycle struct {
	resolver   *Resolver
	httpClient *http.Client
}

func NewLifecycle(resolver *Resolver, httpClient *http.Client) *Lifecycle {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Lifecycle{
		resolver:   resolver,
		httpClient: httpClient,
	}
}

// Revalidate decides whether a stored stream is still servable.
//
// Debrid-backed URLs are short-lived by contract, so the stored URL is
// never trusted: the hash is looked up in the library and a fresh URL is
// resolved every time. Direct URLs get a one-byte range probe instead.
// Backend errors (network, auth, not-ready) are returned as errors, not
// folded into an Expired verdict.
func (l *Lifecycle) Revalidate(ctx context.Context, probe domain.WatchResumeProbe) (Verdict, error) {
	if probe.Hash != "" {
		return l.revalidateHash(ctx, probe)
	}
	if probe.DirectURL != "" {
		return l.probeDirectURL(ctx, probe.DirectURL), nil
	}
	return Verdict{}, fmt.Errorf("revalidation probe needs a hash or a direct url")
}

func (l *Lifecycle) revalidateHash(ctx context.Context, probe domain.WatchResumeProbe) (Verdict, error) {
	entry, err := l.resolver.CheckLibrary(ctx, probe.Hash)
	if err != nil {
		return Verdict{}, err
	}

	if entry == nil {
		log.Info().Str("hash", probe.Hash).Msg("Library entry gone, resume target expired")
		metrics.RevalidationsTotal.WithLabelValues("expired").Inc()
		return Verdict{Reason: ReasonRemovedFromLibrary}, nil
	}

	url, err := l.resolver.ResolveURL(ctx, entry.Hash, probe.FileIndex)
	if err != nil {
		return Verdict{}, err
	}

	metrics.RevalidationsTotal.WithLabelValues("valid").Inc()
	return Verdict{Valid: true, URL: url}, nil
}

// probeDirectURL issues a one-byte range request. Only 200 and 206 count
// as alive; any other status or a transport failure means expired.
func (l *Lifecycle) probeDirectURL(ctx context.Context, directURL string) Verdict {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		metrics.RevalidationsTotal.WithLabelValues("expired").Inc()
		return Verdict{Reason: fmt.Sprintf("invalid url: %v", err)}
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		metrics.RevalidationsTotal.WithLabelValues("expired").Inc()
		return Verdict{Reason: fmt.Sprintf("probe failed: %v", err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent {
		metrics.RevalidationsTotal.WithLabelValues("valid").Inc()
		return Verdict{Valid: true, URL: directURL}
	}

	metrics.RevalidationsTotal.WithLabelValues("expired").Inc()
	return Verdict{Reason: fmt.Sprintf("probe returned status %d", resp.StatusCode)}
}
