// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_searches_total",
		Help: "Total number of aggregated searches served",
	})

	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_source_failures_total",
		Help: "Per-source search failures and timeouts",
	}, []string{"source"})

	CacheAddsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_cache_adds_total",
		Help: "Total number of torrents pushed to the debrid backend",
	})

	URLResolutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_url_resolutions_total",
		Help: "Total number of successfully resolved playback URLs",
	})

	RevalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_revalidations_total",
		Help: "Resume revalidation outcomes",
	}, []string{"verdict"})
)
