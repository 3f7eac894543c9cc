// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// SourceConfig describes a single configured stream source.
type SourceConfig struct {
	Name       string `mapstructure:"name"`
	Type       string `mapstructure:"type"` // "addon" or "torznab"
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"apiKey"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxResults int    `mapstructure:"maxResults"`
	// Unlimited marks indexer-style sources that return unbounded result sets.
	Unlimited bool `mapstructure:"unlimited"`
	// CachedOnly marks sources capable of pre-filtering to debrid-cached content.
	CachedOnly bool `mapstructure:"cachedOnly"`
	// TimeoutSeconds bounds each request to this source (default 30).
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

// DebridConfig holds the debrid backend credentials and endpoint.
type DebridConfig struct {
	BaseURL string `mapstructure:"baseUrl"`
	APIKey  string `mapstructure:"apiKey"`
}

type Config struct {
	Version string

	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"baseUrl"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`

	PprofEnabled bool `mapstructure:"pprofEnabled"`

	// SearchCacheTTLMinutes controls how long aggregated search responses are reused.
	SearchCacheTTLMinutes int `mapstructure:"searchCacheTtlMinutes"`

	Debrid  DebridConfig   `mapstructure:"debrid"`
	Sources []SourceConfig `mapstructure:"sources"`
}
