// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metadata turns free-text release titles into structured stream
// descriptors. Parsing is pure and deterministic: the same input always
// produces the same descriptor, and a malformed title degrades to empty
// fields instead of an error.
package metadata

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"

	"github.com/streamgate/streamgate/internal/domain"
)

// qualityRule maps title tokens to a quality bucket. Rules are evaluated in
// order and the first match wins, so higher resolutions must come first.
type qualityRule struct {
	tokens  []string
	quality domain.Quality
}

var qualityRules = []qualityRule{
	{tokens: []string{"2160p", "4k", "uhd"}, quality: domain.QualityFourK},
	{tokens: []string{"1080p", "fhd"}, quality: domain.QualityFullHD},
}

var (
	// singleEpisodePattern always wins over pack markers: S01E05 is an
	// episode even when the title also says "Complete".
	singleEpisodePattern = regexp.MustCompile(`(?i)\bS\d{1,2}[ ._-]?E\d{1,3}\b`)

	seasonPackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bseason[ ._-]?\d{1,2}\b`),
		regexp.MustCompile(`(?i)\bcomplete\b`),
		regexp.MustCompile(`(?i)\bS\d{1,2}[ ._-]?-[ ._-]?S?\d{1,2}\b`),
		regexp.MustCompile(`(?i)\bS\d{1,2}\b`),
	}

	sizeHintPattern = regexp.MustCompile(`^([\d.]+)\s*([A-Za-z]*)$`)
)

// Parse derives the structured descriptor for one raw result.
func Parse(raw domain.RawResult) domain.StreamDescriptor {
	release := rls.ParseString(raw.Title)

	return domain.StreamDescriptor{
		Quality:      classifyQuality(raw.Title, release.Resolution),
		Codec:        joinTokens(release.Codec),
		HDR:          joinTokens(release.HDR),
		Audio:        joinTokens(release.Audio),
		SizeBytes:    resolveSize(raw),
		Seeders:      raw.Seeders,
		SourceType:   release.Source,
		Languages:    languageSet(release.Language),
		IsSeasonPack: detectSeasonPack(raw.Title, release),
		Addon:        raw.Source,
		IsCached:     raw.Cached,
		IsDirectURL:  raw.IsDirect(),
		Raw:          raw,
	}
}

// ParseAll derives descriptors for a whole result set, preserving order.
func ParseAll(raws []domain.RawResult) []domain.StreamDescriptor {
	descriptors := make([]domain.StreamDescriptor, len(raws))
	for i, raw := range raws {
		descriptors[i] = Parse(raw)
	}
	return descriptors
}

func classifyQuality(title, parsedResolution string) domain.Quality {
	haystack := strings.ToLower(parsedResolution + " " + title)
	for _, rule := range qualityRules {
		for _, token := range rule.tokens {
			if strings.Contains(haystack, token) {
				return rule.quality
			}
		}
	}
	return domain.QualityOther
}

// resolveSize prefers an exact byte count from the source over the free-text
// size hint.
func resolveSize(raw domain.RawResult) int64 {
	if raw.SizeBytes > 0 {
		return raw.SizeBytes
	}
	return ParseSizeHint(raw.SizeHint)
}

// ParseSizeHint converts a "<number> <unit>" hint into bytes. A missing or
// unrecognized unit means MB; anything unparsable yields 0.
func ParseSizeHint(hint string) int64 {
	match := sizeHintPattern.FindStringSubmatch(strings.TrimSpace(hint))
	if match == nil {
		return 0
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}

	var multiplier float64
	switch normalizeSizeUnit(match[2]) {
	case "TB":
		multiplier = 1 << 40
	case "GB":
		multiplier = 1 << 30
	case "KB":
		multiplier = 1 << 10
	case "B":
		multiplier = 1
	default:
		// MB, unknown units, and the bare-number case all land here.
		multiplier = 1 << 20
	}

	return int64(value * multiplier)
}

func normalizeSizeUnit(unit string) string {
	u := strings.ToUpper(strings.TrimSpace(unit))
	// Binary-prefix spellings (GiB, MiB) collapse onto their short forms.
	u = strings.ReplaceAll(u, "I", "")
	return u
}

// detectSeasonPack reports whether the title addresses a whole season rather
// than a single episode. An explicit SxxEyy marker always wins.
func detectSeasonPack(title string, release rls.Release) bool {
	if singleEpisodePattern.MatchString(title) {
		return false
	}
	for _, pattern := range seasonPackPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	return release.Series > 0 && release.Episode == 0
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

// languageSet normalizes language tokens to a stable, case-folded set.
func languageSet(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		normalized := strings.ToUpper(strings.TrimSpace(token))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
