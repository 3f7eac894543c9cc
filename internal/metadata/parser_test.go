// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamgate/streamgate/internal/domain"
)

func TestParseQualityOrderedFirstMatchWins(t *testing.T) {
	tests := []struct {
		title string
		want  domain.Quality
	}{
		{"Movie.Name.2024.2160p.WEB-DL.DV.HDR.H265", domain.QualityFourK},
		{"Movie.Name.2024.4K.REMUX", domain.QualityFourK},
		{"Movie.Name.2024.UHD.BluRay", domain.QualityFourK},
		// 2160p outranks a 1080p token appearing later in the same title.
		{"Movie.2160p.Upscaled.From.1080p", domain.QualityFourK},
		{"Movie.Name.2024.1080p.BluRay.x264", domain.QualityFullHD},
		{"Movie.Name.2024.720p.HDTV", domain.QualityOther},
		{"Movie.Name.2024.DVDRip", domain.QualityOther},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			d := Parse(domain.RawResult{Title: tt.title})
			assert.Equal(t, tt.want, d.Quality)
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	raw := domain.RawResult{
		Source:   "torrentio",
		Title:    "Show.Name.S02.COMPLETE.2160p.WEB-DL.DDP5.1.DV.HDR.H.265-GRP",
		SizeHint: "42.3 GB",
		Seeders:  77,
		InfoHash: "abcdef0123456789abcdef0123456789abcdef01",
	}

	first := Parse(raw)
	second := Parse(raw)
	assert.Equal(t, first, second)
}

func TestParseSizeHint(t *testing.T) {
	tests := []struct {
		hint string
		want int64
	}{
		{"1.5 GB", int64(1.5 * (1 << 30))},
		{"700 MB", 700 << 20},
		{"512 KB", 512 << 10},
		{"2 TB", 2 << 40},
		{"50", 50 << 20},  // no unit defaults to MB
		{"8.2GB", 8804682956}, // 8.2 * (1 << 30) truncated
		{"4 GiB", 4 << 30},
		{"", 0},
		{"n/a", 0},
		{"GB", 0},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSizeHint(tt.hint))
		})
	}
}

func TestParsePrefersExactByteCount(t *testing.T) {
	d := Parse(domain.RawResult{
		Title:     "Movie.2024.1080p",
		SizeHint:  "1.0 GB",
		SizeBytes: 999,
	})
	assert.Equal(t, int64(999), d.SizeBytes)
}

func TestSeasonPackDetection(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Show.Name.S01.Complete.1080p", true},
		{"Show.Name.Season.2.1080p.WEB-DL", true},
		{"Show.Name.S01-S08.COMPLETE", true},
		{"Show.Name.S03.2160p.WEB-DL", true},
		{"Show.Name.S01E05.1080p", false},
		// The single-episode marker wins even next to a pack marker.
		{"Show.Name.S01E01.COMPLETE.REPACK", false},
		{"Movie.Name.2024.1080p.BluRay", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			d := Parse(domain.RawResult{Title: tt.title})
			assert.Equal(t, tt.want, d.IsSeasonPack)
		})
	}
}

func TestParseMalformedTitleNeverFails(t *testing.T) {
	for _, title := range []string{"", "???", "      ", "\x00\x01"} {
		d := Parse(domain.RawResult{Title: title})
		assert.Equal(t, domain.QualityOther, d.Quality)
		assert.False(t, d.IsSeasonPack)
	}
}

func TestParseCarriesRawFlags(t *testing.T) {
	raw := domain.RawResult{
		Source: "torrentio",
		Title:  "Movie.2024.1080p",
		URL:    "https://cdn.example.com/movie.mkv",
		Cached: true,
	}

	d := Parse(raw)
	assert.Equal(t, "torrentio", d.Addon)
	assert.True(t, d.IsCached)
	assert.True(t, d.IsDirectURL)
	assert.Equal(t, raw, d.Raw)
}

func TestLanguageSetNormalizes(t *testing.T) {
	assert.Equal(t, []string{"ENGLISH", "FRENCH"}, languageSet([]string{"English", "french", "ENGLISH", " "}))
	assert.Nil(t, languageSet(nil))
}
