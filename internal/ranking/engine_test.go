// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/domain"
)

func descriptor(addon string, quality domain.Quality, size int64, hash string) domain.StreamDescriptor {
	return domain.StreamDescriptor{
		Quality:   quality,
		SizeBytes: size,
		Addon:     addon,
		Raw: domain.RawResult{
			Source:    addon,
			Title:     fmt.Sprintf("Release.%s.%d", quality, size),
			InfoHash:  hash,
			FileIndex: -1,
		},
	}
}

func TestBucketIsMutuallyExclusiveByQuality(t *testing.T) {
	engine := NewEngine(nil)
	descriptors := []domain.StreamDescriptor{
		descriptor("torrentio", domain.QualityFourK, 20<<30, "aaaa000000000000000000000000000000000001"),
		descriptor("torrentio", domain.QualityFullHD, 8<<30, "aaaa000000000000000000000000000000000002"),
	}

	fourK := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFourK, Sort: domain.SortSizeDesc})
	fullHD := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFullHD, Sort: domain.SortSizeDesc})

	require.Len(t, fourK, 1)
	require.Len(t, fullHD, 1)
	assert.Equal(t, domain.QualityFourK, fourK[0].Quality)
	assert.Equal(t, domain.QualityFullHD, fullHD[0].Quality)
}

func TestBucketExcludesSeasonPacks(t *testing.T) {
	engine := NewEngine(nil)
	pack := descriptor("torrentio", domain.QualityFullHD, 30<<30, "aaaa000000000000000000000000000000000001")
	pack.IsSeasonPack = true
	episode := descriptor("torrentio", domain.QualityFullHD, 2<<30, "aaaa000000000000000000000000000000000002")

	bucket := engine.Bucket([]domain.StreamDescriptor{pack, episode}, BucketRequest{
		Quality: domain.QualityFullHD,
		Sort:    domain.SortSizeDesc,
	})
	packs := engine.SeasonPacks([]domain.StreamDescriptor{pack, episode})

	require.Len(t, bucket, 1)
	assert.False(t, bucket[0].IsSeasonPack)
	require.Len(t, packs, 1)
	assert.True(t, packs[0].IsSeasonPack)
}

func TestBucketSortReversesExactly(t *testing.T) {
	engine := NewEngine(nil)
	var descriptors []domain.StreamDescriptor
	for i := 1; i <= 5; i++ {
		descriptors = append(descriptors, descriptor(
			"torrentio",
			domain.QualityFullHD,
			int64(i)<<30,
			fmt.Sprintf("aaaa00000000000000000000000000000000000%d", i),
		))
	}

	asc := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFullHD, Sort: domain.SortSizeAsc})
	desc := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFullHD, Sort: domain.SortSizeDesc})

	require.Len(t, asc, 5)
	for i := range asc {
		assert.Equal(t, asc[i].SizeBytes, desc[len(desc)-1-i].SizeBytes)
	}
}

func TestBucketStableTieBreakPreservesDiscoveryOrder(t *testing.T) {
	engine := NewEngine(nil)
	first := descriptor("alpha", domain.QualityFullHD, 4<<30, "aaaa000000000000000000000000000000000001")
	second := descriptor("beta", domain.QualityFullHD, 4<<30, "aaaa000000000000000000000000000000000002")

	bucket := engine.Bucket([]domain.StreamDescriptor{first, second}, BucketRequest{
		Quality: domain.QualityFullHD,
		Sort:    domain.SortSizeDesc,
	})

	require.Len(t, bucket, 2)
	assert.Equal(t, "alpha", bucket[0].Addon)
	assert.Equal(t, "beta", bucket[1].Addon)
}

func TestBucketDeduplicatesByHashCaseInsensitively(t *testing.T) {
	engine := NewEngine(nil)
	lower := descriptor("alpha", domain.QualityFullHD, 4<<30, "abcdef0123456789abcdef0123456789abcdef01")
	upper := descriptor("beta", domain.QualityFullHD, 4<<30, "ABCDEF0123456789ABCDEF0123456789ABCDEF01")

	bucket := engine.Bucket([]domain.StreamDescriptor{lower, upper}, BucketRequest{
		Quality: domain.QualityFullHD,
		Sort:    domain.SortSizeDesc,
	})

	require.Len(t, bucket, 1)
	assert.Equal(t, "alpha", bucket[0].Addon)
}

func TestBucketCapAppliesOutsideAddonAndCachedOnlyModes(t *testing.T) {
	engine := NewEngine(nil)
	var descriptors []domain.StreamDescriptor
	for i := 0; i < 25; i++ {
		descriptors = append(descriptors, descriptor(
			"torrentio",
			domain.QualityFullHD,
			int64(i+1)<<20,
			fmt.Sprintf("aaaa0000000000000000000000000000000000%02d", i),
		))
	}

	capped := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFullHD, Sort: domain.SortSizeAsc})
	assert.Len(t, capped, bucketCap)

	cachedOnly := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFullHD, Sort: domain.SortSizeAsc, CachedOnly: true})
	assert.Len(t, cachedOnly, 25)

	addonMode := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFullHD, Sort: domain.SortSizeAsc, Addon: "torrentio"})
	assert.Len(t, addonMode, 25)
}

func TestBucketUnlimitedSourceExemptFromCap(t *testing.T) {
	engine := NewEngine([]string{"jackett"})
	var descriptors []domain.StreamDescriptor
	for i := 0; i < 15; i++ {
		descriptors = append(descriptors, descriptor(
			"jackett",
			domain.QualityFullHD,
			int64(i+1)<<20,
			fmt.Sprintf("aaaa0000000000000000000000000000000000%02d", i),
		))
	}

	bucket := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityFullHD, Sort: domain.SortSizeAsc})
	assert.Len(t, bucket, 15)
}

func TestOtherBucketOnlyCarriesUnlimitedSources(t *testing.T) {
	engine := NewEngine([]string{"jackett"})
	descriptors := []domain.StreamDescriptor{
		descriptor("torrentio", domain.QualityOther, 1<<30, "aaaa000000000000000000000000000000000001"),
		descriptor("jackett", domain.QualityOther, 2<<30, "aaaa000000000000000000000000000000000002"),
	}

	bucket := engine.Bucket(descriptors, BucketRequest{Quality: domain.QualityOther, Sort: domain.SortSizeDesc})

	require.Len(t, bucket, 1)
	assert.Equal(t, "jackett", bucket[0].Addon)
}

func TestSeasonPacksAlwaysSizeDescending(t *testing.T) {
	engine := NewEngine(nil)
	small := descriptor("torrentio", domain.QualityFullHD, 10<<30, "aaaa000000000000000000000000000000000001")
	small.IsSeasonPack = true
	large := descriptor("torrentio", domain.QualityFourK, 60<<30, "aaaa000000000000000000000000000000000002")
	large.IsSeasonPack = true

	packs := engine.SeasonPacks([]domain.StreamDescriptor{small, large})

	require.Len(t, packs, 2)
	assert.Equal(t, int64(60<<30), packs[0].SizeBytes)
	assert.Equal(t, int64(10<<30), packs[1].SizeBytes)
}

func TestFilterRelevant(t *testing.T) {
	engine := NewEngine(nil)
	match := descriptor("jackett", domain.QualityFullHD, 1<<30, "aaaa000000000000000000000000000000000001")
	match.Raw.Title = "Breaking.Bad.S01.1080p.BluRay"
	noise := descriptor("jackett", domain.QualityFullHD, 1<<30, "aaaa000000000000000000000000000000000002")
	noise.Raw.Title = "Totally.Unrelated.Movie.2019"

	relevant := engine.FilterRelevant([]domain.StreamDescriptor{match, noise}, "breaking bad")

	require.Len(t, relevant, 1)
	assert.Equal(t, "Breaking.Bad.S01.1080p.BluRay", relevant[0].Raw.Title)

	assert.Len(t, engine.FilterRelevant([]domain.StreamDescriptor{match, noise}, ""), 2)
}
