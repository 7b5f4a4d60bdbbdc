package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchedRanges_RecordPoint(t *testing.T) {
	tests := []struct {
		name      string
		positions []int
		expected  WatchedRanges
	}{
		{
			name:      "single point",
			positions: []int{5},
			expected:  WatchedRanges{{Start: 0, End: 10}},
		},
		{
			name:      "point on bucket boundary",
			positions: []int{10},
			expected:  WatchedRanges{{Start: 10, End: 20}},
		},
		{
			name:      "adjacent buckets coalesce",
			positions: []int{5, 15},
			expected:  WatchedRanges{{Start: 0, End: 20}},
		},
		{
			name:      "gap leaves two ranges",
			positions: []int{5, 35},
			expected:  WatchedRanges{{Start: 0, End: 10}, {Start: 30, End: 40}},
		},
		{
			name:      "gap filled in later",
			positions: []int{5, 25, 15},
			expected:  WatchedRanges{{Start: 0, End: 30}},
		},
		{
			name:      "out of order positions",
			positions: []int{45, 5, 25, 15, 35},
			expected:  WatchedRanges{{Start: 0, End: 50}},
		},
		{
			name:      "negative position clamps to zero",
			positions: []int{-3},
			expected:  WatchedRanges{{Start: 0, End: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wr WatchedRanges
			for _, p := range tt.positions {
				wr = wr.RecordPoint(p, WatchBucketSize)
			}
			assert.Equal(t, tt.expected, wr)
		})
	}
}

func TestWatchedRanges_RecordPoint_Idempotent(t *testing.T) {
	var wr WatchedRanges
	wr = wr.RecordPoint(42, WatchBucketSize)
	total := wr.Total()

	for i := 0; i < 5; i++ {
		wr = wr.RecordPoint(42, WatchBucketSize)
	}

	assert.Equal(t, total, wr.Total())
	assert.Len(t, wr, 1)
}

func TestWatchedRanges_Total(t *testing.T) {
	var wr WatchedRanges

	// Watch the first two minutes straight through at 10s heartbeats.
	for pos := 0; pos <= 110; pos += 10 {
		wr = wr.RecordPoint(pos, WatchBucketSize)
	}

	require.Len(t, wr, 1)
	assert.Equal(t, WatchedRange{Start: 0, End: 120}, wr[0])
	assert.Equal(t, 120, wr.Total())

	// Rewatching the middle changes nothing.
	wr = wr.RecordPoint(60, WatchBucketSize)
	assert.Equal(t, 120, wr.Total())
}

func TestWatchedRanges_Invariants(t *testing.T) {
	var wr WatchedRanges
	positions := []int{95, 12, 300, 7, 150, 305, 13, 88, 142}
	for _, p := range positions {
		wr = wr.RecordPoint(p, WatchBucketSize)
	}

	for i, r := range wr {
		assert.Less(t, r.Start, r.End, "range %d must be non-empty", i)
		if i > 0 {
			assert.Greater(t, r.Start, wr[i-1].End, "range %d must not touch its predecessor", i)
		}
	}
}

func TestWatchedRanges_ScanValue(t *testing.T) {
	wr := WatchedRanges{{Start: 0, End: 30}, {Start: 50, End: 60}}

	val, err := wr.Value()
	require.NoError(t, err)

	var decoded WatchedRanges
	require.NoError(t, decoded.Scan(val))
	assert.Equal(t, wr, decoded)

	var empty WatchedRanges
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)

	var bad WatchedRanges
	assert.Error(t, bad.Scan(42))
}
