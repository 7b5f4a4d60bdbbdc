package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// WatchBucketSize is the granularity, in seconds, at which watched moments
// are recorded. Progress ticks are quantized into fixed buckets of this size
// before being merged into the session's watched ranges.
const WatchBucketSize = 10

// WatchedRange is a half-open interval [Start, End) of watched video time,
// in seconds.
type WatchedRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Length returns the covered duration in seconds.
func (r WatchedRange) Length() int {
	return r.End - r.Start
}

// WatchedRanges is an ordered set of disjoint watched intervals. After every
// mutation the slice is sorted by Start and touching or overlapping ranges
// are coalesced, so Total never double-counts rewatched segments.
//
// It is stored as a jsonb column; JSON exists only at the storage boundary.
type WatchedRanges []WatchedRange

// RecordPoint marks the bucket containing position as watched and returns the
// normalized range set. Calling it again with the same position is a no-op
// with respect to Total.
func (wr WatchedRanges) RecordPoint(position, bucketSize int) WatchedRanges {
	if bucketSize <= 0 {
		bucketSize = WatchBucketSize
	}
	if position < 0 {
		position = 0
	}

	start := (position / bucketSize) * bucketSize
	end := start + bucketSize

	extended := false
	for i := range wr {
		if wr[i].Start <= start && start < wr[i].End {
			if end > wr[i].End {
				wr[i].End = end
			}
			extended = true
			break
		}
	}
	if !extended {
		wr = append(wr, WatchedRange{Start: start, End: end})
	}

	return wr.merge()
}

// merge sorts the ranges and coalesces any pair where the next range starts
// at or before the current one ends.
func (wr WatchedRanges) merge() WatchedRanges {
	if len(wr) < 2 {
		return wr
	}

	sort.Slice(wr, func(i, j int) bool { return wr[i].Start < wr[j].Start })

	merged := wr[:1]
	for _, r := range wr[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// Total returns the deduplicated watched duration in seconds.
func (wr WatchedRanges) Total() int {
	total := 0
	for _, r := range wr {
		total += r.Length()
	}
	return total
}

// Value implements driver.Valuer, serializing the ranges to JSON for the
// jsonb column.
func (wr WatchedRanges) Value() (driver.Value, error) {
	if wr == nil {
		wr = WatchedRanges{}
	}
	return json.Marshal(wr)
}

// Scan implements sql.Scanner.
func (wr *WatchedRanges) Scan(value interface{}) error {
	if value == nil {
		*wr = WatchedRanges{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for WatchedRanges: %T", value)
	}

	if len(data) == 0 {
		*wr = WatchedRanges{}
		return nil
	}
	return json.Unmarshal(data, wr)
}

func (WatchedRanges) GormDataType() string {
	return "jsonb"
}
