package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Bucket is one {key, total} pair of a grouped series. Count carries the
// number of records behind the total so the same series feeds both sum and
// count charts.
type Bucket struct {
	Key   string          `json:"key"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// GroupSum groups records by key and sums the extracted value per distinct
// key. Buckets come back in the order keys are first encountered; callers
// re-sort explicitly when they want chronological or ranked output. Empty
// input yields an empty, non-nil slice.
func GroupSum[T any](items []T, key func(T) string, value func(T) decimal.Decimal) []Bucket {
	buckets := make([]Bucket, 0, len(items))
	index := make(map[string]int, len(items))

	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, Bucket{Key: k})
		}
		buckets[i].Total = buckets[i].Total.Add(value(it))
		buckets[i].Count++
	}
	return buckets
}

// GroupCount groups records by key and counts them. Totals carry the count
// as a decimal so chart consumers read one shape for both series kinds.
func GroupCount[T any](items []T, key func(T) string) []Bucket {
	buckets := GroupSum(items, key, func(T) decimal.Decimal { return decimal.NewFromInt(1) })
	for i := range buckets {
		buckets[i].Total = decimal.NewFromInt(int64(buckets[i].Count))
	}
	return buckets
}

// MonthKey buckets a date into its "YYYY-MM" month. Lexicographic order of
// these keys is chronological order, which SortBucketsByKey relies on.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// SortBucketsByKey orders buckets by key ascending. Used for date-bucket
// series where the key format sorts chronologically.
func SortBucketsByKey(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Key < buckets[j].Key
	})
}

// SortBucketsByTotalDesc orders buckets by total descending, for rankings
// and top-N cards. The sort is stable so equal totals keep encounter order.
func SortBucketsByTotalDesc(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Total.GreaterThan(buckets[j].Total)
	})
}

// TopBuckets returns the first n buckets after ranking by total. The input
// slice is not modified.
func TopBuckets(buckets []Bucket, n int) []Bucket {
	ranked := make([]Bucket, len(buckets))
	copy(ranked, buckets)
	SortBucketsByTotalDesc(ranked)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
