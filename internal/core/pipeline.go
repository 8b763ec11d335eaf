package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Field extracts a sortable or searchable value from a record. Every table
// screen declares its columns as a map of these.
type Field[T any] func(T) any

// SortSpec pairs a column key with a direction. Multi-key sorts compare
// specs in order, falling through on ties.
type SortSpec struct {
	Key string
	Dir Direction
}

// SortState is the header-click state machine of a table: clicking the
// current column flips asc→desc→asc, clicking a new column resets to asc.
type SortState struct {
	Key string
	Dir Direction
}

// Toggle advances the state for a click on the given column.
func (s *SortState) Toggle(key string) {
	if s.Key == key && s.Dir == Asc {
		s.Dir = Desc
		return
	}
	s.Key = key
	s.Dir = Asc
}

// Spec returns the state as a SortSpec for SortRecords.
func (s SortState) Spec() SortSpec {
	dir := s.Dir
	if dir == "" {
		dir = Asc
	}
	return SortSpec{Key: s.Key, Dir: dir}
}

// SortRecords returns a sorted copy of items ordered by the given specs.
// Values that both coerce to numbers compare numerically; everything else
// compares as case-sensitive strings. The sort is stable: records with
// equal keys keep their original relative order. Specs naming unknown
// columns are ignored.
func SortRecords[T any](items []T, fields map[string]Field[T], specs ...SortSpec) []T {
	out := make([]T, len(items))
	copy(out, items)

	sort.SliceStable(out, func(i, j int) bool {
		for _, spec := range specs {
			field, ok := fields[spec.Key]
			if !ok {
				continue
			}
			c := compareValues(field(out[i]), field(out[j]))
			if c == 0 {
				continue
			}
			if spec.Dir == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

func compareValues(a, b any) int {
	na, aNum := coerceNumber(a)
	nb, bNum := coerceNumber(b)
	if aNum && bNum {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(stringify(a), stringify(b))
}

// coerceNumber turns amounts, areas and numeric unit numbers into a
// comparable float. Non-numeric values report false and fall back to
// string comparison.
func coerceNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		f, _ := x.Float64()
		return f, true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case time.Time:
		return float64(x.UnixNano()), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// Predicate is a single filter condition. Filters are independent and
// always combined conjunctively, so their order never changes the result
// set.
type Predicate[T any] func(T) bool

// ApplyFilters returns the records matching every predicate. The result is
// never nil; an empty match renders as an explicit empty state.
func ApplyFilters[T any](items []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(items))
next:
	for _, it := range items {
		for _, pred := range preds {
			if !pred(it) {
				continue next
			}
		}
		out = append(out, it)
	}
	return out
}

// TextSearch matches records whose listed fields contain the query as a
// case-insensitive substring. An empty query matches everything.
func TextSearch[T any](query string, fields ...Field[T]) Predicate[T] {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(it T) bool {
		if q == "" {
			return true
		}
		for _, field := range fields {
			if strings.Contains(strings.ToLower(stringify(field(it))), q) {
				return true
			}
		}
		return false
	}
}

// DateBetween matches records whose date falls inside the range, inclusive
// on both bounds. A zero bound leaves that side open.
func DateBetween[T any](field func(T) time.Time, from, to time.Time) Predicate[T] {
	return func(it T) bool {
		d := field(it)
		if !from.IsZero() && d.Before(from) {
			return false
		}
		if !to.IsZero() && d.After(to) {
			return false
		}
		return true
	}
}

// Equals matches records whose field renders exactly as want. Categorical
// filters use this; the match is exact, not fuzzy.
func Equals[T any](field Field[T], want string) Predicate[T] {
	return func(it T) bool {
		return stringify(field(it)) == want
	}
}
