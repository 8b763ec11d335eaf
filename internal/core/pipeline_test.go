package core

import (
	"testing"
	"time"
)

type row struct {
	K   string
	V   any
	Idx int
}

var rowFields = map[string]Field[row]{
	"k": func(r row) any { return r.K },
	"v": func(r row) any { return r.V },
}

func TestSortRecordsStable(t *testing.T) {
	rows := []row{
		{K: "A", V: 1, Idx: 0},
		{K: "A", V: 1, Idx: 1},
	}
	sorted := SortRecords(rows, rowFields, SortSpec{Key: "k", Dir: Asc})

	if sorted[0].Idx != 0 || sorted[1].Idx != 1 {
		t.Fatalf("equal keys reordered: %v", sorted)
	}
}

func TestSortRecordsNumericCoercion(t *testing.T) {
	// Unit numbers stored as strings still compare as numbers.
	rows := []row{
		{K: "u", V: "10"},
		{K: "u", V: "9"},
		{K: "u", V: "101"},
	}
	sorted := SortRecords(rows, rowFields, SortSpec{Key: "v", Dir: Asc})

	want := []string{"9", "10", "101"}
	for i, w := range want {
		if sorted[i].V != w {
			t.Fatalf("position %d = %v, want %s", i, sorted[i].V, w)
		}
	}
}

func TestSortRecordsStringFallback(t *testing.T) {
	rows := []row{
		{V: "b-unit"},
		{V: "B-unit"},
		{V: "a-unit"},
	}
	sorted := SortRecords(rows, rowFields, SortSpec{Key: "v", Dir: Asc})

	// Case-sensitive byte order: uppercase before lowercase.
	want := []string{"B-unit", "a-unit", "b-unit"}
	for i, w := range want {
		if sorted[i].V != w {
			t.Fatalf("position %d = %v, want %s", i, sorted[i].V, w)
		}
	}
}

func TestSortRecordsDesc(t *testing.T) {
	rows := []row{{V: dec("5")}, {V: dec("20")}, {V: dec("1")}}
	sorted := SortRecords(rows, rowFields, SortSpec{Key: "v", Dir: Desc})

	want := []string{"20", "5", "1"}
	for i, w := range want {
		if stringify(sorted[i].V) != w {
			t.Fatalf("position %d = %v, want %s", i, sorted[i].V, w)
		}
	}
}

func TestSortRecordsMultiKey(t *testing.T) {
	rows := []row{
		{K: "b", V: 1, Idx: 0},
		{K: "a", V: 2, Idx: 1},
		{K: "a", V: 1, Idx: 2},
	}
	sorted := SortRecords(rows, rowFields, SortSpec{Key: "k", Dir: Asc}, SortSpec{Key: "v", Dir: Desc})

	if sorted[0].Idx != 1 || sorted[1].Idx != 2 || sorted[2].Idx != 0 {
		t.Fatalf("multi-key order wrong: %v", sorted)
	}
}

func TestSortRecordsDoesNotMutateInput(t *testing.T) {
	rows := []row{{V: 3}, {V: 1}, {V: 2}}
	_ = SortRecords(rows, rowFields, SortSpec{Key: "v", Dir: Asc})
	if rows[0].V != 3 {
		t.Fatalf("input reordered: %v", rows)
	}
}

func TestSortStateToggle(t *testing.T) {
	var s SortState

	s.Toggle("amount")
	if s.Key != "amount" || s.Dir != Asc {
		t.Fatalf("first click: %+v, want amount asc", s)
	}
	s.Toggle("amount")
	if s.Dir != Desc {
		t.Fatalf("second click: %+v, want desc", s)
	}
	s.Toggle("amount")
	if s.Dir != Asc {
		t.Fatalf("third click: %+v, want asc again", s)
	}
	s.Toggle("date")
	if s.Key != "date" || s.Dir != Asc {
		t.Fatalf("new column: %+v, want date asc", s)
	}
}

func TestApplyFiltersConjunction(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }
	type rec struct {
		Name string
		Date time.Time
		Cat  string
	}
	items := []rec{
		{"North Tower maintenance", day(1), "maintenance"},
		{"South Villa cleaning", day(10), "cleaning"},
		{"North Villa maintenance", day(20), "maintenance"},
	}

	text := TextSearch[rec]("north", func(r rec) any { return r.Name })
	dates := DateBetween(func(r rec) time.Time { return r.Date }, day(1), day(10))
	cat := Equals[rec](func(r rec) any { return r.Cat }, "maintenance")

	ab := ApplyFilters(items, text, dates, cat)
	ba := ApplyFilters(items, cat, dates, text)

	if len(ab) != 1 || ab[0].Name != "North Tower maintenance" {
		t.Fatalf("filtered = %v, want only North Tower", ab)
	}
	if len(ab) != len(ba) || ab[0] != ba[0] {
		t.Fatalf("predicate order changed the result: %v vs %v", ab, ba)
	}
}

func TestDateBetweenInclusiveBounds(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }
	pred := DateBetween(func(t time.Time) time.Time { return t }, day(5), day(10))

	cases := []struct {
		d    time.Time
		want bool
	}{
		{day(4), false},
		{day(5), true},
		{day(10), true},
		{day(11), false},
	}
	for i, tc := range cases {
		if got := pred(tc.d); got != tc.want {
			t.Fatalf("case %d: %v in range = %v, want %v", i, tc.d, got, tc.want)
		}
	}
}

func TestTextSearchEmptyQueryMatchesAll(t *testing.T) {
	pred := TextSearch[row]("", func(r row) any { return r.K })
	if !pred(row{K: "anything"}) {
		t.Fatal("empty query should match everything")
	}
}

func TestApplyFiltersEmptyResultNotNil(t *testing.T) {
	out := ApplyFilters([]row{{K: "x"}}, func(row) bool { return false })
	if out == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(out) != 0 {
		t.Fatalf("expected no matches, got %v", out)
	}
}
