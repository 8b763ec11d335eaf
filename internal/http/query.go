package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"aqar/internal/core"
)

// parseDateParam reads an inclusive range bound. Missing or malformed
// values come back as the zero time, which leaves that bound open.
func parseDateParam(q url.Values, name string) time.Time {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseSortSpecs reads "sort" as a comma-separated key list and "dir" as
// the direction applied to all of them. Anything but "desc" sorts
// ascending; unknown keys are ignored downstream.
func parseSortSpecs(q url.Values) []core.SortSpec {
	keys := strings.TrimSpace(q.Get("sort"))
	if keys == "" {
		return nil
	}

	dir := core.Asc
	if strings.EqualFold(strings.TrimSpace(q.Get("dir")), string(core.Desc)) {
		dir = core.Desc
	}

	var specs []core.SortSpec
	for _, key := range strings.Split(keys, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		specs = append(specs, core.SortSpec{Key: key, Dir: dir})
	}
	return specs
}

// parseFloatParam reads a float query parameter, falling back on absent or
// malformed input.
func parseFloatParam(q url.Values, name string, fallback float64) float64 {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// parseYearParam reads a year, defaulting to the current one.
func parseYearParam(q url.Values, now time.Time) int {
	v := strings.TrimSpace(q.Get("year"))
	if v == "" {
		return now.Year()
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 3000 {
		return now.Year()
	}
	return y
}
