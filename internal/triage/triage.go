// Package triage classifies scheduled items by urgency and orders them for
// display. All functions are pure; callers pass accessors for the timestamp and
// label so any item type can be triaged.
package triage

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// DefaultSoonWindow bounds the "soon" bucket.
const DefaultSoonWindow = 24 * time.Hour

// Buckets holds the result of Partition. Each slice is sorted ascending by
// timestamp; Later keeps unparseable items after parseable ones.
type Buckets[T any] struct {
	Due   []T
	Soon  []T
	Later []T
}

// Criterion selects the secondary ordering used by SortForDisplay.
type Criterion string

const (
	ByNextCheck Criterion = "next_check"
	ByLabel     Criterion = "label"
)

// ParseCriterion maps user input to a Criterion.
func ParseCriterion(value string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "next", "next_check", "nextcheck":
		return ByNextCheck, nil
	case "label", "name":
		return ByLabel, nil
	default:
		return "", fmt.Errorf("unknown sort %q (expected next_check or label)", value)
	}
}

// ParseTimestamp parses an RFC3339 timestamp. Blank or malformed input reports
// false.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// IsDue reports whether ts parses and is not after now.
func IsDue(ts string, now time.Time) bool {
	t, ok := ParseTimestamp(ts)
	return ok && !t.After(now)
}

// Partition splits items into due, soon (within DefaultSoonWindow), and later.
func Partition[T any](items []T, at func(T) string, now time.Time) Buckets[T] {
	return PartitionWithin(items, at, now, DefaultSoonWindow)
}

// PartitionWithin is Partition with an explicit soon window. Items whose
// timestamp does not parse always land in Later.
func PartitionWithin[T any](items []T, at func(T) string, now time.Time, window time.Duration) Buckets[T] {
	horizon := now.Add(window)
	var out Buckets[T]
	for _, item := range items {
		t, ok := ParseTimestamp(at(item))
		switch {
		case !ok:
			out.Later = append(out.Later, item)
		case !t.After(now):
			out.Due = append(out.Due, item)
		case !t.After(horizon):
			out.Soon = append(out.Soon, item)
		default:
			out.Later = append(out.Later, item)
		}
	}
	sortByTimestamp(out.Due, at)
	sortByTimestamp(out.Soon, at)
	sortByTimestamp(out.Later, at)
	return out
}

// SortForDisplay returns a copy of items with due items first, then ordered by
// the chosen criterion. Ties keep their input order.
func SortForDisplay[T any](items []T, at func(T) string, label func(T) string, by Criterion, now time.Time) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		aDue, bDue := IsDue(at(a), now), IsDue(at(b), now)
		if aDue != bDue {
			if aDue {
				return -1
			}
			return 1
		}
		if by == ByLabel {
			return strings.Compare(label(a), label(b))
		}
		return compareTimestamps(at(a), at(b))
	})
	return out
}

// DayGroup collects entries that fall on the same local calendar date.
type DayGroup[T any] struct {
	Key     string
	Date    time.Time
	Entries []T
}

// GroupByCalendarDay groups entries by the calendar date of their epoch-second
// timestamp in loc (time.Local when nil). Groups are ascending by date and
// entries ascending by local time of day.
func GroupByCalendarDay[T any](entries []T, epoch func(T) int64, loc *time.Location) []DayGroup[T] {
	if loc == nil {
		loc = time.Local
	}
	index := make(map[string]int)
	var groups []DayGroup[T]
	for _, entry := range entries {
		local := time.Unix(epoch(entry), 0).In(loc)
		key := local.Format(time.DateOnly)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			y, m, d := local.Date()
			groups = append(groups, DayGroup[T]{Key: key, Date: time.Date(y, m, d, 0, 0, 0, 0, loc)})
		}
		groups[pos].Entries = append(groups[pos].Entries, entry)
	}

	slices.SortFunc(groups, func(a, b DayGroup[T]) int { return strings.Compare(a.Key, b.Key) })
	for i := range groups {
		slices.SortStableFunc(groups[i].Entries, func(a, b T) int {
			return cmp.Compare(secondsIntoDay(epoch(a), loc), secondsIntoDay(epoch(b), loc))
		})
	}
	return groups
}

// RelativeLabel renders the signed distance from now to t. The unit is chosen
// from the raw minute count (minutes under 60, hours under 48h, else days) and
// the value is then rounded to the nearest unit.
func RelativeLabel(t, now time.Time) string {
	diff := t.Sub(now)
	sign := "+"
	if diff < 0 {
		sign = "-"
		diff = -diff
	}
	minutes := diff.Minutes()
	switch {
	case minutes < 60:
		return fmt.Sprintf("%s%d min", sign, int64(math.Round(minutes)))
	case minutes < 48*60:
		return fmt.Sprintf("%s%d h", sign, int64(math.Round(minutes/60)))
	default:
		return fmt.Sprintf("%s%d d", sign, int64(math.Round(minutes/(24*60))))
	}
}

func sortByTimestamp[T any](items []T, at func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int { return compareTimestamps(at(a), at(b)) })
}

// compareTimestamps orders parseable timestamps ascending and places
// unparseable ones after them.
func compareTimestamps(a, b string) int {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}

func secondsIntoDay(epoch int64, loc *time.Location) int {
	local := time.Unix(epoch, 0).In(loc)
	return local.Hour()*3600 + local.Minute()*60 + local.Second()
}
