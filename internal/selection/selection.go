package selection

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// All is the selection string meaning every available episode.
const All = "ALL"

// ErrOpaque reports a selection string outside the canonical grammar. Such
// strings are still valid to send to the service; they are just not decodable
// here.
var ErrOpaque = errors.New("selection outside canonical grammar")

// Availability describes what the service reported for a season.
type Availability struct {
	Max      int
	Episodes []int
}

// Spec is a decoded canonical selection.
type Spec struct {
	All      bool
	Episodes []int
}

// Encode renders episodes as a canonical selection string.
//
// An empty selection (after dropping non-positive values) degrades to "ALL".
// When avail carries both a positive Max and a non-empty episode set, a
// selection equal to that set also collapses to "ALL". With a Max but no
// episode set the comparison is skipped and the runs are encoded as-is.
func Encode(episodes []int, avail *Availability) string {
	sorted := normalize(episodes)
	if len(sorted) == 0 {
		return All
	}
	if avail != nil && avail.Max > 0 && len(avail.Episodes) > 0 && coversExactly(sorted, avail.Episodes) {
		return All
	}
	return encodeRuns(sorted)
}

// BuildRange returns the available episodes within [min(from,to), max(from,to)].
// Both bounds are clamped to 1. Unavailable numbers are skipped silently.
func BuildRange(from, to int, available []int) []int {
	start := max(1, min(from, to))
	end := max(1, max(from, to))

	out := make([]int, 0, len(available))
	for _, n := range available {
		if n >= start && n <= end {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Simple renders the basic "all or from/to" selector. Bounds are clamped to 1
// and may be given in either order.
func Simple(all bool, from, to int) string {
	if all {
		return All
	}
	a := max(1, from)
	b := max(1, to)
	if a == b {
		return strconv.Itoa(a)
	}
	return fmt.Sprintf("%d-%d", min(a, b), max(a, b))
}

// Parse decodes a canonical selection string.
func Parse(value string) (Spec, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Spec{}, fmt.Errorf("%w: empty", ErrOpaque)
	}
	if strings.EqualFold(trimmed, All) {
		return Spec{All: true}, nil
	}

	var episodes []int
	for _, token := range strings.Split(trimmed, ",") {
		token = strings.TrimSpace(token)
		lo, hi, err := parseToken(token)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %q", ErrOpaque, value)
		}
		for n := lo; n <= hi; n++ {
			episodes = append(episodes, n)
		}
	}
	return Spec{Episodes: normalize(episodes)}, nil
}

// IsCanonical reports whether value parses under the canonical grammar.
func IsCanonical(value string) bool {
	_, err := Parse(value)
	return err == nil
}

// Expand materializes the selection. ALL expands to 1..max; explicit lists are
// capped at max when max is positive.
func (s Spec) Expand(maxEpisode int) []int {
	if s.All {
		if maxEpisode <= 0 {
			return nil
		}
		out := make([]int, maxEpisode)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	if maxEpisode <= 0 {
		return slices.Clone(s.Episodes)
	}
	out := make([]int, 0, len(s.Episodes))
	for _, n := range s.Episodes {
		if n <= maxEpisode {
			out = append(out, n)
		}
	}
	return out
}

// String re-encodes the selection canonically.
func (s Spec) String() string {
	if s.All {
		return All
	}
	return Encode(s.Episodes, nil)
}

func parseToken(token string) (int, int, error) {
	if token == "" {
		return 0, 0, ErrOpaque
	}
	left, right, isRange := strings.Cut(token, "-")
	lo, err := parsePositive(left)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := parsePositive(right)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi, nil
}

func parsePositive(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrOpaque
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, ErrOpaque
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, ErrOpaque
	}
	return n, nil
}

func normalize(values []int) []int {
	out := make([]int, 0, len(values))
	for _, n := range values {
		if n > 0 {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// coversExactly reports whether the sorted selection and the available list
// describe the same set.
func coversExactly(sorted []int, available []int) bool {
	selected := make(map[int]struct{}, len(sorted))
	for _, n := range sorted {
		selected[n] = struct{}{}
	}
	avail := make(map[int]struct{}, len(available))
	for _, n := range available {
		if _, ok := selected[n]; !ok {
			return false
		}
		avail[n] = struct{}{}
	}
	for _, n := range sorted {
		if _, ok := avail[n]; !ok {
			return false
		}
	}
	return true
}

func encodeRuns(sorted []int) string {
	var b strings.Builder
	for i := 0; i < len(sorted); i++ {
		start := sorted[i]
		end := start
		for i+1 < len(sorted) && sorted[i+1] == end+1 {
			i++
			end = sorted[i]
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(start))
		if end != start {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(end))
		}
	}
	return b.String()
}
