package selection_test

import (
	"errors"
	"slices"
	"testing"

	"dlpanel/internal/selection"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		episodes []int
		avail    *selection.Availability
		want     string
	}{
		{name: "empty degrades to all", episodes: nil, want: "ALL"},
		{name: "only non-positive", episodes: []int{0, -3}, want: "ALL"},
		{name: "single", episodes: []int{7}, want: "7"},
		{name: "run and single", episodes: []int{1, 2, 3, 5}, want: "1-3,5"},
		{name: "unsorted with duplicates", episodes: []int{5, 3, 1, 2, 3, 2}, want: "1-3,5"},
		{name: "two runs", episodes: []int{10, 11, 1, 2}, want: "1-2,10-11"},
		{
			name:     "matches available set",
			episodes: []int{1, 2, 3, 4},
			avail:    &selection.Availability{Max: 4, Episodes: []int{1, 2, 3, 4}},
			want:     "ALL",
		},
		{
			name:     "available set with gaps",
			episodes: []int{1, 2, 4},
			avail:    &selection.Availability{Max: 4, Episodes: []int{4, 2, 1}},
			want:     "ALL",
		},
		{
			name:     "subset of available",
			episodes: []int{1, 2},
			avail:    &selection.Availability{Max: 4, Episodes: []int{1, 2, 3, 4}},
			want:     "1-2",
		},
		{
			name:     "superset of available",
			episodes: []int{1, 2, 3, 4, 5},
			avail:    &selection.Availability{Max: 5, Episodes: []int{1, 2, 3, 4}},
			want:     "1-5",
		},
		{
			name:     "max without set skips all detection",
			episodes: []int{1, 2, 3, 4},
			avail:    &selection.Availability{Max: 4},
			want:     "1-4",
		},
		{
			name:     "set without max skips all detection",
			episodes: []int{1, 2, 3, 4},
			avail:    &selection.Availability{Episodes: []int{1, 2, 3, 4}},
			want:     "1-4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selection.Encode(tt.episodes, tt.avail); got != tt.want {
				t.Fatalf("Encode(%v) = %q, want %q", tt.episodes, got, tt.want)
			}
		})
	}
}

func TestEncodeRoundTripProperties(t *testing.T) {
	lists := [][]int{
		{1},
		{3, 1, 2},
		{1, 3, 5, 7},
		{2, 3, 4, 10, 12, 13},
		{100, 99, 98, 1},
	}
	for _, list := range lists {
		encoded := selection.Encode(list, nil)
		spec, err := selection.Parse(encoded)
		if err != nil {
			t.Fatalf("Parse(%q): %v", encoded, err)
		}
		for _, n := range list {
			if !slices.Contains(spec.Episodes, n) {
				t.Fatalf("decoded %q lost episode %d", encoded, n)
			}
		}
		if again := selection.Encode(spec.Episodes, nil); again != encoded {
			t.Fatalf("encode not idempotent: %q then %q", encoded, again)
		}
	}
}

func TestBuildRange(t *testing.T) {
	avail := []int{1, 2, 3, 4, 5, 6}
	if got := selection.BuildRange(5, 1, avail); !slices.Equal(got, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("reversed bounds: got %v", got)
	}
	if got := selection.BuildRange(1, 3, []int{2}); !slices.Equal(got, []int{2}) {
		t.Fatalf("unavailable bounds: got %v", got)
	}
	if got := selection.BuildRange(4, 4, avail); !slices.Equal(got, []int{4}) {
		t.Fatalf("singleton: got %v", got)
	}
	if got := selection.BuildRange(-5, 2, avail); !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("clamped lower bound: got %v", got)
	}
	if got := selection.BuildRange(1, 10, []int{9, 3, 3}); !slices.Equal(got, []int{3, 9}) {
		t.Fatalf("unsorted availability: got %v", got)
	}
	if got := selection.BuildRange(1, 10, nil); len(got) != 0 {
		t.Fatalf("no availability: got %v", got)
	}
}

func TestSimple(t *testing.T) {
	tests := []struct {
		all      bool
		from, to int
		want     string
	}{
		{all: true, from: 3, to: 9, want: "ALL"},
		{from: 4, to: 4, want: "4"},
		{from: 5, to: 2, want: "2-5"},
		{from: 0, to: 0, want: "1"},
		{from: -2, to: 3, want: "1-3"},
	}
	for _, tt := range tests {
		if got := selection.Simple(tt.all, tt.from, tt.to); got != tt.want {
			t.Fatalf("Simple(%v, %d, %d) = %q, want %q", tt.all, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	spec, err := selection.Parse(" 1-3, 5 ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.All || !slices.Equal(spec.Episodes, []int{1, 2, 3, 5}) {
		t.Fatalf("unexpected spec: %+v", spec)
	}

	all, err := selection.Parse("all")
	if err != nil || !all.All {
		t.Fatalf("expected ALL, got %+v err=%v", all, err)
	}
	if got := all.Expand(3); !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("Expand(3) = %v", got)
	}
	if got := spec.Expand(2); !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("Expand caps at max, got %v", got)
	}
	if spec.String() != "1-3,5" {
		t.Fatalf("String() = %q", spec.String())
	}

	for _, opaque := range []string{"S1E1-6", "ALLSEASONS", "", "1-", "3,,4", "0", "x"} {
		if _, err := selection.Parse(opaque); !errors.Is(err, selection.ErrOpaque) {
			t.Fatalf("Parse(%q): expected ErrOpaque, got %v", opaque, err)
		}
		if selection.IsCanonical(opaque) {
			t.Fatalf("IsCanonical(%q) should be false", opaque)
		}
	}
}
