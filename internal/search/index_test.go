package search

import (
	"reflect"
	"sync"
	"testing"
)

func positions(ms []Match) []int {
	var out []int
	for _, m := range ms {
		out = append(out, m.Position)
	}
	return out
}

func TestNewRanker_SkipsWordlessEntries(t *testing.T) {
	r := NewRanker([]string{"", "le la les", "  aime \t le\npython  ", "!!!"}, FrenchStopwords)
	if r.Len() != 1 {
		t.Fatalf("Len = %d; want 1", r.Len())
	}
	got := r.Rank("python", 5)
	if len(got) != 1 || got[0].Position != 2 || got[0].Entry != "aime le python" {
		t.Fatalf("Rank = %#v", got)
	}
}

func TestRank_Jaccard(t *testing.T) {
	r := NewRanker([]string{
		"Débutant en Python",
		"aime la cuisine italienne",
		"veut progresser en python et en go",
	}, FrenchStopwords)

	got := r.Rank("python debutant", 3)
	if !reflect.DeepEqual(positions(got), []int{0, 2}) {
		t.Fatalf("order = %v", positions(got))
	}
	if got[0].Score != 1 {
		t.Fatalf("accent-folded exact match score = %v", got[0].Score)
	}
	// {python} over {python, debutant, veut, progresser, go}
	if got[1].Score != 0.2 {
		t.Fatalf("partial score = %v", got[1].Score)
	}
}

func TestRank_TieBreaks(t *testing.T) {
	r := NewRanker([]string{"go rust zig", "go java", "go c#"}, nil)
	// equal scores and word counts go to the most recent entry
	if got := positions(r.Rank("go", 3)); !reflect.DeepEqual(got, []int{2, 1, 0}) {
		t.Fatalf("order = %v", got)
	}

	r = NewRanker([]string{"go", "go java"}, nil)
	if got := positions(r.Rank("go java", 2)); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Fatalf("order = %v", got)
	}
}

func TestRank_EdgeCases(t *testing.T) {
	if got := NewRanker(nil, nil).Rank("x", 3); got != nil {
		t.Fatalf("empty ranker = %#v", got)
	}
	r := NewRanker([]string{"alpha beta", "beta gamma", "delta"}, nil)
	cases := map[string]struct {
		q string
		k int
	}{
		"blank query":    {"   ", 3},
		"wordless query": {"!!!", 3},
		"no overlap":     {"omega", 3},
		"zero k":         {"beta", 0},
	}
	for name, tc := range cases {
		if got := r.Rank(tc.q, tc.k); got != nil {
			t.Errorf("%s: %#v", name, got)
		}
	}
	if got := r.Rank("beta", 1); len(got) != 1 || got[0].Position != 1 {
		t.Fatalf("k caps results: %#v", got)
	}
}

func TestRank_ConcurrentReads(t *testing.T) {
	r := NewRanker([]string{"un", "deux trois", "quatre cinq six"}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Rank("deux", 1); len(got) != 1 {
				t.Errorf("unexpected result: %#v", got)
			}
		}()
	}
	wg.Wait()
}
