// Package search folds text for case- and accent-insensitive filters and
// ranks profile memory entries against an incoming message.
//
// Ranking uses Jaccard similarity over folded word sets:
// score = |Q ∩ E| / |Q ∪ E|. Ties go to the entry with fewer words, then to
// the more recent one (higher position). A Ranker is immutable once built
// and safe for concurrent use.
package search

import (
	"sort"
	"strings"
	"unicode"
)

// Match is a ranked memory entry. Position is its index in the slice the
// Ranker was built from.
type Match struct {
	Entry    string
	Position int
	Score    float64
}

type entry struct {
	text  string
	pos   int
	words map[string]struct{}
}

// Ranker scores a fixed set of memory entries.
type Ranker struct {
	stop    map[string]struct{}
	entries []entry
}

// NewRanker indexes entries. Words in stopwords are ignored on both sides;
// entries left without words are skipped.
func NewRanker(entries []string, stopwords []string) *Ranker {
	r := &Ranker{stop: foldSet(stopwords)}
	r.entries = make([]entry, 0, len(entries))
	for pos, e := range entries {
		w := r.words(e)
		if len(w) == 0 {
			continue
		}
		r.entries = append(r.entries, entry{text: strings.Join(strings.Fields(e), " "), pos: pos, words: w})
	}
	return r
}

// Len is the number of ranked entries.
func (r *Ranker) Len() int { return len(r.entries) }

// Rank returns up to k entries sharing at least one word with query, best
// first. It returns nil when nothing overlaps.
func (r *Ranker) Rank(query string, k int) []Match {
	if k <= 0 || len(r.entries) == 0 {
		return nil
	}
	q := r.words(query)
	if len(q) == 0 {
		return nil
	}

	var out []Match
	for _, e := range r.entries {
		inter := intersect(q, e.words)
		if inter == 0 {
			continue
		}
		out = append(out, Match{
			Entry:    e.text,
			Position: e.pos,
			Score:    float64(inter) / float64(len(q)+len(e.words)-inter),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if la, lb := len(r.entryAt(a.Position).words), len(r.entryAt(b.Position).words); la != lb {
			return la < lb
		}
		return a.Position > b.Position
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func (r *Ranker) entryAt(pos int) entry {
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].pos >= pos })
	return r.entries[i]
}

func (r *Ranker) words(s string) map[string]struct{} {
	fields := strings.FieldsFunc(Fold(s), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, skip := r.stop[f]; !skip {
			out[f] = struct{}{}
		}
	}
	return out
}

func foldSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = Fold(strings.TrimSpace(w)); w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}

func intersect(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
