package matcher

import (
	"sort"
	"strings"

	"github.com/AnyUserName/bulkimg/internal/catalog"
)

// DefaultMinScore is the lowest score FindBestMatch accepts.
const DefaultMinScore = 0.3

// searchFloor is the score a search hit must exceed to be listed.
const searchFloor = 0.2

// Match is the outcome of matching one filename against the catalog.
// A nil Entry means the file is unmapped; Score is then 0.
type Match struct {
	Entry     *catalog.Entry
	Score     float64
	Candidate string // name extracted from the filename
}

// Matched reports whether the match carries an entry.
func (m Match) Matched() bool { return m.Entry != nil && m.Score > 0 }

// FindBestMatch scores filename against every entry and returns the entry
// with the strictly highest score. Ties go to the earlier entry. A best score
// below minScore yields an empty Match.
func FindBestMatch(filename string, entries []catalog.Entry, minScore float64) Match {
	candidate := ExtractCandidateName(filename)

	best := -1
	var bestScore float64
	for i := range entries {
		score := Similarity(candidate, entries[i].DisplayName)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 || bestScore < minScore {
		return Match{Candidate: candidate}
	}
	entry := entries[best]
	return Match{Entry: &entry, Score: bestScore, Candidate: candidate}
}

// SearchCatalog returns up to limit entries ranked by similarity to query.
// A blank query returns the first limit entries in catalog order.
func SearchCatalog(query string, entries []catalog.Entry, limit int) []catalog.Entry {
	if limit <= 0 {
		return nil
	}
	if strings.TrimSpace(query) == "" {
		n := min(limit, len(entries))
		out := make([]catalog.Entry, n)
		copy(out, entries[:n])
		return out
	}

	type scored struct {
		entry catalog.Entry
		score float64
	}
	var hits []scored
	for _, e := range entries {
		if s := Similarity(query, e.DisplayName); s > searchFloor {
			hits = append(hits, scored{e, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]catalog.Entry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out
}
