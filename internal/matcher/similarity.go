package matcher

import (
	"strings"
)

// Similarity scores how alike a and b are, in [0,1], after normalizing both.
//
// Scoring tiers, highest first: identical text (1.0), containment
// (0.8..1.0), word overlap (up to 1.0 when every word of the shorter text is
// present, else capped at 0.7) and finally edit distance (capped at 0.5).
func Similarity(a, b string) float64 {
	s1 := NormalizeText(a)
	s2 := NormalizeText(b)

	if s1 == s2 {
		return 1
	}
	if s1 == "" || s2 == "" {
		return 0
	}

	shorter, longer := order(s1, s2)

	if strings.Contains(longer, shorter) {
		return 0.8 + 0.2*(float64(len(shorter))/float64(len(longer)))
	}

	if score, ok := wordOverlap(shorter, longer); ok {
		return score
	}

	maxLen := len(longer)
	dist := levenshtein(s1, s2)
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score * 0.5
}

// order returns the two strings as (shorter, longer). Equal lengths are
// ordered lexically so the result does not depend on argument order.
func order(s1, s2 string) (string, string) {
	if len(s1) < len(s2) || (len(s1) == len(s2) && s1 < s2) {
		return s1, s2
	}
	return s2, s1
}

func wordOverlap(shorter, longer string) (float64, bool) {
	shortWords := words(shorter)
	longWords := words(longer)
	if len(shortWords) == 0 || len(longWords) == 0 {
		return 0, false
	}

	longSet := make(map[string]bool, len(longWords))
	for _, w := range longWords {
		longSet[w] = true
	}

	var exact, partial int
	for _, w := range shortWords {
		if longSet[w] {
			exact++
			continue
		}
		for _, lw := range longWords {
			if strings.Contains(lw, w) || strings.Contains(w, lw) {
				partial++
				break
			}
		}
	}

	switch {
	case exact == len(shortWords):
		return 0.85 + 0.15*(float64(exact)/float64(len(longWords))), true
	case exact+partial > 0:
		return min(0.7, (float64(exact)+0.5*float64(partial))/float64(len(shortWords))), true
	}
	return 0, false
}

// words splits normalized text into its distinct words longer than one
// character, keeping first-seen order.
func words(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// levenshtein is the classic edit-distance DP over bytes. Inputs are
// normalized ASCII, so bytes and characters coincide.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
