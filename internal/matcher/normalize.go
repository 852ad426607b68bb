// Package matcher maps free-form image filenames to catalog entries.
//
// Everything here is a pure function of its inputs. Malformed input never
// panics; the worst case is a zero score.
package matcher

import (
	"regexp"
	"strings"
)

// NormalizeText lowercases s, turns every character outside [a-z0-9] into a
// space, collapses whitespace runs and trims the ends. It is idempotent.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var (
	extPattern         = regexp.MustCompile(`\.[^/.]+$`)
	editSuffixPattern  = regexp.MustCompile(`(?i)[-_](copy|final|v\d+|edited|new|old)$`)
	trailingDate       = regexp.MustCompile(`[-_]?\d{4}[-_]?\d{2}[-_]?\d{2}$`)
	prefixPattern      = regexp.MustCompile(`(?i)^(img|image|photo|pic|picture|small|large|thumb|thumbnail)[-_ ]`)
	counterPattern     = regexp.MustCompile(`[-_ ]?\(\d+\)$`)
	numericSuffixRegex = regexp.MustCompile(`[-_]\d+$`)
)

// ExtractCandidateName strips the extension and the usual camera, export and
// duplicate-file decorations from filename, leaving the part most likely to
// name a catalog entry.
//
//	IMG_2023-04-05_The Edit (2).jpg -> 2023-04-05_The Edit
//	marina-tower-final.png          -> marina-tower
func ExtractCandidateName(filename string) string {
	name := extPattern.ReplaceAllString(filename, "")
	name = editSuffixPattern.ReplaceAllString(name, "")
	name = trailingDate.ReplaceAllString(name, "")
	name = prefixPattern.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = counterPattern.ReplaceAllString(name, "")
	name = numericSuffixRegex.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
