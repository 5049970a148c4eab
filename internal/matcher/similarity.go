package matcher

// Similarity metrics on a 0-100 scale, rounded to whole points.

import (
	"math"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio is the sequence-matcher similarity of a and b on runes:
// 100 * 2*M / (len(a) + len(b)), where M counts the characters in matching
// blocks. Two empty strings are identical; one empty string scores 0.
func Ratio(a, b string) float64 {
	return math.Round(rawRatio(a, b))
}

func rawRatio(a, b string) float64 {
	ra, rb := runeSeq(a), runeSeq(b)
	if len(ra)+len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 100 * difflib.NewMatcher(ra, rb).Ratio()
}

// runeSeq splits s into one-rune strings, the element type difflib compares.
func runeSeq(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// PartialRatio aligns the shorter string with the longer one at every
// matching block and keeps the best ratio over those windows.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}

	short := string(ra)
	best := 0.0
	blocks := difflib.NewMatcher(runeSeq(short), runeSeq(string(rb))).GetMatchingBlocks()
	for _, blk := range blocks {
		start := blk.B - blk.A
		if start < 0 {
			start = 0
		}
		end := start + len(ra)
		if end > len(rb) {
			end = len(rb)
		}
		r := rawRatio(short, string(rb[start:end]))
		if r > 99.5 {
			return 100
		}
		if r = math.Round(r); r > best {
			best = r
		}
	}
	return best
}

// TokenSortRatio compares the words of a and b after sorting them, so word
// order does not matter.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(tokens(a)), sortedTokens(tokens(b)))
}

// TokenSetRatio compares the shared words of a and b with each side's
// shared-plus-remaining words and keeps the best of the three pairings.
func TokenSetRatio(a, b string) float64 {
	setA, setB := tokenSet(tokens(a)), tokenSet(tokens(b))

	var sect, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}

	base := sortedTokens(sect)
	combinedA := strings.TrimSpace(base + " " + sortedTokens(onlyA))
	combinedB := strings.TrimSpace(base + " " + sortedTokens(onlyB))

	if base == "" {
		return Ratio(combinedA, combinedB)
	}
	return math.Max(Ratio(base, combinedA), math.Max(Ratio(base, combinedB), Ratio(combinedA, combinedB)))
}

func sortedTokens(toks []string) string {
	out := append([]string(nil), toks...)
	sort.Strings(out)
	return strings.Join(out, " ")
}

func tokenSet(toks []string) map[string]bool {
	m := make(map[string]bool, len(toks))
	for _, t := range toks {
		m[t] = true
	}
	return m
}
