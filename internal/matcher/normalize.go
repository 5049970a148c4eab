package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	namePrefixes = []string{"tbl", "col", "fld", "field"}
	nameSuffixes = []string{"id", "key", "code", "num", "no"}
)

// foldAccents strips combining marks so "Teléfono" compares equal to
// "Telefono".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize reduces a column name to its comparable core: lowercase, accents
// folded, only [a-z0-9] kept, then the first known prefix and the first
// known suffix removed when something is left afterwards.
//
//	Normalize("tbl_Cliente_ID") == "cliente"
//	Normalize("Teléfono")       == "telefono"
func Normalize(name string) string {
	s := foldAccents(strings.ToLower(strings.TrimSpace(name)))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s = b.String()

	for _, p := range namePrefixes {
		if strings.HasPrefix(s, p) && len(s) > len(p) {
			s = s[len(p):]
			break
		}
	}
	for _, suf := range nameSuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			s = s[:len(s)-len(suf)]
			break
		}
	}
	return s
}

// tokens splits s into lowercase alphanumeric words. Underscores and any
// other punctuation separate words.
func tokens(s string) []string {
	s = foldAccents(strings.ToLower(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
