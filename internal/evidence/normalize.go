package evidence

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// corporate suffixes dropped during registry-name normalization. Matched
// after punctuation has been converted to spaces, so bare forms suffice.
var nameSuffixes = []string{
	"inc", "incorporated", "llc", "corp", "co",
	"association", "assn", "hoa",
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeAssociationName canonicalizes an association name for registry
// matching: diacritics folded, punctuation dropped, corporate suffixes
// stripped, whitespace collapsed, lowercased.
func NormalizeAssociationName(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '&':
			b.WriteString(" and ")
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 0 && isSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isSuffix(word string) bool {
	for _, s := range nameSuffixes {
		if word == s {
			return true
		}
	}
	return false
}
