package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minTokenRunes = 2
	maxTokenRunes = 50
)

// tokenDelimiters are split points in addition to Unicode whitespace.
const tokenDelimiters = `-_,./\|&+()[]{}"'!?;:`

// stopWords are dropped after splitting. English only.
var stopWords = toSet(
	// articles
	"a", "an", "the",
	// prepositions
	"about", "above", "across", "after", "against", "along", "among", "around", "at",
	"before", "behind", "below", "beneath", "beside", "between", "beyond", "by",
	"down", "during", "for", "from", "in", "inside", "into", "near", "of", "off",
	"on", "onto", "out", "outside", "over", "per", "since", "through", "to", "toward",
	"towards", "under", "until", "up", "upon", "via", "with", "within", "without",
	// auxiliary verbs
	"am", "are", "be", "been", "being", "can", "could", "did", "do", "does", "had",
	"has", "have", "is", "may", "might", "must", "shall", "should", "was", "were",
	"will", "would",
	// conjunctions
	"and", "as", "because", "but", "if", "nor", "or", "so", "than", "that", "though",
	"whether", "while", "yet",
	// pronouns
	"he", "her", "hers", "him", "his", "i", "it", "its", "me", "mine", "my", "our",
	"ours", "she", "their", "theirs", "them", "these", "they", "this", "those", "us",
	"we", "what", "which", "who", "whom", "you", "your", "yours",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(tokenDelimiters, r)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// SplitFeatureWords turns a search term into its normalized feature words:
// lower-cased, split on whitespace and punctuation, with single-character,
// over-long, purely numeric and stop-word tokens removed. Apostrophes split
// too, so "kid's" yields [kid]. Order of first appearance is kept and a word
// appears at most once: a term that repeats a word counts toward it once.
//
//	SplitFeatureWords("sugar-free vitamin-c") // [sugar free vitamin]
func SplitFeatureWords(term string) []string {
	if strings.TrimSpace(term) == "" {
		return []string{}
	}
	// cases.Caser keeps internal state; one per call keeps this goroutine-safe.
	lowered := cases.Lower(language.Und).String(term)
	fields := strings.FieldsFunc(lowered, isDelimiter)

	words := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		n := utf8.RuneCountInString(f)
		if n < minTokenRunes || n > maxTokenRunes {
			continue
		}
		if isNumeric(f) {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}
