package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// minSignificantRunes is the shortest token that counts as a query term on
// its own. Shorter tokens only count when the synonym table knows them.
const minSignificantRunes = 4

var (
	blankLineRun = regexp.MustCompile(`\n\s*\n+`)
	spaceRun     = regexp.MustCompile(`[ \t]+`)
)

var stopwords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "l": {}, "un": {}, "une": {}, "des": {}, "de": {}, "du": {}, "d": {},
	"et": {}, "ou": {}, "mais": {}, "donc": {}, "car": {}, "ni": {}, "or": {},
	"à": {}, "au": {}, "aux": {}, "en": {}, "dans": {}, "par": {}, "pour": {}, "sur": {}, "avec": {},
	"sans": {}, "sous": {}, "chez": {}, "vers": {}, "entre": {},
	"je": {}, "tu": {}, "il": {}, "elle": {}, "on": {}, "nous": {}, "vous": {}, "ils": {}, "elles": {},
	"me": {}, "te": {}, "se": {}, "s": {}, "c": {}, "j": {}, "m": {}, "n": {}, "t": {}, "qu": {},
	"ce": {}, "cet": {}, "cette": {}, "ces": {}, "mon": {}, "ma": {}, "mes": {}, "votre": {}, "vos": {},
	"notre": {}, "nos": {}, "leur": {}, "leurs": {}, "son": {}, "sa": {}, "ses": {},
	"que": {}, "qui": {}, "quoi": {}, "dont": {}, "quel": {}, "quels": {}, "quelle": {}, "quelles": {},
	"est": {}, "sont": {}, "être": {}, "été": {}, "suis": {}, "avoir": {}, "avez": {}, "avons": {},
	"ont": {}, "faire": {}, "fait": {}, "peut": {}, "peux": {}, "pouvez": {}, "comment": {},
	"pourquoi": {}, "quand": {}, "combien": {}, "y": {}, "a": {}, "ne": {}, "pas": {},
	"plus": {}, "très": {}, "tout": {}, "tous": {}, "toutes": {}, "toute": {}, "aussi": {},
	"bonjour": {}, "merci": {}, "svp": {}, "stp": {}, "plait": {}, "plaît": {},
	"the": {}, "and": {}, "what": {}, "where": {}, "how": {}, "is": {}, "are": {}, "of": {}, "to": {},
}

// normalize returns s in NFC form, lower-cased with French casing rules.
func normalize(s string) string {
	return cases.Lower(language.French).String(norm.NFC.String(s))
}

// tokenize splits normalized text on anything that is not a letter or digit.
// Apostrophes and hyphens separate tokens: "l'IMT" yields "l", "imt".
func tokenize(s string) []string {
	return strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// stem strips a trailing plural mark from longer tokens so that
// "formations" and "formation" compare equal.
func stem(token string) string {
	r := []rune(token)
	if len(r) <= 4 {
		return token
	}
	switch r[len(r)-1] {
	case 's', 'x':
		return string(r[:len(r)-1])
	}
	return token
}

// cleanText collapses runs of blank lines into a single paragraph break and
// runs of spaces into one space.
func cleanText(text string) string {
	text = norm.NFC.String(strings.ReplaceAll(text, "\r\n", "\n"))
	text = blankLineRun.ReplaceAllString(text, "\n\n")
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// containsRun reports whether needle occurs as a run of consecutive tokens
// in hay, comparing tokens with match.
func containsRun(hay, needle []string, match func(tok, want string) bool) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		ok := true
		for j, want := range needle {
			if !match(hay[i+j], want) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func prefixMatch(tok, want string) bool {
	return strings.HasPrefix(tok, want)
}

func stemMatch(tok, want string) bool {
	return tok == want || stem(tok) == stem(want)
}
