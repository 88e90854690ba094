package identifier

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// honorificPattern matches titles and suffixes that never form part of a surname.
var honorificPattern = regexp.MustCompile(`(?i)(^|[\s,])(dr|prof|ph\.?\s?d|md|jr|sr|ii|iii)\.?($|[\s,])`)

// foldDiacritics removes combining marks so "Müller" and "Muller" compare equal.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTitle lowercases a title, folds diacritics, strips punctuation and symbols,
// and collapses whitespace. It returns "" for titles made only of punctuation.
func NormalizeTitle(title string) string {
	title = foldDiacritics(strings.ToLower(title))

	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// stripHonorifics removes titles and suffixes (Dr, Prof, PhD, MD, Jr, Sr, II, III)
// matched as whole words. Matching is repeated because adjacent honorifics share
// their separator.
func stripHonorifics(name string) string {
	for {
		next := honorificPattern.ReplaceAllString(name, "$1$3")
		if next == name {
			return name
		}
		name = next
	}
}

// isInitial reports whether tok is a single-letter initial such as "J" or "J.",
// or a run of dotted initials such as "J.A.".
func isInitial(tok string) bool {
	parts := strings.FieldsFunc(tok, func(r rune) bool { return r == '.' || r == '-' })
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if len([]rune(p)) != 1 {
			return false
		}
	}
	return true
}

// Surname extracts the normalized last name from an author string.
//
// Honorifics are removed first. With a comma ("Doudna, Jennifer A.") the surname is the
// text before the first comma. Without one ("Jennifer A. Doudna", "J. Doudna") it is the
// last token that is not an initial, or the last token when every token is an initial.
// The result is lowercased, diacritic-folded and reduced to letters.
func Surname(author string) string {
	name := strings.TrimSpace(stripHonorifics(author))
	if name == "" {
		return ""
	}

	var candidate string
	parts := nonEmptyCommaParts(name)
	switch {
	case len(parts) >= 2:
		candidate = parts[0]
	case len(parts) == 1:
		tokens := strings.Fields(parts[0])
		candidate = tokens[len(tokens)-1]
		for i := len(tokens) - 1; i >= 0; i-- {
			if !isInitial(tokens[i]) {
				candidate = tokens[i]
				break
			}
		}
	default:
		return ""
	}

	candidate = foldDiacritics(strings.ToLower(candidate))
	var b strings.Builder
	for _, r := range candidate {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nonEmptyCommaParts(name string) []string {
	raw := strings.Split(name, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
