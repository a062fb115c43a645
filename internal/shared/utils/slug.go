package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9-]+`)
	repeatedSepSeq = regexp.MustCompile(`_+`)
)

// letters NFD does not decompose into base + mark
var foldedLetters = strings.NewReplacer(
	"œ", "oe", "Œ", "OE",
	"æ", "ae", "Æ", "AE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
)

// GenerateSlug turns a title or file name into a lowercase ASCII token:
// "Le Cœur à l'Ouvrage" -> "le_coeur_a_l_ouvrage".
func GenerateSlug(input string) string {
	ascii := RemoveDiacritics(input)
	lower := strings.ToLower(ascii)

	cleaned := nonSlugChars.ReplaceAllString(lower, "_")
	normalized := repeatedSepSeq.ReplaceAllString(cleaned, "_")

	return strings.Trim(normalized, "_-")
}

// RemoveDiacritics strips accents: "Été" -> "Ete".
func RemoveDiacritics(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, foldedLetters.Replace(input))
	if err != nil {
		return input
	}
	return out
}
