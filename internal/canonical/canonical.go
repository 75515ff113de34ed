// Package canonical normalizes free-text fields into comparable keys.
package canonical

import (
	"strings"
	"unicode"

	"github.com/sha1n/dupefinder/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Latin letters that carry no combining mark under NFD and need an
// explicit ASCII spelling.
var foldings = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o",
	"ł", "l", "Ł", "l",
	"đ", "d", "Đ", "d",
	"þ", "th", "Þ", "th",
	"ı", "i",
)

// Canonicalize transliterates text to plain ASCII on a best-effort basis,
// lower-cases it and drops every character that is not an ASCII letter
// or digit. The result is used as an index bucket key.
func Canonicalize(text string) string {
	if text == "" {
		return ""
	}

	stripped := transliterate(text)
	var sb strings.Builder
	sb.Grow(len(stripped))
	for _, r := range stripped {
		if isKeyRune(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Fold is Canonicalize for free-text search: it keeps word boundaries,
// turning every run of other characters into a single space.
func Fold(text string) string {
	return strings.Join(strings.FieldsFunc(transliterate(text), func(r rune) bool {
		return !isKeyRune(r)
	}), " ")
}

func transliterate(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, foldings.Replace(text))
	if err != nil {
		stripped = text
	}
	return strings.ToLower(stripped)
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// AddressKey canonicalizes the concatenation of street, city, postal code
// and country. Fields are joined without a separator, so two addresses that
// only differ in where the field boundaries fall share a key.
func AddressKey(a domain.Address) string {
	return Canonicalize(a.Street + a.City + a.ZipCode + a.Country)
}
