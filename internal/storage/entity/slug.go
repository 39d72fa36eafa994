package entity

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSlug is used when a name has no usable character.
const DefaultSlug = "proje"

// Letters that lowercase but do not decompose into an ASCII base plus marks.
var foldReplacer = strings.NewReplacer(
	"ı", "i",
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ß", "ss",
	"đ", "d",
	"ł", "l",
)

var (
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
	nonFilename = regexp.MustCompile(`[^a-z0-9._-]`)
	dashRuns    = regexp.MustCompile(`-+`)
)

// Fold lowercases s and strips diacritics, including Turkish dotted and
// dotless i.
func Fold(s string) string {
	s = foldReplacer.Replace(strings.ToLower(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify turns a project name into an URL-safe id.
func Slugify(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(Fold(name), "-"), "-")
	if s == "" {
		return DefaultSlug
	}
	return s
}

// UniqueSlug returns base, or base-1, base-2... for the first value taken
// reports as free.
func UniqueSlug(base string, taken func(string) bool) string {
	id := base
	for n := 1; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

// SanitizeFilename folds name like Slugify but keeps dots, underscores and
// dashes. Leading dots are removed so the result never names a hidden file
// or a parent directory.
func SanitizeFilename(name string) string {
	s := nonFilename.ReplaceAllString(Fold(name), "-")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.TrimLeft(s, ".")
}
