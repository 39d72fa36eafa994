package entity

import (
	"fmt"
	"strings"
)

// Category classifies a project.
type Category string

// Categories, in display order.
const (
	Residential Category = "Residential"
	Commercial  Category = "Commercial"
	Interior    Category = "Interior"
	Urban       Category = "Urban"
)

// Categories lists every valid category in display order.
var Categories = []Category{Residential, Commercial, Interior, Urban}

// categoryAliases maps accepted spellings, folded, to a category. The Turkish
// labels come from the studio's first data files.
var categoryAliases = map[string]Category{
	"residential": Residential,
	"commercial":  Commercial,
	"interior":    Interior,
	"urban":       Urban,
	"konut":       Residential,
	"ticari":      Commercial,
	"ic mekan":    Interior,
	"kentsel":     Urban,
}

// ParseCategory returns the category named s, case-insensitively, accepting
// the legacy Turkish labels.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[Fold(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	switch c {
	case Residential, Commercial, Interior, Urban:
		return true
	}
	return false
}

// UnmarshalText normalizes aliases. Unknown values are kept verbatim so that
// Validate can report them together with other problems.
func (c *Category) UnmarshalText(b []byte) error {
	if v, err := ParseCategory(string(b)); err == nil {
		*c = v
		return nil
	}
	*c = Category(b)
	return nil
}
