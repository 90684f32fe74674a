package lineitems

import (
	"fmt"
	"strings"
)

// Category is the storage category a parsed item is filed under.
// The zero value is Other, so an Item never carries an empty category.
type Category int

const (
	Other Category = iota
	Pantry
	Fridge
	Freezer
	Spices
)

var categoryNames = [...]string{
	Other:   "Other",
	Pantry:  "Pantry",
	Fridge:  "Fridge",
	Freezer: "Freezer",
	Spices:  "Spices",
}

// Categories returns every category, Other last.
func Categories() []Category {
	return []Category{Pantry, Fridge, Freezer, Spices, Other}
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a category name, ignoring case and surrounding space.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for i, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return Category(i), nil
		}
	}
	return Other, fmt.Errorf("unknown category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value decodes to Other.
func (c *Category) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*c = Other
		return nil
	}
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
