// Package lineitems turns raw receipt text into product line items.
//
// Parsing is a single stateless pass: the text is split into lines, boilerplate
// lines are dropped by the noise rules, a price and a quantity are cut out of each
// surviving line, what is left becomes the name, and the name is filed under a
// storage category by keyword. All patterns and keywords come from a Rules table.
package lineitems

import (
	"regexp"
	"strings"
)

var (
	reLineBreak  = regexp.MustCompile(`\r\n|\r|\n`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reNameStrip  = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
)

// Item is one product extracted from a receipt line.
type Item struct {
	Name     string   `json:"name"`
	Quantity string   `json:"quantity"`
	Price    string   `json:"price,omitempty"`
	Category Category `json:"category"`
	Line     int      `json:"line"`
}

// Line is a trimmed, non-blank receipt line with its 1-based position in the text.
type Line struct {
	Number int
	Text   string
}

// Parser runs a Rules table over receipt text. It holds no mutable state and is
// safe for concurrent use.
type Parser struct {
	rules *Rules
}

// NewParser creates a Parser. A nil rules table uses DefaultRules.
func NewParser(rules *Rules) *Parser {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Parser{rules: rules}
}

var defaultParser = NewParser(nil)

// Parse runs the built-in rules over text.
func Parse(text string) []Item {
	return defaultParser.Parse(text)
}

// Segment splits text into trimmed lines, dropping blank ones.
func Segment(text string) []Line {
	var lines []Line
	for i, raw := range reLineBreak.Split(text, -1) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lines = append(lines, Line{Number: i + 1, Text: trimmed})
	}
	return lines
}

// Parse returns the items found in text in receipt line order. It never fails:
// lines that are noise or that leave no usable name are skipped.
func (p *Parser) Parse(text string) []Item {
	items := make([]Item, 0)
	for _, line := range Segment(text) {
		if p.IsNoise(line.Text) {
			continue
		}
		item, ok := p.Extract(line.Text)
		if !ok {
			continue
		}
		item.Category = p.Classify(item.Name)
		item.Line = line.Number
		items = append(items, item)
	}
	return items
}

// IsNoise reports whether any noise rule matches line.
func (p *Parser) IsNoise(line string) bool {
	return len(p.NoiseMatches(line)) > 0
}

// NoiseMatches returns the names of every noise rule matching line.
func (p *Parser) NoiseMatches(line string) []string {
	var matched []string
	for _, rule := range p.rules.Noise {
		if rule.Pattern.MatchString(line) {
			matched = append(matched, rule.Name)
		}
	}
	return matched
}

// Extract cuts the price and quantity tokens out of line and cleans the rest into
// a name. Each matched token is removed before the next rule runs. ok is false
// when the cleaned name is shorter than two characters. Category is left unset.
func (p *Parser) Extract(line string) (item Item, ok bool) {
	rest := line
	for _, rule := range p.rules.Fields {
		if item.field(rule.Field) != "" {
			continue
		}
		loc := rule.Pattern.FindStringIndex(rest)
		if loc == nil {
			continue
		}
		item.setField(rule.Field, strings.TrimSpace(rest[loc[0]:loc[1]]))
		rest = rest[:loc[0]] + rest[loc[1]:]
	}
	if item.Quantity == "" {
		item.Quantity = p.rules.DefaultQuantity
	}

	item.Name = CleanName(rest)
	if len(item.Name) < 2 {
		return Item{}, false
	}
	return item, true
}

// Classify files name under the first category, in table order, with a keyword
// contained in the lower-cased name. Names matching nothing are Other.
func (p *Parser) Classify(name string) Category {
	lower := strings.ToLower(name)
	for _, rule := range p.rules.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Category
			}
		}
	}
	return Other
}

// CleanName turns each whitespace run into one space, strips everything but
// letters, digits and spaces, and trims the result.
func CleanName(s string) string {
	s = reWhitespace.ReplaceAllString(s, " ")
	s = reNameStrip.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func (it *Item) field(f Field) string {
	switch f {
	case FieldPrice:
		return it.Price
	case FieldQuantity:
		return it.Quantity
	}
	return ""
}

func (it *Item) setField(f Field, v string) {
	switch f {
	case FieldPrice:
		it.Price = v
	case FieldQuantity:
		it.Quantity = v
	}
}
