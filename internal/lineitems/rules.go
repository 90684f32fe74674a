package lineitems

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Field names the Item field a FieldRule fills.
type Field string

const (
	FieldPrice    Field = "price"
	FieldQuantity Field = "quantity"
)

// NoiseRule marks a line as receipt boilerplate when Pattern matches anywhere in it.
type NoiseRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// FieldRule extracts one token for Field. Rules run in table order and the first
// match for a field wins; later rules for an already filled field are skipped.
type FieldRule struct {
	Name    string
	Field   Field
	Pattern *regexp.Regexp
}

// CategoryRule lists lower-case keywords that file a name under Category.
type CategoryRule struct {
	Category Category
	Keywords []string
}

// Rules is the pattern and keyword table the parser runs on.
type Rules struct {
	Noise           []NoiseRule
	Fields          []FieldRule
	DefaultQuantity string
	Categories      []CategoryRule
}

type rulesFile struct {
	Noise struct {
		Keywords []string `yaml:"keywords"`
		Patterns []struct {
			Name    string `yaml:"name"`
			Pattern string `yaml:"pattern"`
		} `yaml:"patterns"`
	} `yaml:"noise"`
	Fields []struct {
		Name    string `yaml:"name"`
		Field   Field  `yaml:"field"`
		Pattern string `yaml:"pattern"`
	} `yaml:"fields"`
	DefaultQuantity string `yaml:"default_quantity"`
	Categories      []struct {
		Category Category `yaml:"category"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
}

// DefaultRules returns a fresh copy of the built-in table.
func DefaultRules() *Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("lineitems: built-in rules: %v", err))
	}
	return rules
}

// LoadRules reads a YAML rules table from path.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules compiles a YAML rules table.
func ParseRules(data []byte) (*Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshaling yaml: %w", err)
	}

	rules := &Rules{
		DefaultQuantity: strings.TrimSpace(file.DefaultQuantity),
	}
	if rules.DefaultQuantity == "" {
		rules.DefaultQuantity = "1"
	}

	for _, kw := range file.Noise.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		rules.Noise = append(rules.Noise, NoiseRule{
			Name:    kw,
			Pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw)),
		})
	}
	for _, p := range file.Noise.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("noise pattern %q: %w", p.Name, err)
		}
		name := p.Name
		if name == "" {
			name = p.Pattern
		}
		rules.Noise = append(rules.Noise, NoiseRule{Name: name, Pattern: re})
	}

	for _, f := range file.Fields {
		if f.Field != FieldPrice && f.Field != FieldQuantity {
			return nil, fmt.Errorf("field rule %q: unknown field %q", f.Name, f.Field)
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field rule %q: %w", f.Name, err)
		}
		rules.Fields = append(rules.Fields, FieldRule{Name: f.Name, Field: f.Field, Pattern: re})
	}

	for _, c := range file.Categories {
		if c.Category == Other {
			return nil, fmt.Errorf("category Other cannot have keywords")
		}
		keywords := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		rules.Categories = append(rules.Categories, CategoryRule{Category: c.Category, Keywords: keywords})
	}

	return rules, nil
}
