package llm

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var defaultCatalogYAML []byte

// Catalog is the static response configuration: templates per intent,
// the pools used to fill their slots and the closing remarks.
type Catalog struct {
	Templates map[Intent][]string `yaml:"templates"`
	Slots     SlotPools           `yaml:"slots"`
	Closings  []string            `yaml:"closings"`
}

// SlotPools holds the values a template slot can be filled with.
type SlotPools struct {
	Statuses        []string `yaml:"statuses"`
	MaxDeliveryDays int      `yaml:"maxDeliveryDays"`
	Instructions    []string `yaml:"instructions"`
	Timeframes      []string `yaml:"timeframes"`
	Features        []string `yaml:"features"`
	Compatibilities []string `yaml:"compatibilities"`
	Purpose         string   `yaml:"purpose"`
	DefaultProduct  string   `yaml:"defaultProduct"`
	Solutions       []string `yaml:"solutions"`
	DefaultIssue    string   `yaml:"defaultIssue"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic("llm: invalid embedded catalog: " + err.Error())
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every slot the generator fills has something to draw from.
func (c *Catalog) Validate() error {
	if len(c.Templates[IntentGeneral]) == 0 {
		return fmt.Errorf("catalog needs at least one %q template", IntentGeneral)
	}
	s := c.Slots
	switch {
	case len(s.Statuses) == 0:
		return fmt.Errorf("catalog slots.statuses is empty")
	case s.MaxDeliveryDays <= 0:
		return fmt.Errorf("catalog slots.maxDeliveryDays must be > 0")
	case len(s.Instructions) == 0:
		return fmt.Errorf("catalog slots.instructions is empty")
	case len(s.Timeframes) == 0:
		return fmt.Errorf("catalog slots.timeframes is empty")
	case len(s.Features) < 3:
		return fmt.Errorf("catalog slots.features needs at least 3 entries")
	case len(s.Compatibilities) == 0:
		return fmt.Errorf("catalog slots.compatibilities is empty")
	case len(s.Solutions) == 0:
		return fmt.Errorf("catalog slots.solutions is empty")
	case len(c.Closings) == 0:
		return fmt.Errorf("catalog closings is empty")
	}
	return nil
}

// TemplatesFor returns the templates for intent, falling back to the general set.
func (c *Catalog) TemplatesFor(intent Intent) []string {
	if t := c.Templates[intent]; len(t) > 0 {
		return t
	}
	return c.Templates[IntentGeneral]
}
