package shaper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTagType is the tag type assigned to keys without a namespace prefix
const DefaultTagType = "regular"

var (
	// TagFields is the column list shared by the nodes_tags and ways_tags streams
	TagFields = []string{"id", "key", "value", "type"}
	// WayNodeFields is the column list of the ways_nodes stream
	WayNodeFields = []string{"id", "node_id", "position"}
)

// Tables holds the fixed lookup data used while shaping.
// Values are copied by New, so a Shaper never observes later changes.
type Tables struct {
	// Corrections maps an abbreviated value token to its replacement
	Corrections map[string]string `yaml:"corrections,omitempty"`
	// NodeFields lists the attributes copied from every node
	NodeFields []string `yaml:"node_fields,omitempty"`
	// WayFields lists the attributes copied from every way
	WayFields []string `yaml:"way_fields,omitempty"`
	// DefaultTagType is used for tags whose key has no namespace
	DefaultTagType string `yaml:"default_tag_type,omitempty"`
}

// DefaultTables returns the street-name correction table and field lists
// used for the New York extract.
func DefaultTables() Tables {
	return Tables{
		Corrections: map[string]string{
			"Ave":       "Avenue",
			"Ave.":      "Avenue",
			"Broadwat":  "Broadway",
			"Broadway.": "Broadway",
			"Bvld":      "Boulevard",
			"Bvld.":     "Boulevard",
			"Bvl.":      "Boulevard",
			"St.":       "Street",
			"St":        "Street",
			"N":         "North",
			"N.":        "North",
			"E":         "East",
			"E.":        "East",
			"S":         "South",
			"S.":        "South",
			"W":         "West",
			"W.":        "West",
		},
		NodeFields:     []string{"id", "lat", "lon", "user", "uid", "version", "changeset", "timestamp"},
		WayFields:      []string{"id", "user", "uid", "version", "changeset", "timestamp"},
		DefaultTagType: DefaultTagType,
	}
}

// LoadTables reads a YAML tables file. Sections present in the file replace
// the corresponding default section; absent sections keep the defaults.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("failed to read tables file: %w", err)
	}
	return ParseTables(data)
}

// ParseTables parses YAML tables data on top of DefaultTables
func ParseTables(data []byte) (Tables, error) {
	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Tables{}, fmt.Errorf("failed to parse tables YAML: %w", err)
	}

	t := DefaultTables()
	if override.Corrections != nil {
		t.Corrections = override.Corrections
	}
	if override.NodeFields != nil {
		t.NodeFields = override.NodeFields
	}
	if override.WayFields != nil {
		t.WayFields = override.WayFields
	}
	if override.DefaultTagType != "" {
		t.DefaultTagType = override.DefaultTagType
	}

	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks that the tables can produce well-formed rows
func (t Tables) Validate() error {
	if err := validateFields("node_fields", t.NodeFields); err != nil {
		return err
	}
	if err := validateFields("way_fields", t.WayFields); err != nil {
		return err
	}
	if t.DefaultTagType == "" {
		return fmt.Errorf("default_tag_type must not be empty")
	}
	return nil
}

func validateFields(section string, fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%s must not be empty", section)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" {
			return fmt.Errorf("%s contains an empty field name", section)
		}
		if seen[f] {
			return fmt.Errorf("%s contains duplicate field %q", section, f)
		}
		seen[f] = true
	}
	if !seen["id"] {
		return fmt.Errorf("%s must include \"id\"", section)
	}
	return nil
}

// clone returns a deep copy of the tables
func (t Tables) clone() Tables {
	c := Tables{
		Corrections:    make(map[string]string, len(t.Corrections)),
		NodeFields:     append([]string(nil), t.NodeFields...),
		WayFields:      append([]string(nil), t.WayFields...),
		DefaultTagType: t.DefaultTagType,
	}
	for k, v := range t.Corrections {
		c.Corrections[k] = v
	}
	return c
}
