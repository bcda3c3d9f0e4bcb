package validate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// Sub-record names used in schemas and validation errors
const (
	RecordNode     = "node"
	RecordNodeTags = "node_tags"
	RecordWay      = "way"
	RecordWayNodes = "way_nodes"
	RecordWayTags  = "way_tags"
)

// Field types understood by Rule.Type
const (
	TypeString   = "string"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeDatetime = "datetime"
)

// Rule constrains a single field. Pattern applies to string-typed fields.
type Rule struct {
	Required bool   `yaml:"required"`
	Type     string `yaml:"type"`
	NonEmpty bool   `yaml:"non_empty,omitempty"`
	Pattern  string `yaml:"regex,omitempty"`
}

// Schema maps a sub-record name to its field rules
type Schema map[string]map[string]Rule

var fieldRules = map[string]Rule{
	"id":        {Required: true, Type: TypeInteger},
	"lat":       {Required: true, Type: TypeFloat},
	"lon":       {Required: true, Type: TypeFloat},
	"user":      {Required: true, Type: TypeString},
	"uid":       {Required: true, Type: TypeInteger},
	"version":   {Required: true, Type: TypeInteger},
	"changeset": {Required: true, Type: TypeInteger},
	"timestamp": {Required: true, Type: TypeDatetime},
}

// fieldRule returns the default rule for an element attribute; attributes
// without one are required strings
func fieldRule(name string) Rule {
	if rule, ok := fieldRules[name]; ok {
		return rule
	}
	return Rule{Required: true, Type: TypeString}
}

func recordRules(fields []string) map[string]Rule {
	rules := make(map[string]Rule, len(fields))
	for _, name := range fields {
		rules[name] = fieldRule(name)
	}
	return rules
}

// DefaultSchema describes the rows produced with the default tables
func DefaultSchema() Schema {
	return DefaultSchemaFor(shaper.DefaultTables())
}

// DefaultSchemaFor describes the rows produced with tables, so node and
// way rules follow the configured field lists
func DefaultSchemaFor(tables shaper.Tables) Schema {
	integer := Rule{Required: true, Type: TypeInteger}
	text := Rule{Required: true, Type: TypeString}
	word := Rule{Required: true, Type: TypeString, NonEmpty: true}

	tags := func() map[string]Rule {
		return map[string]Rule{
			"id":    integer,
			"key":   word,
			"value": text,
			"type":  word,
		}
	}

	return Schema{
		RecordNode:     recordRules(tables.NodeFields),
		RecordNodeTags: tags(),
		RecordWay:      recordRules(tables.WayFields),
		RecordWayNodes: {
			"id":       integer,
			"node_id":  integer,
			"position": integer,
		},
		RecordWayTags: tags(),
	}
}

// LoadSchema reads a YAML schema file
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	return schema, nil
}
