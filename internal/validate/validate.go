// Package validate checks shaped elements against a field schema before
// they are written.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// ValidationError reports the first sub-record of an element that failed
// validation, with the problems found per field. Problems with the record
// as a whole (missing or unknown fields) are keyed by the empty string.
type ValidationError struct {
	Record string
	ID     string
	Errors map[string][]string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "element of type '%s'", e.Record)
	if e.ID != "" {
		fmt.Fprintf(&b, " (id %s)", e.ID)
	}
	b.WriteString(" has the following errors:")

	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		msg := strings.Join(e.Errors[f], "; ")
		if f == "" {
			fmt.Fprintf(&b, "\n  %s", msg)
		} else {
			fmt.Fprintf(&b, "\n  %s: %s", f, msg)
		}
	}
	return b.String()
}

// recordSchema is the compiled JSON Schema of one sub-record plus the
// declared field types used to coerce the string values before validation
type recordSchema struct {
	schema *jsonschema.Schema
	types  map[string]string
}

// Validator checks results against a compiled schema
type Validator struct {
	records map[string]*recordSchema
}

// NewValidator compiles every sub-record of schema into a JSON Schema
func NewValidator(schema Schema) (*Validator, error) {
	v := &Validator{records: make(map[string]*recordSchema, len(schema))}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	for record, fields := range schema {
		doc, types, err := jsonSchema(record, fields)
		if err != nil {
			return nil, err
		}

		url := record + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", record, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", record, err)
		}
		v.records[record] = &recordSchema{schema: compiled, types: types}
	}

	return v, nil
}

// jsonSchema renders the rules of one sub-record as a closed JSON Schema
// object
func jsonSchema(record string, fields map[string]Rule) ([]byte, map[string]string, error) {
	props := make(map[string]interface{}, len(fields))
	types := make(map[string]string, len(fields))
	required := []string{}

	for name, rule := range fields {
		prop := map[string]interface{}{}
		switch rule.Type {
		case "":
		case TypeString:
			prop["type"] = "string"
		case TypeInteger:
			prop["type"] = "integer"
		case TypeFloat:
			prop["type"] = "number"
		case TypeDatetime:
			prop["type"] = "string"
			prop["format"] = "date-time"
		default:
			return nil, nil, fmt.Errorf("schema %s.%s: unknown type %q", record, name, rule.Type)
		}
		if rule.NonEmpty {
			prop["minLength"] = 1
		}
		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return nil, nil, fmt.Errorf("schema %s.%s: invalid regex: %w", record, name, err)
			}
			prop["pattern"] = rule.Pattern
		}

		props[name] = prop
		types[name] = rule.Type
		if rule.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	doc, err := json.Marshal(map[string]interface{}{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	})
	return doc, types, err
}

// Validate checks every sub-record of res and returns a *ValidationError
// for the first one that fails
func (v *Validator) Validate(res *shaper.Result) error {
	if res == nil {
		return nil
	}

	switch res.Kind {
	case shaper.KindNode:
		if err := v.check(RecordNode, res.Node); err != nil {
			return err
		}
		return v.checkTags(RecordNodeTags, res.Tags)

	case shaper.KindWay:
		if err := v.check(RecordWay, res.Way); err != nil {
			return err
		}
		for _, wn := range res.WayNodes {
			rec := shaper.Record{
				{Name: "id", Value: wn.ID},
				{Name: "node_id", Value: wn.NodeID},
				{Name: "position", Value: strconv.Itoa(wn.Position)},
			}
			if err := v.check(RecordWayNodes, rec); err != nil {
				return err
			}
		}
		return v.checkTags(RecordWayTags, res.Tags)
	}

	return nil
}

func (v *Validator) checkTags(record string, tags []shaper.Tag) error {
	for _, tag := range tags {
		rec := shaper.Record{
			{Name: "id", Value: tag.ID},
			{Name: "key", Value: tag.Key},
			{Name: "value", Value: tag.Value},
			{Name: "type", Value: tag.Type},
		}
		if err := v.check(record, rec); err != nil {
			return err
		}
	}
	return nil
}

// check validates one record. Records without schema rules pass.
func (v *Validator) check(record string, rec shaper.Record) error {
	rs, ok := v.records[record]
	if !ok {
		return nil
	}

	instance := make(map[string]interface{}, len(rec))
	for _, f := range rec {
		instance[f.Name] = coerce(rs.types[f.Name], f.Value)
	}

	err := rs.schema.Validate(instance)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validating %s: %w", record, err)
	}

	errs := make(map[string][]string)
	collectErrors(verr, errs)
	id, _ := rec.Get("id")
	return &ValidationError{Record: record, ID: id, Errors: errs}
}

// coerce converts a field value to the JSON type its rule expects. Values
// that do not parse stay strings and fail the type check.
func coerce(typ, value string) interface{} {
	switch typ {
	case TypeInteger:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return json.Number(strconv.FormatInt(n, 10))
		}
	case TypeFloat:
		if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
		}
	}
	return value
}

// collectErrors flattens the leaf causes of verr by field name
func collectErrors(verr *jsonschema.ValidationError, errs map[string][]string) {
	if len(verr.Causes) == 0 {
		field := strings.TrimPrefix(verr.InstanceLocation, "/")
		errs[field] = append(errs[field], verr.Message)
		return
	}
	for _, cause := range verr.Causes {
		collectErrors(cause, errs)
	}
}
