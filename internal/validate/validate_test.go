package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wegman-software/osmshape/internal/shaper"
)

func validNode() *shaper.RawElement {
	return &shaper.RawElement{
		Kind: shaper.KindNode,
		Attrs: map[string]string{
			"id": "1", "lat": "40.78", "lon": "-73.95", "user": "", "uid": "2",
			"version": "3", "changeset": "4", "timestamp": "2010-07-22T16:16:51Z",
		},
		Children: []shaper.Child{
			{Name: shaper.ChildTag, Attrs: map[string]string{"k": "name", "v": ""}},
		},
	}
}

func validWay() *shaper.RawElement {
	return &shaper.RawElement{
		Kind: shaper.KindWay,
		Attrs: map[string]string{
			"id": "10", "user": "w", "uid": "5", "version": "1", "changeset": "6",
			"timestamp": "2013-03-13T15:58:04Z",
		},
		Children: []shaper.Child{
			{Name: shaper.ChildND, Attrs: map[string]string{"ref": "1"}},
			{Name: shaper.ChildTag, Attrs: map[string]string{"k": "addr:city", "v": "New York"}},
		},
	}
}

func mustShape(t *testing.T, el *shaper.RawElement) *shaper.Result {
	t.Helper()
	res, err := shaper.Default().Shape(el)
	if err != nil {
		t.Fatalf("Shape failed: %v", err)
	}
	return res
}

func mustValidator(t *testing.T, schema Schema) *Validator {
	t.Helper()
	v, err := NewValidator(schema)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	return v
}

func TestValidateValid(t *testing.T) {
	v := mustValidator(t, DefaultSchema())

	for _, el := range []*shaper.RawElement{validNode(), validWay()} {
		if err := v.Validate(mustShape(t, el)); err != nil {
			t.Errorf("unexpected validation error for %s: %v", el.Kind, err)
		}
	}
	if err := v.Validate(nil); err != nil {
		t.Errorf("Validate(nil) = %v", err)
	}
}

func TestValidateBadNode(t *testing.T) {
	el := validNode()
	el.Attrs["lat"] = "north"
	el.Attrs["timestamp"] = "yesterday"

	err := mustValidator(t, DefaultSchema()).Validate(mustShape(t, el))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Record != RecordNode || verr.ID != "1" {
		t.Errorf("unexpected record/id: %s/%s", verr.Record, verr.ID)
	}
	if len(verr.Errors) != 2 || verr.Errors["lat"] == nil || verr.Errors["timestamp"] == nil {
		t.Errorf("unexpected field errors: %v", verr.Errors)
	}
	msg := verr.Error()
	if !strings.Contains(msg, "element of type 'node' (id 1)") || !strings.Contains(msg, "\n  lat: ") || !strings.Contains(msg, "\n  timestamp: ") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestValidateBadWayNode(t *testing.T) {
	el := validWay()
	el.Children[0].Attrs["ref"] = "n1"

	err := mustValidator(t, DefaultSchema()).Validate(mustShape(t, el))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Record != RecordWayNodes || verr.Errors["node_id"] == nil {
		t.Errorf("unexpected error: %v", verr)
	}
}

func TestValidateUnknownAndMissingFields(t *testing.T) {
	schema := DefaultSchema()
	delete(schema[RecordWay], "user")
	schema[RecordWay]["name"] = Rule{Required: true, Type: TypeString}

	err := mustValidator(t, schema).Validate(mustShape(t, validWay()))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors[""]) == 0 {
		t.Fatalf("expected record-level errors, got %v", verr.Errors)
	}
	msg := strings.Join(verr.Errors[""], "; ")
	if !strings.Contains(msg, "'user'") || !strings.Contains(msg, "'name'") {
		t.Errorf("record errors should name the unknown and the missing field: %s", msg)
	}
}

func TestValidateNonEmpty(t *testing.T) {
	v := mustValidator(t, DefaultSchema())

	res := mustShape(t, validWay())
	res.Tags[0].Type = ""

	var verr *ValidationError
	if !errors.As(v.Validate(res), &verr) {
		t.Fatal("expected ValidationError for empty tag type")
	}
	if verr.Record != RecordWayTags || verr.Errors["type"] == nil {
		t.Errorf("unexpected error: %v", verr)
	}
}

func TestDefaultSchemaFor(t *testing.T) {
	tables := shaper.DefaultTables()
	tables.NodeFields = []string{"id", "lat", "lon", "name"}
	tables.WayFields = []string{"id"}

	schema := DefaultSchemaFor(tables)

	if len(schema[RecordNode]) != 4 || len(schema[RecordWay]) != 1 {
		t.Fatalf("unexpected record rules: node=%v way=%v", schema[RecordNode], schema[RecordWay])
	}
	tests := map[string]Rule{
		"id":   {Required: true, Type: TypeInteger},
		"lat":  {Required: true, Type: TypeFloat},
		"name": {Required: true, Type: TypeString},
	}
	for field, want := range tests {
		if got := schema[RecordNode][field]; got != want {
			t.Errorf("node.%s = %+v, want %+v", field, got, want)
		}
	}

	s, err := shaper.New(tables)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Shape(&shaper.RawElement{
		Kind:  shaper.KindNode,
		Attrs: map[string]string{"id": "1", "lat": "40.78", "lon": "-73.95", "name": "x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mustValidator(t, schema).Validate(res); err != nil {
		t.Errorf("node shaped with custom tables should validate: %v", err)
	}
}

func TestValidatePattern(t *testing.T) {
	schema := DefaultSchema()
	schema[RecordWayTags]["type"] = Rule{Required: true, Type: TypeString, Pattern: `^(regular|addr)$`}
	v := mustValidator(t, schema)

	if err := v.Validate(mustShape(t, validWay())); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	el := validWay()
	el.Children[1].Attrs["k"] = "gnis:id"
	if err := v.Validate(mustShape(t, el)); err == nil {
		t.Error("expected regex failure for type gnis")
	}
}

func TestNewValidatorErrors(t *testing.T) {
	if _, err := NewValidator(Schema{RecordNode: {"id": {Type: "uuid"}}}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := NewValidator(Schema{RecordNode: {"id": {Pattern: "("}}}); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	data := `
node:
  id: {required: true, type: integer}
  lat: {required: true, type: float}
node_tags:
  id: {required: true, type: integer}
  key: {required: true, type: string, non_empty: true}
  value: {required: true, type: string}
  type: {required: true, type: string, regex: "^[a-z_]+$"}
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	schema, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("LoadSchema failed: %v", err)
	}
	if !schema[RecordNodeTags]["key"].NonEmpty || schema[RecordNodeTags]["type"].Pattern != "^[a-z_]+$" {
		t.Errorf("unexpected schema: %+v", schema[RecordNodeTags])
	}
	if _, ok := schema[RecordWay]; ok {
		t.Error("way rules should be absent")
	}
}
