package shaper

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
)

func tag(k, v string) Child {
	return Child{Name: ChildTag, Attrs: map[string]string{"k": k, "v": v}}
}

func nd(ref string) Child {
	return Child{Name: ChildND, Attrs: map[string]string{"ref": ref}}
}

func testNode() *RawElement {
	return &RawElement{
		Kind: KindNode,
		Attrs: map[string]string{
			"id":        "757860928",
			"lat":       "40.7834560",
			"lon":       "-73.9560000",
			"user":      "uboot",
			"uid":       "26299",
			"version":   "2",
			"changeset": "5288876",
			"timestamp": "2010-07-22T16:16:51Z",
			"visible":   "true",
		},
		Children: []Child{
			tag("amenity", "fast_food"),
			tag("addr:street", "5th Ave"),
			tag("regular key", "dropped"),
			tag("name", "Shelly's"),
		},
	}
}

func testWay() *RawElement {
	return &RawElement{
		Kind: KindWay,
		Attrs: map[string]string{
			"id":        "209809850",
			"user":      "chicago-buildings",
			"uid":       "674454",
			"version":   "1",
			"changeset": "15353317",
			"timestamp": "2013-03-13T15:58:04Z",
		},
		Children: []Child{
			nd("2199822281"),
			tag("building", "yes"),
			nd("2199822390"),
			nd("2199822392"),
			tag("addr:street:name", "W Lexington St"),
			nd("2199822281"),
		},
	}
}

func TestShapeNode(t *testing.T) {
	s := Default()
	el := testNode()

	res, err := s.Shape(el)
	if err != nil {
		t.Fatalf("Shape failed: %v", err)
	}
	if res.Kind != KindNode {
		t.Fatalf("kind = %q, want node", res.Kind)
	}

	wantFields := DefaultTables().NodeFields
	if !reflect.DeepEqual(res.Node.Names(), wantFields) {
		t.Errorf("node fields = %v, want %v", res.Node.Names(), wantFields)
	}
	for _, f := range wantFields {
		got, _ := res.Node.Get(f)
		if got != el.Attrs[f] {
			t.Errorf("node[%s] = %q, want %q", f, got, el.Attrs[f])
		}
	}
	if _, ok := res.Node.Get("visible"); ok {
		t.Error("node record must not contain attributes outside the field list")
	}
	if res.Way != nil || res.WayNodes != nil {
		t.Error("node result must not carry way rows")
	}

	want := []Tag{
		{ID: "757860928", Key: "amenity", Value: "fast_food", Type: "regular"},
		{ID: "757860928", Key: "street", Value: "5th Avenue", Type: "addr"},
		{ID: "757860928", Key: "name", Value: "Shelly's", Type: "regular"},
	}
	if !reflect.DeepEqual(res.Tags, want) {
		t.Errorf("tags = %+v, want %+v", res.Tags, want)
	}
}

func TestShapeWay(t *testing.T) {
	s := Default()

	res, err := s.Shape(testWay())
	if err != nil {
		t.Fatalf("Shape failed: %v", err)
	}
	if res.Kind != KindWay {
		t.Fatalf("kind = %q, want way", res.Kind)
	}
	if res.Node != nil {
		t.Error("way result must not carry a node record")
	}
	if !reflect.DeepEqual(res.Way.Names(), DefaultTables().WayFields) {
		t.Errorf("way fields = %v", res.Way.Names())
	}

	wantRefs := []string{"2199822281", "2199822390", "2199822392", "2199822281"}
	if len(res.WayNodes) != len(wantRefs) {
		t.Fatalf("expected %d way nodes, got %d", len(wantRefs), len(res.WayNodes))
	}
	for i, wn := range res.WayNodes {
		if wn.Position != i {
			t.Errorf("way node %d position = %d", i, wn.Position)
		}
		if wn.NodeID != wantRefs[i] {
			t.Errorf("way node %d ref = %s, want %s", i, wn.NodeID, wantRefs[i])
		}
		if wn.ID != "209809850" {
			t.Errorf("way node %d id = %s", i, wn.ID)
		}
	}

	want := []Tag{
		{ID: "209809850", Key: "building", Value: "yes", Type: "regular"},
		{ID: "209809850", Key: "street:name", Value: "West Lexington Street", Type: "addr"},
	}
	if !reflect.DeepEqual(res.Tags, want) {
		t.Errorf("tags = %+v, want %+v", res.Tags, want)
	}
}

func TestShapeWayPositionsLong(t *testing.T) {
	el := &RawElement{
		Kind:  KindWay,
		Attrs: testWay().Attrs,
	}
	for i := 0; i < 50; i++ {
		el.Children = append(el.Children, nd(strconv.Itoa(1000+i)))
		if i%7 == 0 {
			el.Children = append(el.Children, tag("note", "x"))
		}
	}

	res, err := Default().Shape(el)
	if err != nil {
		t.Fatalf("Shape failed: %v", err)
	}
	for i, wn := range res.WayNodes {
		if wn.Position != i || wn.NodeID != strconv.Itoa(1000+i) {
			t.Fatalf("way node %d = %+v", i, wn)
		}
	}
}

func TestShapeMissingAttribute(t *testing.T) {
	el := testWay()
	delete(el.Attrs, "user")

	res, err := Default().Shape(el)
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
	var missing *MissingAttributeError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingAttributeError, got %v", err)
	}
	if missing.Attribute != "user" || missing.Kind != KindWay || missing.ID != "209809850" {
		t.Errorf("unexpected error fields: %+v", missing)
	}
	if missing.Error() != `way 209809850: missing required attribute "user"` {
		t.Errorf("unexpected message: %s", missing.Error())
	}
}

func TestShapeMissingChildAttribute(t *testing.T) {
	el := testWay()
	el.Children = append(el.Children, Child{Name: ChildND, Attrs: map[string]string{}})

	_, err := Default().Shape(el)
	var missing *MissingAttributeError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingAttributeError, got %v", err)
	}
	if missing.Child != ChildND || missing.Attribute != "ref" {
		t.Errorf("unexpected error fields: %+v", missing)
	}

	el = testNode()
	el.Children = append(el.Children, Child{Name: ChildTag, Attrs: map[string]string{"v": "x"}})
	_, err = Default().Shape(el)
	if !errors.As(err, &missing) || missing.Attribute != "k" {
		t.Fatalf("expected missing k, got %v", err)
	}
}

func TestShapeTagWithoutValue(t *testing.T) {
	el := testNode()
	el.Children = []Child{{Name: ChildTag, Attrs: map[string]string{"k": "fixme"}}}

	res, err := Default().Shape(el)
	if err != nil {
		t.Fatalf("Shape failed: %v", err)
	}
	if len(res.Tags) != 1 || res.Tags[0].Value != "" {
		t.Errorf("tags = %+v", res.Tags)
	}
}

func TestShapeOtherKinds(t *testing.T) {
	s := Default()
	for _, kind := range []Kind{"relation", "bounds", ""} {
		res, err := s.Shape(&RawElement{Kind: kind, Attrs: map[string]string{"id": "1"}})
		if res != nil || err != nil {
			t.Errorf("Shape(%q) = %v, %v; want nil, nil", kind, res, err)
		}
	}
	if res, err := s.Shape(nil); res != nil || err != nil {
		t.Errorf("Shape(nil) = %v, %v", res, err)
	}
}

func TestShapeNodeChildrenIgnored(t *testing.T) {
	el := testNode()
	el.Children = append(el.Children, nd("1"))

	res, err := Default().Shape(el)
	if err != nil {
		t.Fatalf("Shape failed: %v", err)
	}
	if res.WayNodes != nil {
		t.Errorf("node produced way nodes: %+v", res.WayNodes)
	}
}

func TestNewCopiesTables(t *testing.T) {
	tables := DefaultTables()
	s, err := New(tables)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tables.Corrections["Ave"] = "Changed"
	tables.NodeFields[0] = "changed"

	if got := s.Correct("5th Ave"); got != "5th Avenue" {
		t.Errorf("Correct after caller mutation = %q", got)
	}
	if s.Tables().NodeFields[0] != "id" {
		t.Error("node fields changed after caller mutation")
	}

	copied := s.Tables()
	copied.Corrections["St"] = "Changed"
	if got := s.Correct("Main St"); got != "Main Street" {
		t.Errorf("Correct after Tables() mutation = %q", got)
	}
}

func TestNewRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Tables)
	}{
		{"empty node fields", func(t *Tables) { t.NodeFields = nil }},
		{"way fields without id", func(t *Tables) { t.WayFields = []string{"user"} }},
		{"duplicate field", func(t *Tables) { t.NodeFields = []string{"id", "lat", "lat"} }},
		{"empty default type", func(t *Tables) { t.DefaultTagType = "" }},
	}

	for _, tt := range tests {
		tables := DefaultTables()
		tt.modify(&tables)
		if _, err := New(tables); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestCustomDefaultTagType(t *testing.T) {
	tables := DefaultTables()
	tables.DefaultTagType = "plain"
	s, err := New(tables)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	key, typ, ok := s.ClassifyKey("name")
	if !ok || key != "name" || typ != "plain" {
		t.Errorf("ClassifyKey(name) = %q, %q, %v", key, typ, ok)
	}
}
