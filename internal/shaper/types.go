package shaper

import (
	"fmt"
	"strconv"
)

// Kind identifies the type of an OSM element
type Kind string

const (
	KindNode Kind = "node"
	KindWay  Kind = "way"
)

// Child element names that carry data for the shaper
const (
	ChildTag = "tag"
	ChildND  = "nd"
)

// Child is a nested element of a node or way (<tag k=".." v=".."/> or <nd ref=".."/>)
type Child struct {
	Name  string
	Attrs map[string]string
}

// RawElement is one node or way as read from the source document.
// Attribute values are kept exactly as they appear in the source.
type RawElement struct {
	Kind     Kind
	Attrs    map[string]string
	Children []Child
}

// ID returns the element's id attribute, or "" if absent
func (e *RawElement) ID() string {
	return e.Attrs["id"]
}

// Field is one named column value of a record
type Field struct {
	Name  string
	Value string
}

// Record is an ordered set of fields matching a fixed field list
type Record []Field

// Get returns the value of the named field
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Names returns the field names in order
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Values returns the field values in order
func (r Record) Values() []string {
	values := make([]string, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// WayNode links a way to one of its nodes
type WayNode struct {
	ID       string // parent way id
	NodeID   string
	Position int // zero-based index of the nd child
}

// Values returns the row in WayNodeFields order
func (wn WayNode) Values() []string {
	return []string{wn.ID, wn.NodeID, strconv.Itoa(wn.Position)}
}

// Tag is a classified and corrected key/value annotation
type Tag struct {
	ID    string // parent element id
	Key   string
	Value string
	Type  string
}

// Values returns the row in TagFields order
func (t Tag) Values() []string {
	return []string{t.ID, t.Key, t.Value, t.Type}
}

// Result holds all rows produced for a single element.
// Node is set for node elements; Way and WayNodes for way elements.
type Result struct {
	Kind     Kind
	Node     Record
	Way      Record
	WayNodes []WayNode
	Tags     []Tag
}

// MissingAttributeError is returned when a required attribute is absent
type MissingAttributeError struct {
	Kind      Kind
	ID        string // element id, empty if the id itself is missing
	Child     string // "tag" or "nd" when the attribute belongs to a child
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	where := string(e.Kind)
	if e.ID != "" {
		where += " " + e.ID
	}
	if e.Child != "" {
		return fmt.Sprintf("%s: %s child missing required attribute %q", where, e.Child, e.Attribute)
	}
	return fmt.Sprintf("%s: missing required attribute %q", where, e.Attribute)
}
