// Package shaper turns OSM node and way elements into flat rows for the
// nodes, nodes_tags, ways, ways_nodes and ways_tags tables.
package shaper

// Shaper maps raw elements to rows. It holds only read-only tables and is
// safe for concurrent use.
type Shaper struct {
	tables Tables
}

// New creates a Shaper owning a private copy of tables
func New(tables Tables) (*Shaper, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Shaper{tables: tables.clone()}, nil
}

// Default creates a Shaper with DefaultTables
func Default() *Shaper {
	return &Shaper{tables: DefaultTables().clone()}
}

// Tables returns a copy of the shaper's tables
func (s *Shaper) Tables() Tables {
	return s.tables.clone()
}

// Correct applies the correction table to a tag value
func (s *Shaper) Correct(value string) string {
	return Correct(value, s.tables.Corrections)
}

// ClassifyKey classifies a raw tag key using the configured default type
func (s *Shaper) ClassifyKey(raw string) (key, typ string, ok bool) {
	return ClassifyKey(raw, s.tables.DefaultTagType)
}

// Shape converts a node or way into rows. Elements of any other kind
// return (nil, nil). A missing required attribute returns a
// *MissingAttributeError and no partial result.
func (s *Shaper) Shape(el *RawElement) (*Result, error) {
	if el == nil {
		return nil, nil
	}

	switch el.Kind {
	case KindNode:
		node, err := s.copyAttrs(el, s.tables.NodeFields)
		if err != nil {
			return nil, err
		}
		tags, err := s.shapeTags(el)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindNode, Node: node, Tags: tags}, nil

	case KindWay:
		way, err := s.copyAttrs(el, s.tables.WayFields)
		if err != nil {
			return nil, err
		}
		wayNodes, err := shapeWayNodes(el)
		if err != nil {
			return nil, err
		}
		tags, err := s.shapeTags(el)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindWay, Way: way, WayNodes: wayNodes, Tags: tags}, nil
	}

	return nil, nil
}

func (s *Shaper) copyAttrs(el *RawElement, fields []string) (Record, error) {
	rec := make(Record, 0, len(fields))
	for _, name := range fields {
		v, ok := el.Attrs[name]
		if !ok {
			return nil, &MissingAttributeError{Kind: el.Kind, ID: el.ID(), Attribute: name}
		}
		rec = append(rec, Field{Name: name, Value: v})
	}
	return rec, nil
}

func shapeWayNodes(el *RawElement) ([]WayNode, error) {
	var wayNodes []WayNode
	id := el.ID()
	for _, child := range el.Children {
		if child.Name != ChildND {
			continue
		}
		ref, ok := child.Attrs["ref"]
		if !ok {
			return nil, &MissingAttributeError{Kind: el.Kind, ID: id, Child: ChildND, Attribute: "ref"}
		}
		wayNodes = append(wayNodes, WayNode{ID: id, NodeID: ref, Position: len(wayNodes)})
	}
	return wayNodes, nil
}

func (s *Shaper) shapeTags(el *RawElement) ([]Tag, error) {
	var tags []Tag
	id := el.ID()
	for _, child := range el.Children {
		if child.Name != ChildTag {
			continue
		}
		k, ok := child.Attrs["k"]
		if !ok {
			return nil, &MissingAttributeError{Kind: el.Kind, ID: id, Child: ChildTag, Attribute: "k"}
		}
		key, typ, ok := s.ClassifyKey(k)
		if !ok {
			continue
		}
		tags = append(tags, Tag{
			ID:    id,
			Key:   key,
			Value: s.Correct(child.Attrs["v"]),
			Type:  typ,
		})
	}
	return tags, nil
}
