package reader

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// XMLReader reads node and way elements from an OSM XML document.
// Relations and all other elements are skipped.
type XMLReader struct {
	decoder *xml.Decoder
}

// NewXMLReader creates a streaming reader over OSM XML
func NewXMLReader(r io.Reader) *XMLReader {
	return &XMLReader{decoder: xml.NewDecoder(r)}
}

// Next returns the next node or way element
func (x *XMLReader) Next() (*shaper.RawElement, error) {
	for {
		token, err := x.decoder.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case string(shaper.KindNode), string(shaper.KindWay):
			return x.parseElement(se)
		}
	}
}

// Close is a no-op; the underlying reader is owned by the caller
func (x *XMLReader) Close() error {
	return nil
}

// parseElement collects the attributes and direct children of a node or way
func (x *XMLReader) parseElement(start xml.StartElement) (*shaper.RawElement, error) {
	el := &shaper.RawElement{
		Kind:  shaper.Kind(start.Name.Local),
		Attrs: attrMap(start.Attr),
	}

	depth := 0
	for {
		token, err := x.decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("XML parse error: unexpected EOF inside %s %s", el.Kind, el.ID())
		}
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}

		switch se := token.(type) {
		case xml.StartElement:
			if depth == 0 {
				el.Children = append(el.Children, shaper.Child{
					Name:  se.Name.Local,
					Attrs: attrMap(se.Attr),
				})
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return el, nil
			}
			depth--
		}
	}
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		m[attr.Name.Local] = attr.Value
	}
	return m
}
