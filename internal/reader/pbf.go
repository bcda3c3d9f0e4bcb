package reader

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// PBFReader reads nodes and ways from an OSM PBF stream
type PBFReader struct {
	scanner *osmpbf.Scanner
}

// NewPBFReader creates a reader decoding blocks with procs goroutines
func NewPBFReader(ctx context.Context, r io.Reader, procs int) *PBFReader {
	if procs < 1 {
		procs = 1
	}
	scanner := osmpbf.New(ctx, r, procs)
	scanner.SkipRelations = true
	return &PBFReader{scanner: scanner}
}

// Next returns the next node or way element
func (p *PBFReader) Next() (*shaper.RawElement, error) {
	for p.scanner.Scan() {
		switch o := p.scanner.Object().(type) {
		case *osm.Node:
			return nodeElement(o), nil
		case *osm.Way:
			return wayElement(o), nil
		}
	}
	if err := p.scanner.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return nil, io.EOF
}

// Close stops the decoder goroutines
func (p *PBFReader) Close() error {
	return p.scanner.Close()
}

func nodeElement(n *osm.Node) *shaper.RawElement {
	attrs := map[string]string{
		"id":  strconv.FormatInt(int64(n.ID), 10),
		"lat": strconv.FormatFloat(n.Lat, 'f', -1, 64),
		"lon": strconv.FormatFloat(n.Lon, 'f', -1, 64),
	}
	addMetadata(attrs, n.Version, n.User, int64(n.UserID), int64(n.ChangesetID), n.Timestamp)

	return &shaper.RawElement{
		Kind:     shaper.KindNode,
		Attrs:    attrs,
		Children: tagChildren(n.Tags),
	}
}

func wayElement(w *osm.Way) *shaper.RawElement {
	attrs := map[string]string{
		"id": strconv.FormatInt(int64(w.ID), 10),
	}
	addMetadata(attrs, w.Version, w.User, int64(w.UserID), int64(w.ChangesetID), w.Timestamp)

	children := make([]shaper.Child, 0, len(w.Nodes)+len(w.Tags))
	for _, wn := range w.Nodes {
		children = append(children, shaper.Child{
			Name:  shaper.ChildND,
			Attrs: map[string]string{"ref": strconv.FormatInt(int64(wn.ID), 10)},
		})
	}
	children = append(children, tagChildren(w.Tags)...)

	return &shaper.RawElement{
		Kind:     shaper.KindWay,
		Attrs:    attrs,
		Children: children,
	}
}

// addMetadata fills the author attributes. Files written without metadata
// have version 0; those attributes are left out entirely.
func addMetadata(attrs map[string]string, version int, user string, uid, changeset int64, ts time.Time) {
	if version == 0 {
		return
	}
	attrs["version"] = strconv.Itoa(version)
	attrs["user"] = user
	attrs["uid"] = strconv.FormatInt(uid, 10)
	attrs["changeset"] = strconv.FormatInt(changeset, 10)
	attrs["timestamp"] = ts.UTC().Format(time.RFC3339)
}

func tagChildren(tags osm.Tags) []shaper.Child {
	children := make([]shaper.Child, 0, len(tags))
	for _, tag := range tags {
		children = append(children, shaper.Child{
			Name:  shaper.ChildTag,
			Attrs: map[string]string{"k": tag.Key, "v": tag.Value},
		})
	}
	return children
}
