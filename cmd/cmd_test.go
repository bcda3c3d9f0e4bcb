package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wegman-software/osmshape/internal/rowwriter"
)

const cityOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="40.78" lon="-73.95" version="2" changeset="3" timestamp="2010-07-22T16:16:51Z" user="a" uid="4">
    <tag k="addr:street" v="5th Ave"/>
    <tag k="amenity" v="cafe"/>
  </node>
  <node id="2" lat="40.79" lon="-73.96" version="1" changeset="3" timestamp="2010-07-22T16:16:52Z" user="a" uid="4"/>
  <way id="10" version="1" changeset="5" timestamp="2013-03-13T15:58:04Z" user="b" uid="6">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="name" v="W St"/>
  </way>
</osm>`

func execute(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestShapeCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "city.osm")
	if err := os.WriteFile(input, []byte(cityOSM), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")

	if err := execute(t, "shape", "-o", out, "-j", "1", "--format", "csv", input); err != nil {
		t.Fatalf("shape failed: %v", err)
	}

	tests := []struct {
		stream string
		header string
		rows   int
	}{
		{rowwriter.StreamNodes, "id,lat,lon,user,uid,version,changeset,timestamp", 2},
		{rowwriter.StreamNodeTags, "id,key,value,type", 2},
		{rowwriter.StreamWays, "id,user,uid,version,changeset,timestamp", 1},
		{rowwriter.StreamWayNodes, "id,node_id,position", 2},
		{rowwriter.StreamWayTags, "id,key,value,type", 1},
	}

	for _, tt := range tests {
		data, err := os.ReadFile(rowwriter.CSVPath(out, tt.stream))
		if err != nil {
			t.Errorf("%s: %v", tt.stream, err)
			continue
		}
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if lines[0] != tt.header {
			t.Errorf("%s header = %q, want %q", tt.stream, lines[0], tt.header)
		}
		if got := len(lines) - 1; got != tt.rows {
			t.Errorf("%s has %d rows, want %d", tt.stream, got, tt.rows)
		}
	}
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"shape without inputs", []string{"shape"}},
		{"load with arguments", []string{"load", "extra.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := execute(t, tt.args...); err == nil {
				t.Error("expected argument error")
			}
		})
	}
}
