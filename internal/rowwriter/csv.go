package rowwriter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// CSVPath returns the file path of a stream's CSV output
func CSVPath(dir, stream string) string {
	return filepath.Join(dir, stream+".csv")
}

// NewCSVSink creates nodes.csv, nodes_tags.csv, ways.csv, ways_nodes.csv
// and ways_tags.csv in dir, each starting with a header row
func NewCSVSink(dir string, tables shaper.Tables) (Sink, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	set := &streamSet{writers: make(map[string]streamWriter, len(Streams))}
	headers := Headers(tables)

	for _, name := range Streams {
		w, err := newCSVStream(CSVPath(dir, name), headers[name])
		if err != nil {
			set.Close()
			return nil, err
		}
		set.writers[name] = w
	}

	return set, nil
}

// csvStream writes one CSV file
type csvStream struct {
	file   *os.File
	buf    *bufio.Writer
	writer *csv.Writer
	width  int
}

func newCSVStream(path string, header []string) (*csvStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	buf := bufio.NewWriterSize(f, 1<<20)
	w := &csvStream{
		file:   f,
		buf:    buf,
		writer: csv.NewWriter(buf),
		width:  len(header),
	}

	if err := w.writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	return w, nil
}

func (w *csvStream) WriteRow(values []string) error {
	if len(values) != w.width {
		return fmt.Errorf("row has %d values, header has %d", len(values), w.width)
	}
	return w.writer.Write(values)
}

func (w *csvStream) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
