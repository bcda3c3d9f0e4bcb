package rowwriter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// ParquetPath returns the file path of a stream's Parquet output
func ParquetPath(dir, stream string) string {
	return filepath.Join(dir, stream+".parquet")
}

// NewParquetSink writes the five streams as zstd-compressed Parquet files.
// All columns are strings except ways_nodes.position (int32).
func NewParquetSink(dir string, tables shaper.Tables, batchSize int) (Sink, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if batchSize < 1 {
		batchSize = 100000
	}

	set := &streamSet{writers: make(map[string]streamWriter, len(Streams))}
	headers := Headers(tables)

	for _, name := range Streams {
		w, err := newParquetStream(ParquetPath(dir, name), parquetSchema(name, headers[name]), batchSize)
		if err != nil {
			set.Close()
			return nil, err
		}
		set.writers[name] = w
	}

	return set, nil
}

func parquetSchema(stream string, header []string) *arrow.Schema {
	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if stream == StreamWayNodes && name == "position" {
			typ = arrow.PrimitiveTypes.Int32
		}
		fields[i] = arrow.Field{Name: name, Type: typ, Nullable: false}
	}
	return arrow.NewSchema(fields, nil)
}

// parquetStream writes one Parquet file in row groups of batchSize rows
type parquetStream struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
}

func newParquetStream(path string, schema *arrow.Schema, batchSize int) (*parquetStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &parquetStream{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

func (w *parquetStream) WriteRow(values []string) error {
	if len(values) != w.builder.Schema().NumFields() {
		return fmt.Errorf("row has %d values, schema has %d", len(values), w.builder.Schema().NumFields())
	}

	// Parse the whole row before appending so a bad value leaves the
	// builders untouched
	ints := make(map[int]int32)
	for i, v := range values {
		if _, ok := w.builder.Field(i).(*array.Int32Builder); ok {
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return fmt.Errorf("column %s: %w", w.builder.Schema().Field(i).Name, err)
			}
			ints[i] = int32(n)
		}
	}

	for i, v := range values {
		switch b := w.builder.Field(i).(type) {
		case *array.Int32Builder:
			b.Append(ints[i])
		case *array.StringBuilder:
			b.Append(v)
		}
	}

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *parquetStream) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

func (w *parquetStream) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	// the writer may already have closed the file
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
