// Package reader streams node and way elements out of OSM documents.
package reader

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// Reader yields one element at a time. Next returns io.EOF after the
// last element.
type Reader interface {
	Next() (*shaper.RawElement, error)
	Close() error
}

// countingReader tracks how many bytes have been consumed from the source
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// File is a Reader opened from a path
type File struct {
	Reader
	counter *countingReader
	closers []io.Closer
	size    int64
}

// Size returns the size of the input file in bytes
func (f *File) Size() int64 {
	return f.size
}

// BytesRead returns the number of (compressed) bytes consumed so far
func (f *File) BytesRead() int64 {
	return f.counter.n.Load()
}

// Close closes the element reader and the underlying file
func (f *File) Close() error {
	err := f.Reader.Close()
	for i := len(f.closers) - 1; i >= 0; i-- {
		if cerr := f.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens an OSM file for reading. Files ending in .pbf are read as
// PBF; everything else as XML, decompressing .gz and .bz2 on the fly.
func Open(ctx context.Context, path string, procs int) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}

	file := &File{
		counter: &countingReader{r: f},
		closers: []io.Closer{f},
		size:    info.Size(),
	}

	var src io.Reader = file.counter
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".pbf"):
		file.Reader = NewPBFReader(ctx, src, procs)
		return file, nil
	case strings.HasSuffix(lower, ".gz"):
		gzReader, err := gzip.NewReader(src)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		file.closers = append(file.closers, gzReader)
		src = gzReader
	case strings.HasSuffix(lower, ".bz2"):
		src = bzip2.NewReader(src)
	}

	file.Reader = NewXMLReader(src)
	return file, nil
}
