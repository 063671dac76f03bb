// Package jsonl writes records as a stream of JSON objects, one per line or,
// in pretty mode, indented by four spaces.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

// DefaultPath is where shape output goes when no path is configured:
// the input path with ".json" appended.
func DefaultPath(input string) string {
	return input + ".json"
}

// Writer buffers encoded records to an underlying writer.
// It implements pipeline.BatchLoader.
type Writer struct {
	buf     *bufio.Writer
	scratch bytes.Buffer
	enc     *json.Encoder
	closer  io.Closer
}

// NewWriter wraps w. Close flushes, and closes w when it is an io.Closer.
func NewWriter(w io.Writer, pretty bool) *Writer {
	jw := &Writer{buf: bufio.NewWriter(w)}
	jw.enc = json.NewEncoder(&jw.scratch)
	jw.enc.SetEscapeHTML(false)
	if pretty {
		jw.enc.SetIndent("", "    ")
	}
	if c, ok := w.(io.Closer); ok {
		jw.closer = c
	}
	return jw
}

// Create opens (truncating) the file at path for writing.
func Create(path string, pretty bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return NewWriter(f, pretty), nil
}

// LoadBatch encodes each record in order. A batch is written whole or not
// at all, so a retried batch never duplicates lines. Records are flushed on
// Close or when the buffer fills.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.Record) error {
	w.scratch.Reset()
	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.enc.Encode(records[i]); err != nil {
			return fmt.Errorf("encode record %s: %w", records[i].Key(), err)
		}
	}
	if _, err := w.buf.Write(w.scratch.Bytes()); err != nil {
		return fmt.Errorf("write %d records: %w", len(records), err)
	}
	return nil
}

// Close flushes buffered output and closes the underlying writer.
func (w *Writer) Close() error {
	err := w.buf.Flush()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}
	return err
}

// Read decodes records from r until EOF, calling fn for each. It accepts both
// compact and indented output.
func Read(r io.Reader, fn func(domain.Record) error) error {
	dec := json.NewDecoder(bufio.NewReader(r))
	for n := 1; ; n++ {
		var rec domain.Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode record %d: %w", n, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
