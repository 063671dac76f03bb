// Package osmxml streams top-level elements out of an OSM XML document.
package osmxml

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"iter"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

var (
	errNoRoot           = errors.New("document has no root element")
	errContentAfterRoot = errors.New("content after root element")
	errTextOutsideRoot  = errors.New("text outside root element")
)

// Walker yields each direct child of the document root, fully materialized,
// in document order. Only one top-level element is held in memory at a time.
// A Walker is single-use and not safe for concurrent use.
type Walker struct {
	dec      *xml.Decoder
	depth    int
	sawRoot  bool
	finished bool
	err      error
	count    int
}

// NewWalker wraps r. The reader is consumed lazily by Next.
func NewWalker(r io.Reader) *Walker {
	return &Walker{dec: xml.NewDecoder(r)}
}

// Next returns the next top-level element, or io.EOF once the root element
// has closed and the input is drained. A syntax error, or any element or text
// after the root closes, ends the walk with a *domain.MalformedDocumentError;
// every later call returns the same error.
func (w *Walker) Next() (*domain.Element, error) {
	if w.finished {
		return nil, w.terminal()
	}

	for {
		tok, err := w.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !w.sawRoot {
					return nil, w.fail(errNoRoot)
				}
				w.finished = true
				return nil, io.EOF
			}
			return nil, w.fail(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if w.depth == 0 {
				// encoding/xml does not enforce a single root.
				if w.sawRoot {
					return nil, w.fail(errContentAfterRoot)
				}
				w.sawRoot = true
				w.depth = 1
				continue
			}
			el, err := w.build(t)
			if err != nil {
				return nil, w.fail(err)
			}
			w.count++
			return el, nil
		case xml.EndElement:
			w.depth = 0
		case xml.CharData:
			if w.depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, w.fail(errTextOutsideRoot)
			}
		}
	}
}

// Count returns the number of top-level elements yielded so far.
func (w *Walker) Count() int { return w.count }

// All adapts the walker to a range-over-func sequence. Iteration stops after
// the first error is yielded; io.EOF is not yielded.
func (w *Walker) All() iter.Seq2[*domain.Element, error] {
	return func(yield func(*domain.Element, error) bool) {
		for {
			el, err := w.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(el, err) || err != nil {
				return
			}
		}
	}
}

// ExtractBatch reads up to batchSize elements. It returns io.EOF together
// with the final, possibly empty, batch once the document is exhausted.
func (w *Walker) ExtractBatch(ctx context.Context, batchSize int) ([]*domain.Element, error) {
	batch := make([]*domain.Element, 0, batchSize)
	for len(batch) < batchSize {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		el, err := w.Next()
		if err != nil {
			return batch, err
		}
		batch = append(batch, el)
	}
	return batch, nil
}

// build materializes the subtree opened by start.
func (w *Walker) build(start xml.StartElement) (*domain.Element, error) {
	el := &domain.Element{Tag: start.Name.Local}
	if len(start.Attr) > 0 {
		el.Attrs = make([]domain.Attr, len(start.Attr))
		for i, a := range start.Attr {
			el.Attrs[i] = domain.Attr{Name: attrName(a.Name), Value: a.Value}
		}
	}

	for {
		tok, err := w.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := w.build(t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.EndElement:
			return el, nil
		}
	}
}

func attrName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (w *Walker) fail(err error) error {
	w.finished = true
	w.err = &domain.MalformedDocumentError{Offset: w.dec.InputOffset(), Err: err}
	return w.err
}

func (w *Walker) terminal() error {
	if w.err != nil {
		return w.err
	}
	return io.EOF
}
