// Package format implements the streamable chunk formatters: text, path,
// tsv/tab, nt/ntriples, nq/nquads, and any identifier beginning with
// "json". This is the Formatter Factory external collaborator from spec §6,
// kept deliberately thin — the core treats formatting as outside its
// concern, but a complete implementation still needs one to actually stream
// a chunk's response body.
package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/errors"
)

// Options configures a formatter instance for one request.
type Options struct {
	Host            string
	URI             string
	WithData        bool
	WithMeta        bool
	WithHistory     bool
	RequireSubjectUniqueness bool
}

// Formatter streams a chunk of records to w.
type Formatter interface {
	FormatChunk(w io.Writer, records []record.Record, opts Options) error
}

// New constructs the formatter for the requested format identifier. Any
// other identifier produces a client error naming it, per spec's exact
// message text.
func New(name string) (Formatter, error) {
	switch name {
	case "", "text":
		return textFormatter{}, nil
	case "path":
		return pathFormatter{}, nil
	case "tsv", "tab":
		return tsvFormatter{}, nil
	case "nt", "ntriples":
		return ntFormatter{}, nil
	case "nq", "nquads":
		return nqFormatter{}, nil
	default:
		if isJSONVariant(name) {
			return jsonFormatter{}, nil
		}
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400,
			"requested format (%s) is invalid for as streamable response", name)
	}
}

func isJSONVariant(name string) bool {
	return len(name) >= 4 && name[:4] == "json"
}

type textFormatter struct{}

func (textFormatter) FormatChunk(w io.Writer, records []record.Record, opts Options) error {
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", r.UUID, r.IndexTime); err != nil {
			return err
		}
	}
	return nil
}

type pathFormatter struct{}

func (pathFormatter) FormatChunk(w io.Writer, records []record.Record, opts Options) error {
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\n", r.Path); err != nil {
			return err
		}
	}
	return nil
}

type tsvFormatter struct{}

func (tsvFormatter) FormatChunk(w io.Writer, records []record.Record, opts Options) error {
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", r.UUID, r.Path, r.IndexTime, r.Deleted); err != nil {
			return err
		}
	}
	return nil
}

// ntFormatter emits N-Triples, one statement per field per record.
type ntFormatter struct{}

func (ntFormatter) FormatChunk(w io.Writer, records []record.Record, opts Options) error {
	return writeTriples(w, records, opts, false)
}

// nqFormatter emits N-Quads: the same as N-Triples but with an extra graph
// term carrying indexTime, so that consecutive versions of a subject are
// distinguishable even when emitted adjacently.
type nqFormatter struct{}

func (nqFormatter) FormatChunk(w io.Writer, records []record.Record, opts Options) error {
	return writeTriples(w, records, opts, true)
}

// writeTriples emits one line per (record, field) pair. When
// RequireSubjectUniqueness is set (nt/nq with history), records sharing a
// subject must be grouped contiguously so that no other subject's triples
// interleave between two versions of the same one.
func writeTriples(w io.Writer, records []record.Record, opts Options, withGraph bool) error {
	ordered := records
	if opts.RequireSubjectUniqueness {
		ordered = groupBySubject(records)
	}
	for _, r := range ordered {
		subject := fmt.Sprintf("<%s%s>", opts.Host, r.UUID)
		for field, value := range r.Fields {
			predicate := fmt.Sprintf("<%s#%s>", opts.Host, field)
			object := fmt.Sprintf("%q", fmt.Sprint(value))
			if withGraph {
				graph := fmt.Sprintf("<%s?indexTime=%d>", opts.Host, r.IndexTime)
				if _, err := fmt.Fprintf(w, "%s %s %s %s .\n", subject, predicate, object, graph); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(w, "%s %s %s .\n", subject, predicate, object); err != nil {
				return err
			}
		}
	}
	return nil
}

// groupBySubject returns records reordered so that every record sharing a
// UUID appears contiguously, preserving first-seen subject order and, within
// a subject, original relative order (typically version/indexTime order).
func groupBySubject(records []record.Record) []record.Record {
	bySubject := make(map[string][]record.Record, len(records))
	var order []string
	for _, r := range records {
		if _, seen := bySubject[r.UUID]; !seen {
			order = append(order, r.UUID)
		}
		bySubject[r.UUID] = append(bySubject[r.UUID], r)
	}
	out := make([]record.Record, 0, len(records))
	for _, uuid := range order {
		out = append(out, bySubject[uuid]...)
	}
	return out
}

type jsonFormatter struct{}

func (jsonFormatter) FormatChunk(w io.Writer, records []record.Record, opts Options) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if !opts.WithData {
			r.Data = nil
		}
		if !opts.WithMeta {
			r.Fields = nil
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
