// Package filter implements FieldFilter and PathFilter, the opaque
// recursive predicate trees that the range-discovery core treats as
// black boxes except where it must conjoin them with an indexTime range.
package filter

import "fmt"

// Comparator names a single leaf comparison operator.
type Comparator string

const (
	ComparatorEq     Comparator = "eq"
	ComparatorNeq    Comparator = "neq"
	ComparatorGt     Comparator = "gt"
	ComparatorGte    Comparator = "gte"
	ComparatorLt     Comparator = "lt"
	ComparatorLte    Comparator = "lte"
	ComparatorText   Comparator = "text"
	ComparatorExists Comparator = "exists"
)

// Condition is a single leaf predicate: (fieldName, comparator, value?).
type Condition struct {
	Field      string     `json:"field"`
	Comparator Comparator `json:"comparator"`
	Value      any        `json:"value,omitempty"`
}

// Filter is a node in the Must/Should/MustNot predicate tree. A node is
// either a leaf (Condition != nil) or a combinator (one or more of
// Must/Should/MustNot populated). Combinator and leaf fields are mutually
// exclusive.
type Filter struct {
	Must      []*Filter  `json:"must,omitempty"`
	Should    []*Filter  `json:"should,omitempty"`
	MustNot   []*Filter  `json:"mustNot,omitempty"`
	Condition *Condition `json:"condition,omitempty"`
}

// IsLeaf reports whether f is a terminal condition node.
func (f *Filter) IsLeaf() bool {
	return f != nil && f.Condition != nil
}

// HasTopLevelShould reports whether f is a bare disjunction at its root,
// i.e. the hazard case the range-discovery core must guard against before
// conjoining a time-range clause (see ConjoinTimeRange).
func (f *Filter) HasTopLevelShould() bool {
	return f != nil && len(f.Should) > 0
}

// Leaf constructs a single-condition filter node.
func Leaf(field string, cmp Comparator, value any) *Filter {
	return &Filter{Condition: &Condition{Field: field, Comparator: cmp, Value: value}}
}

// And returns a conjunction of the given filters, skipping nils.
func And(filters ...*Filter) *Filter {
	f := &Filter{}
	for _, child := range filters {
		if child != nil {
			f.Must = append(f.Must, child)
		}
	}
	return f
}

// indexTimeRange builds the Must-conjoined pair of leaf conditions
// equivalent to `indexTime >= from AND indexTime < to`.
func indexTimeRange(from, to int64) []*Filter {
	return []*Filter{
		Leaf("indexTime", ComparatorGte, from),
		Leaf("indexTime", ComparatorLt, to),
	}
}

// ConjoinTimeRange conjoins an arbitrary field filter with the half-open
// indexTime interval [from, to), preserving the intended semantics of a
// top-level Should: a bare disjunction is wrapped in a conjunction before
// intersection with the time clause, otherwise the time bound would be
// treated as optional by the backing search engine.
func ConjoinTimeRange(f *Filter, from, to int64) *Filter {
	timeClauses := indexTimeRange(from, to)
	if f == nil {
		return &Filter{Must: timeClauses}
	}
	if f.IsLeaf() {
		return &Filter{Must: append([]*Filter{f}, timeClauses...)}
	}
	if f.HasTopLevelShould() {
		wrapped := &Filter{Must: []*Filter{{Should: f.Should, Must: f.Must, MustNot: f.MustNot}}}
		wrapped.Must = append(wrapped.Must, timeClauses...)
		return wrapped
	}
	out := &Filter{
		Must:    append(append([]*Filter{}, f.Must...), timeClauses...),
		Should:  f.Should,
		MustNot: f.MustNot,
	}
	return out
}

// PathFilter is a pair (path, recursive?). Canonicalization: a request for
// "/" with recursive=true matches everything and is represented as an
// absent filter.
type PathFilter struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

// Canonicalize returns nil when the filter matches every path, otherwise
// pf unchanged.
func (pf *PathFilter) Canonicalize() *PathFilter {
	if pf == nil {
		return nil
	}
	if pf.Path == "/" && pf.Recursive {
		return nil
	}
	return pf
}

// Fields returns every distinct field name referenced by a leaf condition
// anywhere in f, for callers that need to warm or validate a field-types
// cache before the filter reaches the backing search engine.
func (f *Filter) Fields() []string {
	if f == nil {
		return nil
	}
	seen := map[string]bool{}
	var walk func(*Filter)
	walk = func(node *Filter) {
		if node == nil {
			return
		}
		if node.IsLeaf() {
			seen[node.Condition.Field] = true
			return
		}
		for _, child := range node.Must {
			walk(child)
		}
		for _, child := range node.Should {
			walk(child)
		}
		for _, child := range node.MustNot {
			walk(child)
		}
	}
	walk(f)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

func (pf *PathFilter) String() string {
	if pf == nil {
		return "(match-all)"
	}
	return fmt.Sprintf("path=%s recursive=%t", pf.Path, pf.Recursive)
}
