package filter

import (
	"reflect"
	"sort"
	"testing"
)

func TestConjoinTimeRange_NilFilter(t *testing.T) {
	got := ConjoinTimeRange(nil, 1000, 2000)
	if got == nil {
		t.Fatal("ConjoinTimeRange(nil, ...) returned nil")
	}
	if len(got.Must) != 2 {
		t.Fatalf("expected 2 must clauses (gte, lt), got %d", len(got.Must))
	}
	for _, f := range got.Must {
		if !f.IsLeaf() {
			t.Errorf("expected leaf condition, got %+v", f)
		}
		if f.Condition.Field != "indexTime" {
			t.Errorf("expected indexTime field, got %q", f.Condition.Field)
		}
	}
}

func TestConjoinTimeRange_PlainConjunction(t *testing.T) {
	base := Leaf("title", ComparatorEq, "hello")
	got := ConjoinTimeRange(base, 1000, 2000)

	if got == nil {
		t.Fatal("ConjoinTimeRange returned nil")
	}
	// The original leaf plus the two time-range leaves should all end up as
	// top-level Must clauses.
	if len(got.Must) < 3 {
		t.Fatalf("expected at least 3 must clauses, got %d: %+v", len(got.Must), got.Must)
	}
}

func TestConjoinTimeRange_WrapsTopLevelShould(t *testing.T) {
	should := &Filter{Should: []*Filter{Leaf("a", ComparatorEq, 1), Leaf("b", ComparatorEq, 2)}}
	if !should.HasTopLevelShould() {
		t.Fatal("test fixture should have a top-level Should")
	}

	got := ConjoinTimeRange(should, 1000, 2000)
	if got == nil {
		t.Fatal("ConjoinTimeRange returned nil")
	}
	if got.HasTopLevelShould() {
		t.Error("conjoined filter must not expose the original Should at the top level")
	}
	if len(got.Must) != 3 {
		t.Fatalf("expected the wrapped should plus the 2 time range clauses as 3 must clauses, got %d", len(got.Must))
	}

	foundShould := false
	for _, f := range got.Must {
		if len(f.Should) == 2 {
			foundShould = true
		}
	}
	if !foundShould {
		t.Error("original Should clause was not preserved as a nested conjunct")
	}
}

func TestPathFilter_Canonicalize(t *testing.T) {
	cases := []struct {
		name string
		pf   *PathFilter
		want *PathFilter
	}{
		{"root recursive canonicalizes to nil", &PathFilter{Path: "/", Recursive: true}, nil},
		{"root non-recursive stays", &PathFilter{Path: "/", Recursive: false}, &PathFilter{Path: "/", Recursive: false}},
		{"non-root recursive stays", &PathFilter{Path: "/data/a", Recursive: true}, &PathFilter{Path: "/data/a", Recursive: true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.pf.Canonicalize()
			if c.want == nil {
				if got != nil {
					t.Errorf("Canonicalize() = %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *c.want {
				t.Errorf("Canonicalize() = %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestFilter_Fields(t *testing.T) {
	f := And(
		Leaf("title", ComparatorEq, "x"),
		Leaf("status", ComparatorEq, "y"),
		&Filter{Should: []*Filter{Leaf("title", ComparatorEq, "z"), Leaf("owner", ComparatorExists, nil)}},
	)

	got := f.Fields()
	sort.Strings(got)
	want := []string{"owner", "status", "title"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
}

func TestFilter_Fields_Nil(t *testing.T) {
	var f *Filter
	if got := f.Fields(); len(got) != 0 {
		t.Errorf("Fields() on nil filter = %v, want empty", got)
	}
}

func TestLeaf_IsLeaf(t *testing.T) {
	l := Leaf("field", ComparatorEq, 1)
	if !l.IsLeaf() {
		t.Error("Leaf() result should report IsLeaf() == true")
	}
	if l.Condition == nil || l.Condition.Field != "field" {
		t.Errorf("unexpected condition: %+v", l.Condition)
	}
}

func TestAnd_NotLeaf(t *testing.T) {
	a := And(Leaf("a", ComparatorEq, 1), Leaf("b", ComparatorEq, 2))
	if a.IsLeaf() {
		t.Error("And() result should not be a leaf")
	}
	if len(a.Must) != 2 {
		t.Errorf("expected 2 must clauses, got %d", len(a.Must))
	}
}
