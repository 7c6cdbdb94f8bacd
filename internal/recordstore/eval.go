package recordstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/filter"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore/tokenizer"
)

// MatchesPath reports whether rec.Path satisfies pf. A nil pf (including
// the canonical "/" + recursive=true case) matches everything.
func MatchesPath(pf *filter.PathFilter, path string) bool {
	pf = pf.Canonicalize()
	if pf == nil {
		return true
	}
	if pf.Recursive {
		return strings.HasPrefix(path, pf.Path)
	}
	return path == pf.Path
}

// Matches evaluates a FieldFilter tree against a record. A nil filter
// matches everything.
func Matches(f *filter.Filter, rec record.Record) bool {
	if f == nil {
		return true
	}
	if f.IsLeaf() {
		return matchesCondition(f.Condition, rec)
	}
	for _, must := range f.Must {
		if !Matches(must, rec) {
			return false
		}
	}
	for _, mustNot := range f.MustNot {
		if Matches(mustNot, rec) {
			return false
		}
	}
	if len(f.Should) > 0 {
		anyMatch := false
		for _, should := range f.Should {
			if Matches(should, rec) {
				anyMatch = true
				break
			}
		}
		if !anyMatch {
			return false
		}
	}
	return true
}

func matchesCondition(c *filter.Condition, rec record.Record) bool {
	if c == nil {
		return true
	}
	actual, present := rec.Fields[c.Field]

	switch c.Comparator {
	case filter.ComparatorExists:
		want, _ := c.Value.(bool)
		return present == want
	case filter.ComparatorText:
		if !present {
			return false
		}
		needle := tokenizer.Tokenize(fmt.Sprint(c.Value))
		haystack := tokenizer.Tokenize(fmt.Sprint(actual))
		if len(needle) == 0 {
			return true
		}
		hay := make(map[string]struct{}, len(haystack))
		for _, t := range haystack {
			hay[t.Term] = struct{}{}
		}
		for _, n := range needle {
			if _, ok := hay[n.Term]; !ok {
				return false
			}
		}
		return true
	}

	if !present {
		return false
	}

	switch c.Comparator {
	case filter.ComparatorEq:
		return fmt.Sprint(actual) == fmt.Sprint(c.Value)
	case filter.ComparatorNeq:
		return fmt.Sprint(actual) != fmt.Sprint(c.Value)
	case filter.ComparatorGt, filter.ComparatorGte, filter.ComparatorLt, filter.ComparatorLte:
		a, aok := toFloat(actual)
		b, bok := toFloat(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Comparator {
		case filter.ComparatorGt:
			return a > b
		case filter.ComparatorGte:
			return a >= b
		case filter.ComparatorLt:
			return a < b
		default:
			return a <= b
		}
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
