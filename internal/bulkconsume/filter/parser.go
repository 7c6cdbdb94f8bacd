package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse compiles a qp expression into a Filter tree. The grammar is a
// whitespace-separated sequence of `field:comparator:value` clauses joined
// by AND / OR / NOT, mirroring the token-scanning shape of the older
// free-text query parser this one replaces:
//
//	qp=status:eq:active AND age:gte:18 OR region:text:emea NOT flagged:exists:true
//
// AND/OR set the combinator applied to the clauses that follow, until the
// next AND/OR token; NOT negates only the next clause. Clauses that follow
// an OR go into the top-level Should list; clauses that follow an AND, or
// that open the expression, go into Must.
// Field names, not raw text tokens, are resolved against the caller's
// field-types cache before evaluation — Parse itself only builds the tree.
func Parse(query string) (*Filter, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	words := strings.Fields(query)
	var mustClauses, shouldClauses, mustNotClauses []*Filter
	combinator := "AND"
	negateNext := false

	for _, word := range words {
		switch strings.ToUpper(word) {
		case "AND":
			combinator = "AND"
			continue
		case "OR":
			combinator = "OR"
			continue
		case "NOT":
			negateNext = true
			continue
		}

		clause, err := parseClause(word)
		if err != nil {
			return nil, err
		}

		switch {
		case negateNext:
			mustNotClauses = append(mustNotClauses, clause)
			negateNext = false
		case combinator == "OR":
			shouldClauses = append(shouldClauses, clause)
		default:
			mustClauses = append(mustClauses, clause)
		}
	}

	return &Filter{Must: mustClauses, Should: shouldClauses, MustNot: mustNotClauses}, nil
}

func parseClause(token string) (*Filter, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("malformed qp clause %q: expected field:comparator[:value]", token)
	}
	field := parts[0]
	cmp := Comparator(strings.ToLower(parts[1]))
	switch cmp {
	case ComparatorEq, ComparatorNeq, ComparatorGt, ComparatorGte, ComparatorLt, ComparatorLte, ComparatorText, ComparatorExists:
	default:
		return nil, fmt.Errorf("malformed qp clause %q: unknown comparator %q", token, parts[1])
	}
	if field == "" {
		return nil, fmt.Errorf("malformed qp clause %q: empty field name", token)
	}

	if cmp == ComparatorExists {
		var value any = true
		if len(parts) == 3 {
			value = parts[2] == "true"
		}
		return Leaf(field, cmp, value), nil
	}

	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed qp clause %q: comparator %q requires a value", token, parts[1])
	}
	return Leaf(field, cmp, coerceValue(parts[2])), nil
}

// coerceValue tries numeric and boolean interpretations before falling
// back to the raw string; the field-types cache is the authority on the
// field's declared type and may re-coerce downstream.
func coerceValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
