package memstore

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dmelo/painel/internal/database"
)

// collator orders strings the same way regardless of platform locale, so
// ordered reads are stable across machines.
var collator = collate.New(language.Und)

// matchAll reports whether row satisfies every filter (AND semantics).
func matchAll(row database.Record, filters []database.Filter) (bool, error) {
	for _, f := range filters {
		ok, err := match(row, f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func match(row database.Record, f database.Filter) (bool, error) {
	value, present := row[f.Column]

	switch f.Operator {
	case database.OpIs:
		return !present || value == nil, nil
	case database.OpNot:
		return present && value != nil, nil
	}

	if !present || value == nil {
		// A missing column never satisfies a value comparison.
		return false, nil
	}

	switch f.Operator {
	case database.OpEq:
		return equal(value, f.Value), nil
	case database.OpNeq:
		return !equal(value, f.Value), nil
	case database.OpGt, database.OpGte, database.OpLt, database.OpLte:
		cmp, err := compare(value, f.Value)
		if err != nil {
			return false, err
		}
		switch f.Operator {
		case database.OpGt:
			return cmp > 0, nil
		case database.OpGte:
			return cmp >= 0, nil
		case database.OpLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case database.OpLike:
		return matchPattern(value, f.Value, false)
	case database.OpILike:
		return matchPattern(value, f.Value, true)
	case database.OpIn:
		values, ok := f.Value.([]any)
		if !ok {
			return false, database.Errorf(database.KindValidation, "in filter on %q requires a value list", f.Column)
		}
		for _, candidate := range values {
			if equal(value, candidate) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, database.Errorf(database.KindValidation, "unsupported filter operator %q", f.Operator)
	}
}

// equal compares two values, coercing numeric types so 3 and 3.0 agree.
func equal(a, b any) bool {
	if fa, aok := toFloat(a); aok {
		fb, bok := toFloat(b)
		return bok && fa == fb
	}
	return a == b
}

// compare orders two values of compatible types. Numbers compare
// numerically, strings through the collator, booleans false-before-true.
func compare(a, b any) (int, error) {
	if fa, aok := toFloat(a); aok {
		fb, bok := toFloat(b)
		if !bok {
			return 0, database.Errorf(database.KindValidation, "cannot compare number with %T", b)
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if sa, aok := a.(string); aok {
		sb, bok := b.(string)
		if !bok {
			return 0, database.Errorf(database.KindValidation, "cannot compare string with %T", b)
		}
		return collator.CompareString(sa, sb), nil
	}
	if ba, aok := a.(bool); aok {
		bb, bok := b.(bool)
		if !bok {
			return 0, database.Errorf(database.KindValidation, "cannot compare bool with %T", b)
		}
		switch {
		case ba == bb:
			return 0, nil
		case bb:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return 0, database.Errorf(database.KindValidation, "unorderable value type %T", a)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// matchPattern evaluates a SQL LIKE pattern ("%" any run, "_" one rune).
func matchPattern(value, pattern any, foldCase bool) (bool, error) {
	s, ok := value.(string)
	if !ok {
		return false, nil
	}
	p, ok := pattern.(string)
	if !ok {
		return false, database.NewError(database.KindValidation, "like pattern must be a string")
	}
	re, err := likeRegexp(p, foldCase)
	if err != nil {
		return false, database.WrapError(database.KindValidation, fmt.Sprintf("like pattern %q", p), err)
	}
	return re.MatchString(s), nil
}

func likeRegexp(pattern string, foldCase bool) (*regexp.Regexp, error) {
	var sb strings.Builder
	if foldCase {
		sb.WriteString("(?i)")
	}
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// sortRecords applies the order directives in sequence, earlier directives
// taking precedence. Unorderable values keep their relative position.
func sortRecords(rows []database.Record, orderBy []database.OrderBy) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			a, b := rows[i][ob.Column], rows[j][ob.Column]
			if a == nil || b == nil {
				if a == nil && b == nil {
					continue
				}
				// Nulls sort last regardless of direction.
				return b == nil
			}
			cmp, err := compare(a, b)
			if err != nil || cmp == 0 {
				continue
			}
			if ob.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}
