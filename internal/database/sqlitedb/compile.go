package sqlitedb

import (
	"fmt"
	"strings"

	"github.com/dmelo/painel/internal/database"
)

// Records for every collection live in one table as JSON documents; filters
// and ordering compile to json_extract expressions over the document column.
//
// All values are parameterized, never interpolated.

// column returns the SQL expression addressing a record column.
func column(name string) string {
	// json_extract paths use single quotes; column names come from callers,
	// not users, but escape anyway.
	escaped := strings.ReplaceAll(name, "'", "''")
	return fmt.Sprintf("json_extract(data, '$.%s')", escaped)
}

// compileWhere builds the WHERE fragment for a filter list (AND semantics).
// The returned fragment always starts with " AND" so callers can append it
// to the mandatory collection predicate.
func compileWhere(filters []database.Filter) (string, []any, error) {
	var sb strings.Builder
	var params []any

	for _, f := range filters {
		frag, p, err := compileFilter(f)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(frag)
		params = append(params, p...)
	}
	return sb.String(), params, nil
}

func compileFilter(f database.Filter) (string, []any, error) {
	expr := column(f.Column)

	switch f.Operator {
	case database.OpEq:
		return expr + " = ?", []any{f.Value}, nil
	case database.OpNeq:
		return expr + " != ?", []any{f.Value}, nil
	case database.OpGt:
		return expr + " > ?", []any{f.Value}, nil
	case database.OpGte:
		return expr + " >= ?", []any{f.Value}, nil
	case database.OpLt:
		return expr + " < ?", []any{f.Value}, nil
	case database.OpLte:
		return expr + " <= ?", []any{f.Value}, nil
	case database.OpILike:
		// SQLite LIKE is case-insensitive for ASCII, which is exactly ilike.
		return expr + " LIKE ?", []any{f.Value}, nil
	case database.OpLike:
		// Case-sensitive match via GLOB with a translated pattern.
		pattern, ok := f.Value.(string)
		if !ok {
			return "", nil, database.NewError(database.KindValidation, "like pattern must be a string")
		}
		return expr + " GLOB ?", []any{likeToGlob(pattern)}, nil
	case database.OpIn:
		values, ok := f.Value.([]any)
		if !ok {
			return "", nil, database.Errorf(database.KindValidation, "in filter on %q requires a value list", f.Column)
		}
		if len(values) == 0 {
			// Empty membership matches nothing.
			return "1 = 0", nil, nil
		}
		placeholders := strings.Repeat("?, ", len(values))
		return fmt.Sprintf("%s IN (%s)", expr, placeholders[:len(placeholders)-2]), values, nil
	case database.OpIs:
		return expr + " IS NULL", nil, nil
	case database.OpNot:
		return expr + " IS NOT NULL", nil, nil
	default:
		return "", nil, database.Errorf(database.KindValidation, "unsupported filter operator %q", f.Operator)
	}
}

// compileOrder builds the ORDER BY clause. Every query gets the id column as
// the final tiebreaker so results are deterministic across runs.
func compileOrder(orderBy []database.OrderBy) string {
	var parts []string
	for _, ob := range orderBy {
		dir := "DESC"
		if ob.Ascending {
			dir = "ASC"
		}
		parts = append(parts, column(ob.Column)+" "+dir)
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

// likeToGlob translates a SQL LIKE pattern into a GLOB pattern:
// "%" becomes "*", "_" becomes "?", GLOB metacharacters are bracketed.
func likeToGlob(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteRune('*')
		case '_':
			sb.WriteRune('?')
		case '*', '?', '[':
			sb.WriteString("[" + string(r) + "]")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
