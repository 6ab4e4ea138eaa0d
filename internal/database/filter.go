package database

// Operator identifies a filter comparison. The set below is the binding
// contract every backend adapter must support.
type Operator string

// Supported filter operators.
const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpILike Operator = "ilike"
	OpIn    Operator = "in"
	OpIs    Operator = "is"
	OpNot   Operator = "not"
)

// Filter is one column predicate. Multiple filters always AND-combine.
type Filter struct {
	Column   string
	Operator Operator
	Value    any
}

// FilterBuilder accumulates filters through a fluent chain. Each builder is
// scoped to one call site: Build returns an independent copy, so a chain
// never leaks state into an unrelated query construction.
type FilterBuilder struct {
	filters []Filter
}

// NewFilter creates an empty filter builder.
func NewFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// Eq appends an equality filter.
func (b *FilterBuilder) Eq(column string, value any) *FilterBuilder {
	return b.append(column, OpEq, value)
}

// Neq appends an inequality filter.
func (b *FilterBuilder) Neq(column string, value any) *FilterBuilder {
	return b.append(column, OpNeq, value)
}

// Gt appends a greater-than filter.
func (b *FilterBuilder) Gt(column string, value any) *FilterBuilder {
	return b.append(column, OpGt, value)
}

// Gte appends a greater-than-or-equal filter.
func (b *FilterBuilder) Gte(column string, value any) *FilterBuilder {
	return b.append(column, OpGte, value)
}

// Lt appends a less-than filter.
func (b *FilterBuilder) Lt(column string, value any) *FilterBuilder {
	return b.append(column, OpLt, value)
}

// Lte appends a less-than-or-equal filter.
func (b *FilterBuilder) Lte(column string, value any) *FilterBuilder {
	return b.append(column, OpLte, value)
}

// Like appends a case-sensitive pattern filter ("%" wildcards).
func (b *FilterBuilder) Like(column, pattern string) *FilterBuilder {
	return b.append(column, OpLike, pattern)
}

// ILike appends a case-insensitive pattern filter ("%" wildcards).
func (b *FilterBuilder) ILike(column, pattern string) *FilterBuilder {
	return b.append(column, OpILike, pattern)
}

// In appends a membership filter over the given values.
func (b *FilterBuilder) In(column string, values ...any) *FilterBuilder {
	return b.append(column, OpIn, values)
}

// IsNull appends a null-check filter.
func (b *FilterBuilder) IsNull(column string) *FilterBuilder {
	return b.append(column, OpIs, nil)
}

// IsNotNull appends a not-null-check filter.
func (b *FilterBuilder) IsNotNull(column string) *FilterBuilder {
	return b.append(column, OpNot, nil)
}

// Len returns the number of filters accumulated so far.
func (b *FilterBuilder) Len() int {
	return len(b.filters)
}

// Build returns the accumulated filters in append order. The returned slice
// is a copy; further chaining on the builder does not alias it.
func (b *FilterBuilder) Build() []Filter {
	out := make([]Filter, len(b.filters))
	copy(out, b.filters)
	return out
}

func (b *FilterBuilder) append(column string, op Operator, value any) *FilterBuilder {
	b.filters = append(b.filters, Filter{Column: column, Operator: op, Value: value})
	return b
}
