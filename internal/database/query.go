package database

// Operation identifies what a query does against its table.
type Operation string

// Supported query operations.
const (
	OperationSelect Operation = "select"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationUpsert Operation = "upsert"
)

// OrderBy is one sort directive.
type OrderBy struct {
	Column    string
	Ascending bool
}

// Query is a complete backend-neutral operation descriptor. A Query without
// a table or operation is invalid and never reaches an adapter.
type Query struct {
	Table     string
	Operation Operation
	Filters   []Filter
	OrderBy   []OrderBy
	Limit     int
	Single    bool
	Data      []Record
}

// QueryBuilder composes a Query through a fluent chain. Like FilterBuilder,
// each builder is call-scoped and Build hands out an independent value.
type QueryBuilder struct {
	q Query
}

// NewQuery creates an empty query builder.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{}
}

// Table sets the target table.
func (b *QueryBuilder) Table(table string) *QueryBuilder {
	b.q.Table = table
	return b
}

// Operation sets the query operation.
func (b *QueryBuilder) Operation(op Operation) *QueryBuilder {
	b.q.Operation = op
	return b
}

// Where appends filters to the query.
func (b *QueryBuilder) Where(filters ...Filter) *QueryBuilder {
	b.q.Filters = append(b.q.Filters, filters...)
	return b
}

// OrderBy appends a sort directive.
func (b *QueryBuilder) OrderBy(column string, ascending bool) *QueryBuilder {
	b.q.OrderBy = append(b.q.OrderBy, OrderBy{Column: column, Ascending: ascending})
	return b
}

// Limit caps the number of returned rows. Zero means no limit.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.q.Limit = n
	return b
}

// Single marks the query as expecting exactly one row.
func (b *QueryBuilder) Single() *QueryBuilder {
	b.q.Single = true
	return b
}

// Data sets the payload records for insert/update/upsert operations.
func (b *QueryBuilder) Data(records ...Record) *QueryBuilder {
	b.q.Data = append(b.q.Data, records...)
	return b
}

// Build validates and returns the composed query. It fails with a
// validation-kind error when the table or operation is missing.
func (b *QueryBuilder) Build() (Query, error) {
	if b.q.Table == "" {
		return Query{}, NewError(KindValidation, "query is missing a table")
	}
	if b.q.Operation == "" {
		return Query{}, NewError(KindValidation, "query is missing an operation")
	}
	q := b.q
	q.Filters = append([]Filter(nil), b.q.Filters...)
	q.OrderBy = append([]OrderBy(nil), b.q.OrderBy...)
	q.Data = append([]Record(nil), b.q.Data...)
	return q, nil
}
