package datasource

// Column is a table column as reported by the catalog.
type Column struct {
	Name     string
	Type     string // normalised upper case, e.g. "VARCHAR(255)"
	Nullable bool
	Default  *string
}

// ForeignKey is one foreign key constraint. Columns and RefColumns are
// positionally paired.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
}

// RowSet is a small materialised query result.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *RowSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}
