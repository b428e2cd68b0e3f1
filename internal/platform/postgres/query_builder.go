package postgres

import (
	"fmt"
	"strings"
)

// sqlBuilder translates a set of optional filter or assignment fields into
// parameterized SQL fragments with strictly incrementing positional
// placeholders. Callers add only the fields that are explicitly present;
// placeholder numbering stays aligned with the parameter slice regardless
// of which fields those are.
//
// Values never enter the SQL text. Column names are compile-time constants
// at every call site; the bound value always travels in the parameter
// slice.
type sqlBuilder struct {
	fragments []string
	params    []any
	next      int
}

// newSQLBuilder returns a builder whose first placeholder is $1.
func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{next: 1}
}

// Add appends a "column = $n" fragment and binds its value.
func (b *sqlBuilder) Add(column string, value any) {
	b.fragments = append(b.fragments, fmt.Sprintf("%s = $%d", column, b.next))
	b.params = append(b.params, value)
	b.next++
}

// Raw appends a fragment verbatim without binding a parameter. Used for
// server-side expressions like "updated_at = NOW()", which must come from
// the database clock rather than travel as a bound value. The fragment is
// a compile-time constant at every call site.
func (b *sqlBuilder) Raw(fragment string) {
	b.fragments = append(b.fragments, fragment)
}

// Param binds a value without emitting a fragment and returns its
// placeholder index. Used for LIMIT/OFFSET and the WHERE id of an UPDATE,
// which do not belong to the fragment list but share the numbering.
func (b *sqlBuilder) Param(value any) int {
	idx := b.next
	b.params = append(b.params, value)
	b.next++
	return idx
}

// Len returns the number of fragments added so far. A zero length means
// the caller must not emit a WHERE or SET clause at all.
func (b *sqlBuilder) Len() int {
	return len(b.fragments)
}

// Params returns the bound parameter values in placeholder order.
func (b *sqlBuilder) Params() []any {
	return b.params
}

// WhereClause joins the fragments into a WHERE clause with AND.
// Returns the empty string when no fragments were added.
func (b *sqlBuilder) WhereClause() string {
	if len(b.fragments) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.fragments, " AND ")
}

// SetClause joins the fragments into the body of a SET clause.
// Callers must check Len first: an empty SET clause is a syntax error,
// never valid SQL to emit.
func (b *sqlBuilder) SetClause() string {
	return strings.Join(b.fragments, ", ")
}
