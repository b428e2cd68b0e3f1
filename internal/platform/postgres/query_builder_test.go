package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSQLBuilderPlaceholderNumbering verifies that placeholders increment
// strictly and stay aligned with the parameter slice regardless of which
// fields are added.
func TestSQLBuilderPlaceholderNumbering(t *testing.T) {
	b := newSQLBuilder()
	b.Add("title", "a")
	b.Add("status", "new")
	idx := b.Param(int64(7))

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 3, idx, "Param should take the next placeholder index")
	assert.Equal(t, []any{"a", "new", int64(7)}, b.Params())
	assert.Equal(t, "WHERE title = $1 AND status = $2", b.WhereClause())
	assert.Equal(t, "title = $1, status = $2", b.SetClause())
}

// TestSQLBuilderEmpty verifies the empty builder emits no WHERE clause.
func TestSQLBuilderEmpty(t *testing.T) {
	b := newSQLBuilder()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "", b.WhereClause())
	assert.Empty(t, b.Params())
}

// TestSQLBuilderFragmentParamAlignment verifies that for pure-assignment
// usage every fragment has exactly one bound parameter, across all
// presence combinations of three optional fields.
func TestSQLBuilderFragmentParamAlignment(t *testing.T) {
	columns := []string{"title", "description", "status"}

	for mask := 0; mask < 1<<len(columns); mask++ {
		b := newSQLBuilder()
		for i, column := range columns {
			if mask&(1<<i) != 0 {
				b.Add(column, i)
			}
		}

		assert.Equal(t, b.Len(), len(b.Params()),
			"fragment count and parameter count must match for mask %b", mask)
	}
}

// TestSQLBuilderRaw verifies raw fragments join the clause without
// consuming a placeholder or binding a parameter.
func TestSQLBuilderRaw(t *testing.T) {
	b := newSQLBuilder()
	b.Add("title", "a")
	b.Raw("updated_at = NOW()")
	idx := b.Param(int64(7))

	assert.Equal(t, 2, idx, "raw fragments must not advance the placeholder counter")
	assert.Equal(t, "title = $1, updated_at = NOW()", b.SetClause())
	assert.Equal(t, []any{"a", int64(7)}, b.Params())
}

// TestSQLBuilderParamOnly verifies that Param-only usage still numbers
// from $1.
func TestSQLBuilderParamOnly(t *testing.T) {
	b := newSQLBuilder()

	first := b.Param(10)
	second := b.Param(20)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, []any{10, 20}, b.Params())
	assert.Equal(t, "", b.WhereClause())
}
