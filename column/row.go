package column

import "strings"

// Row is an ordered, fixed-arity sequence of values. A Row is filled once by a
// converter and treated as read-only afterwards.
type Row struct {
	fields []Value
}

// NewRow returns a row of the given arity with every field NULL.
func NewRow(arity int) *Row {
	return &Row{fields: make([]Value, arity)}
}

// RowOf returns a row holding values in order.
func RowOf(values ...Value) *Row {
	return &Row{fields: append([]Value(nil), values...)}
}

func (r *Row) Arity() int { return len(r.fields) }

func (r *Row) Field(pos int) Value { return r.fields[pos] }

func (r *Row) SetField(pos int, v Value) { r.fields[pos] = v }

func (r *Row) IsNullAt(pos int) bool { return r.fields[pos].IsNull() }

func (r *Row) String() string {
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
