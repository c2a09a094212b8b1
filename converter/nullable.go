package converter

import (
	"rowbridge/column"
	"rowbridge/types"
)

// NullableDeserializer short-circuits NULL slots to a NULL of kind without
// calling d.
func NullableDeserializer[E External](kind types.Kind, d Deserializer[E]) Deserializer[E] {
	return func(in E, pos int) (column.Value, error) {
		if in.IsNullAt(pos) {
			return column.NullOf(kind), nil
		}
		return d(in, pos)
	}
}

// NullableSerializer writes a NULL slot for a nil row or a NULL field without
// calling s.
func NullableSerializer[E External](s Serializer[E]) Serializer[E] {
	return func(row *column.Row, pos int, out E) error {
		if row == nil || row.IsNullAt(pos) {
			out.SetNull(pos)
			return nil
		}
		return s(row, pos, out)
	}
}
