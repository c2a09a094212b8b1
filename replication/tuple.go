package replication

import (
	"github.com/jackc/pglogrepl"

	"rowbridge/converter"
)

// TupleToRecord maps a pgoutput tuple onto a text record. Null and unchanged
// TOAST columns become NULL slots; binary columns are refused.
func TupleToRecord(tuple *pglogrepl.TupleData) (converter.TextRecord, error) {
	if tuple == nil {
		return nil, &converter.ShapeMismatchError{Want: "tuple", Got: "nil"}
	}

	rec := converter.NewTextRecord(len(tuple.Columns))
	for i, col := range tuple.Columns {
		switch col.DataType {
		case pglogrepl.TupleDataTypeNull, pglogrepl.TupleDataTypeToast:
			rec.SetNull(i)
		case pglogrepl.TupleDataTypeText:
			rec.Set(i, string(col.Data))
		case pglogrepl.TupleDataTypeBinary:
			return nil, &converter.ShapeMismatchError{Want: "text column", Got: "binary column"}
		default:
			return nil, &converter.ShapeMismatchError{Want: "text column", Got: string(rune(col.DataType))}
		}
	}
	return rec, nil
}
