package converter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rowbridge/column"
	"rowbridge/types"
)

// Record is a positionally indexed record that knows the runtime type of its
// slots, such as a row read from a columnar file. Getters fail with a
// *ShapeMismatchError when the slot does not hold the requested kind.
//
// Set receives the Go form of a field: bool, int8, int16, int32 (INT, DATE as
// epoch days, TIME as milliseconds of day), int64, float32, float64,
// decimal.Decimal, string, []byte or time.Time (TIMESTAMP).
type Record interface {
	External
	Get(pos int) any
	Bool(pos int) (bool, error)
	Int8(pos int) (int8, error)
	Int16(pos int) (int16, error)
	Int32(pos int) (int32, error)
	Int64(pos int) (int64, error)
	Float32(pos int) (float32, error)
	Float64(pos int) (float64, error)
	Decimal(pos, precision, scale int) (decimal.Decimal, error)
	String(pos int) (string, error)
	Bytes(pos int) ([]byte, error)
	Timestamp(pos, precision int) (time.Time, error)
	Set(pos int, v any) error
}

// ObjectConverter converts between typed records and rows.
type ObjectConverter = RowConverter[Record]

// NewObjectConverter builds a converter that reads fields purely from their
// declared logical types. A single "*" field selects every slot as a string.
func NewObjectConverter(fields []types.FieldSpec) (*ObjectConverter, error) {
	return build(variant[Record]{
		name: "object",
		pair: objectPair,
		opaque: Pair[Record]{
			Deserialize: func(in Record, pos int) (column.Value, error) {
				return column.String(opaqueString(in.Get(pos))), nil
			},
			Serialize: objectOut(column.Value.AsString),
		},
		lookup: true,
	}, fields)
}

func opaqueString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return column.FormatTimestamp(v, 9)
	default:
		return fmt.Sprint(v)
	}
}

func objectPair(f types.FieldSpec) (Pair[Record], types.LogicalType, error) {
	lt, err := types.ResolveString(f.Type)
	if err != nil {
		return Pair[Record]{}, types.LogicalType{}, err
	}

	var p Pair[Record]
	switch lt.Kind {
	case types.Boolean:
		p.Deserialize = objectIn(Record.Bool, column.Bool)
		p.Serialize = objectOut(column.Value.AsBool)
	case types.TinyInt:
		p.Deserialize = objectIn(Record.Int8, column.TinyInt)
		p.Serialize = objectOut(column.Value.AsInt8)
	case types.SmallInt:
		p.Deserialize = objectIn(Record.Int16, column.SmallInt)
		p.Serialize = objectOut(column.Value.AsInt16)
	case types.Int:
		p.Deserialize = objectIn(Record.Int32, column.Int)
		p.Serialize = objectOut(column.Value.AsInt32)
	case types.BigInt:
		p.Deserialize = objectIn(Record.Int64, column.BigInt)
		p.Serialize = objectOut(column.Value.AsInt64)
	case types.Float:
		p.Deserialize = objectIn(Record.Float32, column.Float)
		p.Serialize = objectOut(column.Value.AsFloat32)
	case types.Double:
		p.Deserialize = objectIn(Record.Float64, column.Double)
		p.Serialize = objectOut(column.Value.AsFloat64)
	case types.Decimal:
		p.Deserialize = func(in Record, pos int) (column.Value, error) {
			d, err := in.Decimal(pos, lt.Precision, lt.Scale)
			if err != nil {
				return column.Value{}, err
			}
			return column.Decimal(d, lt.Precision, lt.Scale), nil
		}
		p.Serialize = objectOut(func(v column.Value) (decimal.Decimal, error) {
			d, err := v.AsDecimal()
			return d.Round(int32(lt.Scale)), err
		})
	case types.String:
		p.Deserialize = objectIn(Record.String, column.String)
		p.Serialize = objectOut(column.Value.AsString)
	case types.Date:
		p.Deserialize = objectIn(Record.Int32, func(days int32) column.Value {
			return column.Date(column.FromEpochDays(days))
		})
		p.Serialize = objectOut(func(v column.Value) (int32, error) {
			t, err := v.AsTime()
			return column.EpochDays(t), err
		})
	case types.Time:
		p.Deserialize = objectIn(Record.Int32, func(ms int32) column.Value {
			return column.Time(column.FromMillisOfDay(ms))
		})
		p.Serialize = objectOut(func(v column.Value) (int32, error) {
			t, err := v.AsTime()
			return column.MillisOfDay(t), err
		})
	case types.Timestamp:
		p.Deserialize = func(in Record, pos int) (column.Value, error) {
			t, err := in.Timestamp(pos, lt.Precision)
			if err != nil {
				return column.Value{}, err
			}
			return column.Timestamp(t, lt.Precision), nil
		}
		p.Serialize = objectOut(column.Value.AsTime)
	case types.Binary:
		p.Deserialize = objectIn(Record.Bytes, column.Bytes)
		p.Serialize = objectOut(column.Value.AsBytes)
	case types.Null:
		p.Deserialize = func(Record, int) (column.Value, error) {
			return column.NullOf(types.Null), nil
		}
		p.Serialize = func(_ *column.Row, pos int, out Record) error {
			out.SetNull(pos)
			return nil
		}
	default:
		return Pair[Record]{}, types.LogicalType{}, &types.UnsupportedTypeError{Type: f.Type}
	}
	return p, lt, nil
}

func objectIn[T any](get func(Record, int) (T, error), wrap func(T) column.Value) Deserializer[Record] {
	return func(in Record, pos int) (column.Value, error) {
		v, err := get(in, pos)
		if err != nil {
			return column.Value{}, err
		}
		return wrap(v), nil
	}
}

func objectOut[T any](read func(column.Value) (T, error)) Serializer[Record] {
	return func(row *column.Row, pos int, out Record) error {
		v, err := read(row.Field(pos))
		if err != nil {
			return err
		}
		return out.Set(pos, v)
	}
}
