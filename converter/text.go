package converter

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"rowbridge/column"
	"rowbridge/types"
)

// TextRecord is one row in text form, one slot per field. A nil slot is NULL.
type TextRecord []*string

func NewTextRecord(n int) TextRecord { return make(TextRecord, n) }

// TextRecordOf returns a record with every slot set.
func TextRecordOf(values ...string) TextRecord {
	r := NewTextRecord(len(values))
	for i, v := range values {
		r.Set(i, v)
	}
	return r
}

func (r TextRecord) Len() int { return len(r) }

func (r TextRecord) IsNullAt(pos int) bool { return r[pos] == nil }

func (r TextRecord) SetNull(pos int) { r[pos] = nil }

func (r TextRecord) Set(pos int, s string) { r[pos] = &s }

// Get returns the slot and whether it is set.
func (r TextRecord) Get(pos int) (string, bool) {
	if r[pos] == nil {
		return "", false
	}
	return *r[pos], true
}

// Bytes returns the record as wire values, nil for NULL.
func (r TextRecord) Bytes() [][]byte {
	out := make([][]byte, len(r))
	for i, s := range r {
		if s != nil {
			out[i] = []byte(*s)
		}
	}
	return out
}

// TextConverter converts between text records and rows.
type TextConverter = RowConverter[TextRecord]

// textRejected are composite or raw-binary names a text record cannot carry.
var textRejected = map[string]bool{
	"ARRAY":  true,
	"MAP":    true,
	"STRUCT": true,
	"UNION":  true,
	"BINARY": true,
	"BYTES":  true,
}

// NewTextConverter builds a converter for flat text records such as delimited
// file lines. Text converters do not serve lookups.
func NewTextConverter(fields []types.FieldSpec) (*TextConverter, error) {
	return build(variant[TextRecord]{
		name: "text",
		pair: textPair,
		opaque: Pair[TextRecord]{
			Deserialize: func(in TextRecord, pos int) (column.Value, error) {
				return column.String(*in[pos]), nil
			},
			Serialize: textOut(column.Value.AsString),
		},
	}, fields)
}

func textPair(f types.FieldSpec) (Pair[TextRecord], types.LogicalType, error) {
	d := types.Parse(f.Type)
	if textRejected[d.Base] {
		return Pair[TextRecord]{}, types.LogicalType{}, &types.UnsupportedTypeError{Type: f.Type}
	}
	lt, err := types.Resolve(d)
	if err != nil {
		return Pair[TextRecord]{}, types.LogicalType{}, err
	}

	var p Pair[TextRecord]
	switch lt.Kind {
	case types.Boolean:
		p.Deserialize = textIn(func(s string) (column.Value, error) {
			// Anything ParseBool rejects reads as false.
			b, _ := strconv.ParseBool(strings.TrimSpace(s))
			return column.Bool(b), nil
		})
		p.Serialize = textOut(func(v column.Value) (string, error) {
			b, err := v.AsBool()
			return strconv.FormatBool(b), err
		})
	case types.TinyInt, types.SmallInt, types.Int, types.BigInt, types.Float, types.Double, types.Decimal:
		p.Deserialize = textIn(func(s string) (column.Value, error) {
			d, err := decimal.NewFromString(strings.TrimSpace(s))
			if err != nil {
				return column.Value{}, &column.CastError{From: types.String, To: lt.String(), Err: err}
			}
			if lt.Kind == types.Decimal {
				return column.Decimal(d, lt.Precision, lt.Scale), nil
			}
			return column.Numeric(lt.Kind, d), nil
		})
		p.Serialize = textOut(numberText(lt))
	case types.String:
		p.Deserialize = textIn(func(s string) (column.Value, error) {
			return column.String(s), nil
		})
		p.Serialize = textOut(column.Value.AsString)
	case types.Timestamp:
		// Unparseable timestamps become NULL rather than failing the record.
		// Parsed values carry the field's precision, not the input's.
		p.Deserialize = textIn(func(s string) (column.Value, error) {
			t, _, ok := column.ParseTimestamp(s)
			if !ok {
				return column.NullOf(types.Timestamp), nil
			}
			return column.Timestamp(column.TruncateToPrecision(t, lt.Precision), lt.Precision), nil
		})
		p.Serialize = textOut(func(v column.Value) (string, error) {
			t, err := v.AsTime()
			return column.FormatTimestamp(t, lt.Precision), err
		})
	case types.Date:
		p.Deserialize = textIn(func(s string) (column.Value, error) {
			t, _, ok := column.ParseTimestamp(s)
			if !ok {
				return column.NullOf(types.Date), nil
			}
			return column.Date(t), nil
		})
		p.Serialize = textOut(func(v column.Value) (string, error) {
			t, err := v.AsTime()
			return t.UTC().Format(column.DateLayout), err
		})
	case types.Time:
		p.Deserialize = textIn(func(s string) (column.Value, error) {
			if t, err := column.ParseTime(s); err == nil {
				return column.Time(t), nil
			}
			if t, _, ok := column.ParseTimestamp(s); ok {
				return column.Time(t), nil
			}
			return column.NullOf(types.Time), nil
		})
		p.Serialize = textOut(func(v column.Value) (string, error) {
			t, err := v.AsTime()
			return column.FormatTime(t), err
		})
	case types.Null:
		p.Deserialize = func(TextRecord, int) (column.Value, error) {
			return column.NullOf(types.Null), nil
		}
		p.Serialize = func(_ *column.Row, pos int, out TextRecord) error {
			out.SetNull(pos)
			return nil
		}
	default:
		return Pair[TextRecord]{}, types.LogicalType{}, &types.UnsupportedTypeError{Type: f.Type}
	}
	return p, lt, nil
}

func textIn(parse func(string) (column.Value, error)) Deserializer[TextRecord] {
	return func(in TextRecord, pos int) (column.Value, error) {
		return parse(*in[pos])
	}
}

func textOut(render func(column.Value) (string, error)) Serializer[TextRecord] {
	return func(row *column.Row, pos int, out TextRecord) error {
		s, err := render(row.Field(pos))
		if err != nil {
			return err
		}
		out.Set(pos, s)
		return nil
	}
}

func numberText(lt types.LogicalType) func(column.Value) (string, error) {
	switch lt.Kind {
	case types.TinyInt:
		return func(v column.Value) (string, error) {
			n, err := v.AsInt8()
			return strconv.FormatInt(int64(n), 10), err
		}
	case types.SmallInt:
		return func(v column.Value) (string, error) {
			n, err := v.AsInt16()
			return strconv.FormatInt(int64(n), 10), err
		}
	case types.Int:
		return func(v column.Value) (string, error) {
			n, err := v.AsInt32()
			return strconv.FormatInt(int64(n), 10), err
		}
	case types.BigInt:
		return func(v column.Value) (string, error) {
			n, err := v.AsInt64()
			return strconv.FormatInt(n, 10), err
		}
	case types.Float:
		return func(v column.Value) (string, error) {
			f, err := v.AsFloat32()
			return strconv.FormatFloat(float64(f), 'f', -1, 32), err
		}
	case types.Double:
		return func(v column.Value) (string, error) {
			f, err := v.AsFloat64()
			return strconv.FormatFloat(f, 'f', -1, 64), err
		}
	default:
		scale := int32(lt.Scale)
		return func(v column.Value) (string, error) {
			d, err := v.AsDecimal()
			return d.StringFixed(scale), err
		}
	}
}
