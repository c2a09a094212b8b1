package converter

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"rowbridge/column"
	"rowbridge/types"
)

func TestObjectRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123_456_000, time.UTC)
	specs := fields(
		"b", "BOOLEAN",
		"i8", "INT8",
		"i16", "SMALLINT",
		"i32", "INTEGER",
		"i64", "UINT64",
		"f32", "FLOAT32",
		"f64", "FLOAT64",
		"dec", "DECIMAL128(20,4)",
		"s", "FIXEDSTRING",
		"d", "DATE",
		"t", "TIME",
		"ts", "TIMESTAMP(6)",
		"bin", "BYTES",
		"n", "NULL",
	)
	in := GenericRecord{
		true, int8(-1), int16(2), int32(3), int64(4), float32(1.25), 2.5,
		decimal.RequireFromString("12.3456"), "str",
		column.EpochDays(ts), column.MillisOfDay(ts), ts, []byte{1, 2}, nil,
	}

	c, err := NewObjectConverter(specs)
	require.NoError(t, err)

	row, err := c.ToInternal(in)
	require.NoError(t, err)
	for i, f := range specs {
		lt, err := types.ResolveString(f.Type)
		require.NoError(t, err)
		require.Equal(t, lt.Kind, row.Field(i).Kind(), f.Name)
	}
	require.Equal(t, 6, row.Field(11).Precision())
	require.Equal(t, 4, row.Field(7).Scale())
	require.True(t, row.IsNullAt(13))

	rec, err := c.ToExternal(row, NewGenericRecord(len(specs)))
	require.NoError(t, err)
	out, ok := rec.(GenericRecord)
	require.True(t, ok)
	require.Equal(t, in[:7], out[:7])
	require.True(t, decimal.RequireFromString("12.3456").Equal(out[7].(decimal.Decimal)))
	require.Equal(t, in[8:10], out[8:10])
	require.Equal(t, int32(25_689_123), out[10])
	require.True(t, ts.Equal(out[11].(time.Time)))
	require.Equal(t, []byte{1, 2}, out[12])
	require.Nil(t, out[13])
}

func TestObjectDecimalRoundsToScale(t *testing.T) {
	c, err := NewObjectConverter(fields("d", "DECIMAL(10,2)"))
	require.NoError(t, err)

	out, err := c.ToExternal(column.RowOf(column.Double(1.005)), NewGenericRecord(1))
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.01").Equal(out.Get(0).(decimal.Decimal)))
}

func TestObjectKindMismatch(t *testing.T) {
	c, err := NewObjectConverter(fields("a", "INT"))
	require.NoError(t, err)

	row, err := c.ToInternal(GenericRecord{"1"})
	require.Nil(t, row)
	var sme *ShapeMismatchError
	require.True(t, errors.As(err, &sme))
	require.Equal(t, "string", sme.Got)
}

func TestObjectNilRecord(t *testing.T) {
	c, err := NewObjectConverter(fields("a", "INT"))
	require.NoError(t, err)

	var sme *ShapeMismatchError
	_, err = c.ToInternal(nil)
	require.True(t, errors.As(err, &sme))
	_, err = c.ToExternal(column.RowOf(column.Int(1)), nil)
	require.True(t, errors.As(err, &sme))
}

func TestObjectWildcardNilRecord(t *testing.T) {
	c, err := NewObjectConverter([]types.FieldSpec{{Name: types.Wildcard}})
	require.NoError(t, err)

	var sme *ShapeMismatchError
	var rec GenericRecord
	row, err := c.ToInternal(rec)
	require.Nil(t, row)
	require.True(t, errors.As(err, &sme))
	_, err = c.ToExternal(nil, rec)
	require.True(t, errors.As(err, &sme))
}

func TestObjectWildcard(t *testing.T) {
	c, err := NewObjectConverter([]types.FieldSpec{{Name: "*"}})
	require.NoError(t, err)
	require.Equal(t, Wildcard, c.Mode())

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	row, err := c.ToInternal(GenericRecord{int64(5), nil, []byte("raw"), ts, decimal.RequireFromString("1.50")})
	require.NoError(t, err)
	require.Equal(t, 5, row.Arity())

	want := []string{"5", "", "raw", "2024-01-01 00:00:00.000000000", "1.5"}
	for i, w := range want {
		if i == 1 {
			require.True(t, row.IsNullAt(1))
			require.Equal(t, types.String, row.Field(1).Kind())
			continue
		}
		require.Equal(t, types.String, row.Field(i).Kind())
		s, err := row.Field(i).AsString()
		require.NoError(t, err)
		require.Equal(t, w, s)
	}

	out, err := c.ToExternal(row, NewGenericRecord(5))
	require.NoError(t, err)
	require.Equal(t, GenericRecord{"5", nil, "raw", "2024-01-01 00:00:00.000000000", "1.5"}, out)
}

func TestObjectLookup(t *testing.T) {
	c, err := NewObjectConverter(fields("a", "BIGINT"))
	require.NoError(t, err)

	row, err := c.ToInternalLookup(GenericRecord{int64(9)})
	require.NoError(t, err)
	n, err := row.Field(0).AsInt64()
	require.NoError(t, err)
	require.Equal(t, int64(9), n)
}

func TestObjectUnsupported(t *testing.T) {
	_, err := NewObjectConverter(fields("a", "ARRAY"))
	var ute *types.UnsupportedTypeError
	require.True(t, errors.As(err, &ute))
	require.Equal(t, "ARRAY", ute.Type)

	c, err := NewObjectConverter(fields("a", "BINARY", "b", "STRUCT"))
	require.NoError(t, err)
	require.Len(t, c.Fields(), 2)
}

func TestNullableWrappersSkipInner(t *testing.T) {
	calls := 0
	d := NullableDeserializer(types.Decimal, func(GenericRecord, int) (column.Value, error) {
		calls++
		return column.Value{}, errors.New("must not be called")
	})
	s := NullableSerializer(func(*column.Row, int, GenericRecord) error {
		calls++
		return errors.New("must not be called")
	})

	v, err := d(GenericRecord{nil}, 0)
	require.NoError(t, err)
	require.True(t, v.IsNull())
	require.Equal(t, types.Decimal, v.Kind())

	out := GenericRecord{"stale"}
	require.NoError(t, s(nil, 0, out))
	require.Nil(t, out[0])

	out[0] = "stale"
	require.NoError(t, s(column.RowOf(column.NullOf(types.Int)), 0, out))
	require.Nil(t, out[0])
	require.Zero(t, calls)
}
