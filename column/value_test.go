package column

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowbridge/types"
)

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	require.True(t, v.IsNull())
	require.Equal(t, types.Null, v.Kind())

	n := NullOf(types.Timestamp)
	require.True(t, n.IsNull())
	require.Equal(t, types.Timestamp, n.Kind())
	require.Equal(t, "NULL", n.String())

	_, err := n.AsString()
	var ce *CastError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, types.Null, ce.From)
}

func TestNumericKeepsDigits(t *testing.T) {
	v := Numeric(types.BigInt, decimal.RequireFromString("123456789012345678901234.5"))
	require.Equal(t, types.BigInt, v.Kind())

	s, err := v.AsString()
	require.NoError(t, err)
	require.Equal(t, "123456789012345678901234.5", s)

	_, err = v.AsInt64()
	require.Error(t, err)

	small := Numeric(types.TinyInt, decimal.RequireFromString("12.7"))
	n, err := small.AsInt8()
	require.NoError(t, err)
	require.Equal(t, int8(12), n)

	_, err = Numeric(types.TinyInt, decimal.NewFromInt(300)).AsInt8()
	require.Error(t, err)
}

func TestAccessors(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 123_000_000, time.UTC)

	tests := []struct {
		name  string
		value Value
		str   string
	}{
		{"bool", Bool(true), "true"},
		{"tinyint", TinyInt(-3), "-3"},
		{"smallint", SmallInt(300), "300"},
		{"int", Int(70000), "70000"},
		{"bigint", BigInt(1 << 40), "1099511627776"},
		{"float", Float(1.5), "1.5"},
		{"double", Double(2.25), "2.25"},
		{"decimal", Decimal(decimal.RequireFromString("123.450"), 10, 3), "123.45"},
		{"string", String("abc"), "abc"},
		{"bytes", Bytes([]byte("xyz")), "xyz"},
		{"date", Date(ts), "2024-01-01"},
		{"time", Time(time.Date(0, 1, 1, 8, 9, 10, 0, time.UTC)), "08:09:10"},
		{"timestamp", Timestamp(ts, 3), "2024-01-01 00:00:00.123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, tt.value.IsNull())
			s, err := tt.value.AsString()
			require.NoError(t, err)
			require.Equal(t, tt.str, s)
		})
	}
}

func TestNumericConversions(t *testing.T) {
	n, err := Double(42.9).AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	f, err := Int(7).AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	d, err := String(" 1.25 ").AsDecimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("1.25")))

	b, err := BigInt(0).AsBool()
	require.NoError(t, err)
	assert.False(t, b)

	_, err = Int(1 << 20).AsInt16()
	require.Error(t, err)

	_, err = Bool(true).AsDecimal()
	require.Error(t, err)

	_, err = Double(1e300).AsFloat32()
	require.Error(t, err)
}

func TestTemporalAccessors(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 123_000_000, time.UTC)

	got, err := BigInt(ts.UnixMilli()).AsTime()
	require.NoError(t, err)
	require.True(t, ts.Equal(got))

	got, err = String("2024-01-01 00:00:00.123").AsTime()
	require.NoError(t, err)
	require.True(t, ts.Equal(got))

	s, err := Date(ts).AsTimestampString()
	require.NoError(t, err)
	require.Equal(t, "2024-01-01 00:00:00", s)

	s, err = Timestamp(ts, 6).AsTimestampString()
	require.NoError(t, err)
	require.Equal(t, "2024-01-01 00:00:00.123000", s)

	_, err = Bool(true).AsTime()
	require.Error(t, err)
}

func TestRow(t *testing.T) {
	r := NewRow(2)
	require.Equal(t, 2, r.Arity())
	require.True(t, r.IsNullAt(0))

	r.SetField(1, String("x"))
	require.False(t, r.IsNullAt(1))
	require.Equal(t, "[NULL, STRING(x)]", r.String())

	r2 := RowOf(Bool(true), NullOf(types.Int))
	require.Equal(t, 2, r2.Arity())
	require.True(t, r2.IsNullAt(1))
	require.Equal(t, types.Int, r2.Field(1).Kind())
}
