package types

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAliases(t *testing.T) {
	families := map[Kind][]string{
		Boolean:  {"BOOLEAN"},
		TinyInt:  {"TINYINT", "INT8", "UINT8"},
		SmallInt: {"SMALLINT", "UINT16", "INT16"},
		Int: {"INTEGER", "INT", "INT32", "INTERVALYEAR", "INTERVALQUARTER", "INTERVALMONTH",
			"INTERVALWEEK", "INTERVALDAY", "INTERVALHOUR", "INTERVALMINUTE", "INTERVALSECOND"},
		BigInt:  {"BIGINT", "INT64", "UINT32", "UINT64"},
		Float:   {"FLOAT", "FLOAT32"},
		Double:  {"DOUBLE", "FLOAT64"},
		Decimal: {"DECIMAL", "DECIMAL32", "DECIMAL64", "DECIMAL128", "DEC"},
		String: {"UUID", "COLLECTION", "BLOB", "LONGTEXT", "TINYTEXT", "TEXT", "CHAR", "MEDIUMTEXT",
			"TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "STRUCT", "VARCHAR", "STRING", "ENUM8", "ENUM16",
			"FIXEDSTRING", "NESTED"},
		Date:      {"DATE"},
		Time:      {"TIME"},
		Timestamp: {"TIMESTAMP", "DATETIME"},
		Binary:    {"BYTES", "BINARY"},
		Null:      {"NOTHING", "NULLABLE", "NULL"},
	}
	for kind, names := range families {
		for _, name := range names {
			for _, raw := range []string{name, strings.ToLower(name)} {
				lt, err := ResolveString(raw)
				require.NoError(t, err, raw)
				require.Equal(t, kind, lt.Kind, raw)
			}
		}
	}
}

func TestResolvePrecision(t *testing.T) {
	tests := []struct {
		raw  string
		want LogicalType
	}{
		{"DECIMAL", DecimalType(38, 18)},
		{"DECIMAL(10,2)", DecimalType(10, 2)},
		{"dec( 12 , 4 )", DecimalType(12, 4)},
		{"DECIMAL(10)", DecimalType(38, 18)},
		{"DECIMAL(a,b)", DecimalType(38, 18)},
		{"TIMESTAMP", TimestampType(3)},
		{"TIMESTAMP(6)", TimestampType(6)},
		{"TIMESTAMP(0)", TimestampType(0)},
		{"TIMESTAMP(6,1)", TimestampType(3)},
		{"DATETIME", TimestampType(3)},
		{"DATETIME(6)", TimestampType(3)},
		{"TIME(6)", LogicalType{Kind: Time}},
		{"VARCHAR(255)", LogicalType{Kind: String}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ResolveString(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUnsupported(t *testing.T) {
	for _, raw := range []string{"ARRAY", "MAP", "UNION", "GEOMETRY", "", "DECIMAL(50,2)", "DECIMAL(5,6)", "TIMESTAMP(12)"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ResolveString(raw)
			var ute *UnsupportedTypeError
			require.True(t, errors.As(err, &ute))
			require.Equal(t, raw, ute.Type)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	for name := range aliases {
		a, err := ResolveString(name)
		require.NoError(t, err)
		b, err := ResolveString(name)
		require.NoError(t, err)
		require.Equal(t, a, b)
	}
}

func TestIsWildcard(t *testing.T) {
	require.True(t, IsWildcard([]FieldSpec{{Name: "*"}}))
	require.False(t, IsWildcard([]FieldSpec{{Name: "*"}, {Name: "a"}}))
	require.False(t, IsWildcard([]FieldSpec{{Name: "a", Type: "*"}}))
	require.False(t, IsWildcard(nil))
}

func TestLogicalTypeString(t *testing.T) {
	require.Equal(t, "DECIMAL(10, 2)", DecimalType(10, 2).String())
	require.Equal(t, "TIMESTAMP(6)", TimestampType(6).String())
	require.Equal(t, "BOOLEAN", LogicalType{Kind: Boolean}.String())
}
