package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		base string
		args []string
	}{
		{name: "plain", raw: "varchar", base: "VARCHAR"},
		{name: "decimal args", raw: "decimal(10, 2)", base: "DECIMAL", args: []string{"10", "2"}},
		{name: "single arg", raw: "Timestamp(6)", base: "TIMESTAMP", args: []string{"6"}},
		{name: "empty args", raw: "TIMESTAMP()", base: "TIMESTAMP", args: []string{""}},
		{name: "leading paren", raw: "(10)", base: "(10)"},
		{name: "unbalanced open", raw: "DECIMAL(10,2", base: "DECIMAL(10,2"},
		{name: "reversed", raw: "DECIMAL)10,2(", base: "DECIMAL)10,2("},
		{name: "nested uses last close", raw: "MAP(STRING, ARRAY(INT))", base: "MAP", args: []string{"STRING", "ARRAY(INT)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Parse(tt.raw)
			require.Equal(t, tt.raw, d.Raw)
			require.Equal(t, tt.base, d.Base)
			require.Equal(t, tt.args, d.Args)
		})
	}
}
