package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowbridge/types"
)

func TestResolveCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"resolve", "decimal(10, 2)", "DateTime", "varchar"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "decimal(10, 2)\tDECIMAL(10, 2)\nDateTime\tTIMESTAMP(3)\nvarchar\tSTRING\n", out.String())
}

func TestResolveStopsAtUnsupported(t *testing.T) {
	var out bytes.Buffer
	err := resolve(&out, []string{"INT", "MAP", "BIGINT"})

	var unsupported *types.UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "INT\tINT\n", out.String())
}

func TestResolveRequiresArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"resolve"})
	assert.Error(t, cmd.Execute())
}
