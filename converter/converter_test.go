package converter

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConvertersAreSharedAcrossGoroutines(t *testing.T) {
	c, err := NewTextConverter(fields("id", "BIGINT", "name", "VARCHAR", "at", "TIMESTAMP(3)"))
	require.NoError(t, err)

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				id := strconv.Itoa(w*1000 + i)
				in := TextRecordOf(id, "n"+id, "2024-01-01 00:00:00.123")
				row, err := c.ToInternal(in)
				if err != nil {
					return err
				}
				out, err := c.ToExternal(row, NewTextRecord(3))
				if err != nil {
					return err
				}
				if got, _ := out.Get(0); got != id {
					t.Errorf("worker %d: got id %q, want %q", w, got, id)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestModeString(t *testing.T) {
	require.Equal(t, "typed", Typed.String())
	require.Equal(t, "wildcard", Wildcard.String())
}
