package iceberg

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowbridge/column"
	"rowbridge/storage"
	"rowbridge/types"
)

var orderFields = []types.FieldSpec{
	{Name: "id", Type: "BIGINT"},
	{Name: "total", Type: "DECIMAL(10,2)"},
	{Name: "note", Type: "STRING"},
	{Name: "placed_at", Type: "TIMESTAMP(6)"},
	{Name: "day", Type: "DATE"},
	{Name: "at", Type: "TIME"},
	{Name: "qty", Type: "SMALLINT"},
	{Name: "paid", Type: "BOOLEAN"},
	{Name: "weight", Type: "DOUBLE"},
}

func orderRow(id int64, note column.Value) *column.Row {
	placed := time.Date(2024, 3, 1, 10, 15, 30, 123456000, time.UTC)
	return column.RowOf(
		column.BigInt(id),
		column.Decimal(decimal.RequireFromString("12.50"), 10, 2),
		note,
		column.Timestamp(placed, 6),
		column.Date(placed),
		column.Time(time.Date(1970, 1, 1, 8, 30, 0, 250000000, time.UTC)),
		column.SmallInt(3),
		column.Bool(true),
		column.Double(1.25),
	)
}

func readMetadata(t *testing.T, store storage.Storage, table string) TableMetadata {
	t.Helper()
	rc, err := store.Read(context.Background(), metadataPath(table))
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	var md TableMetadata
	require.NoError(t, json.Unmarshal(data, &md))
	return md
}

func dataFiles(t *testing.T, store storage.Storage, table string) []string {
	t.Helper()
	files, err := store.List(context.Background(), tableLocation(table)+"/data")
	require.NoError(t, err)
	return files
}

func TestWriterCommitAndReadBack(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())
	w := NewWriter(store, zerolog.Nop())

	require.NoError(t, w.Register("public.orders", orderFields))
	want := []*column.Row{
		orderRow(1, column.String("first")),
		orderRow(2, column.NullOf(types.String)),
	}
	for _, row := range want {
		require.NoError(t, w.Write("public.orders", row))
	}
	assert.Equal(t, 2, w.Pending("public.orders"))

	require.NoError(t, w.Commit(ctx))
	assert.Equal(t, 0, w.Pending("public.orders"))

	files := dataFiles(t, store, "public.orders")
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".parquet"))

	got, err := ReadDataFile(ctx, store, files[0], orderFields)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range want {
		assert.Equal(t, want[i].String(), got[i].String())
	}
	assert.True(t, got[1].IsNullAt(2))
}

func TestWriterMetadata(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())
	w := NewWriter(store, zerolog.Nop())

	require.NoError(t, w.Register("public.orders", orderFields))
	require.NoError(t, w.Write("public.orders", orderRow(1, column.String("a"))))
	require.NoError(t, w.Commit(ctx))

	md := readMetadata(t, store, "public.orders")
	assert.Equal(t, 2, md.FormatVersion)
	assert.NotEmpty(t, md.TableUUID)
	assert.Equal(t, "public/orders", md.Location)
	require.Len(t, md.Snapshots, 1)
	require.NotNil(t, md.CurrentSnapshotID)
	assert.Equal(t, "1", md.Snapshots[0].Summary["total-records"])

	schema, ok := md.currentSchema()
	require.True(t, ok)
	assert.Equal(t, Field{ID: 2, Name: "total", Type: "decimal(10, 2)"}, schema.Fields[1])
	assert.Equal(t, "timestamp", schema.Fields[3].Type)

	// A second commit keeps the table UUID and carries the first file forward.
	require.NoError(t, w.Write("public.orders", orderRow(2, column.String("b"))))
	require.NoError(t, w.Commit(ctx))

	md2 := readMetadata(t, store, "public.orders")
	assert.Equal(t, md.TableUUID, md2.TableUUID)
	require.Len(t, md2.Snapshots, 2)
	assert.Equal(t, *md.CurrentSnapshotID, *md2.Snapshots[1].ParentSnapshotID)
	assert.Equal(t, "2", md2.Snapshots[1].Summary["total-records"])
	assert.Len(t, dataFiles(t, store, "public.orders"), 2)
}

func TestWriterReopensExistingTable(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())

	first := NewWriter(store, zerolog.Nop())
	require.NoError(t, first.Register("public.orders", orderFields))
	require.NoError(t, first.Write("public.orders", orderRow(1, column.String("a"))))
	require.NoError(t, first.Commit(ctx))
	uuid := readMetadata(t, store, "public.orders").TableUUID

	second := NewWriter(store, zerolog.Nop())
	require.NoError(t, second.Register("public.orders", orderFields))
	require.NoError(t, second.Write("public.orders", orderRow(2, column.String("b"))))
	require.NoError(t, second.Commit(ctx))

	md := readMetadata(t, store, "public.orders")
	assert.Equal(t, uuid, md.TableUUID)
	assert.Equal(t, int64(2), md.LastSequenceNumber)
	assert.Equal(t, "2", md.Snapshots[1].Summary["total-data-files"])
}

func TestWriterSchemaEvolution(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())
	w := NewWriter(store, zerolog.Nop())

	v1 := []types.FieldSpec{{Name: "id", Type: "BIGINT"}}
	v2 := []types.FieldSpec{{Name: "id", Type: "BIGINT"}, {Name: "name", Type: "STRING"}}

	require.NoError(t, w.Register("public.users", v1))
	require.NoError(t, w.Write("public.users", column.RowOf(column.BigInt(1))))

	err := w.Register("public.users", v2)
	require.Error(t, err)

	require.NoError(t, w.Commit(ctx))
	require.NoError(t, w.Register("public.users", v2))
	require.NoError(t, w.Write("public.users", column.RowOf(column.BigInt(2), column.String("bo"))))
	require.NoError(t, w.Commit(ctx))

	md := readMetadata(t, store, "public.users")
	assert.Len(t, md.Schemas, 2)
	assert.Equal(t, 1, md.CurrentSchemaID)
	assert.Equal(t, 2, md.LastColumnID)
}

func TestWriterFieldIDsFollowNames(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())
	w := NewWriter(store, zerolog.Nop())

	v1 := []types.FieldSpec{{Name: "id", Type: "BIGINT"}, {Name: "name", Type: "STRING"}}
	v2 := []types.FieldSpec{{Name: "name", Type: "STRING"}, {Name: "email", Type: "STRING"}, {Name: "id", Type: "BIGINT"}}

	require.NoError(t, w.Register("public.users", v1))
	require.NoError(t, w.Write("public.users", column.RowOf(column.BigInt(1), column.String("ann"))))
	require.NoError(t, w.Commit(ctx))

	require.NoError(t, w.Register("public.users", v2))
	require.NoError(t, w.Write("public.users", column.RowOf(column.String("bo"), column.NullOf(types.String), column.BigInt(2))))
	require.NoError(t, w.Commit(ctx))

	md := readMetadata(t, store, "public.users")
	schema, ok := md.currentSchema()
	require.True(t, ok)
	assert.Equal(t, []Field{
		{ID: 2, Name: "name", Type: "string"},
		{ID: 3, Name: "email", Type: "string"},
		{ID: 1, Name: "id", Type: "long"},
	}, schema.Fields)
	assert.Equal(t, 3, md.LastColumnID)

	var entries []ManifestEntry
	require.NoError(t, w.readJSON(ctx, md.currentSnapshot().ManifestList, &entries))
	require.Len(t, entries, 2)
	added := entries[1].DataFile.Metrics
	assert.Equal(t, map[int]int64{1: 1, 2: 1, 3: 1}, added.ValueCounts)
	assert.Equal(t, map[int]int64{1: 0, 2: 0, 3: 1}, added.NullValueCounts)
}

// flakyStore fails the next failures writes whose path ends in suffix.
type flakyStore struct {
	storage.Storage
	suffix   string
	failures int
}

func (s *flakyStore) Write(ctx context.Context, filePath string, data io.Reader) error {
	if s.failures > 0 && strings.HasSuffix(filePath, s.suffix) {
		s.failures--
		return errors.New("disk full")
	}
	return s.Storage.Write(ctx, filePath, data)
}

func TestWriterRetriesFailedMetadataWrite(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Storage: storage.NewLocalStorage(t.TempDir()), suffix: "metadata.json"}
	w := NewWriter(store, zerolog.Nop())

	require.NoError(t, w.Register("public.orders", orderFields))
	require.NoError(t, w.Write("public.orders", orderRow(1, column.String("a"))))
	require.NoError(t, w.Commit(ctx))

	require.NoError(t, w.Write("public.orders", orderRow(2, column.String("b"))))
	store.failures = 1
	require.Error(t, w.Commit(ctx))
	assert.Equal(t, 1, w.Pending("public.orders"))
	assert.Len(t, readMetadata(t, store, "public.orders").Snapshots, 1)

	require.NoError(t, w.Commit(ctx))
	md := readMetadata(t, store, "public.orders")
	assert.Equal(t, int64(2), md.LastSequenceNumber)
	require.Len(t, md.Snapshots, 2)
	assert.Equal(t, md.Snapshots[0].SnapshotID, *md.Snapshots[1].ParentSnapshotID)
	assert.Equal(t, "2", md.Snapshots[1].Summary["total-records"])
	for _, snap := range md.Snapshots {
		rc, err := store.Read(ctx, snap.ManifestList)
		require.NoError(t, err)
		rc.Close()
	}
}

func TestWriterErrors(t *testing.T) {
	w := NewWriter(storage.NewLocalStorage(t.TempDir()), zerolog.Nop())

	err := w.Write("public.missing", column.RowOf(column.BigInt(1)))
	assert.Error(t, err)

	err = w.Register("public.bad", []types.FieldSpec{{Name: "m", Type: "MAP"}})
	var unsupported *types.UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)

	err = w.Register("public.any", []types.FieldSpec{{Name: "*", Type: "STRING"}})
	assert.Error(t, err)

	require.NoError(t, w.Register("public.t", []types.FieldSpec{{Name: "id", Type: "INT"}}))
	err = w.Write("public.t", column.RowOf(column.BigInt(1), column.BigInt(2)))
	assert.Error(t, err)
	assert.Equal(t, 0, w.Pending("public.t"))
}

func TestCommitWithoutRowsWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())
	w := NewWriter(store, zerolog.Nop())

	require.NoError(t, w.Register("public.orders", orderFields))
	require.NoError(t, w.Commit(ctx))

	files, err := store.List(ctx, "public")
	require.NoError(t, err)
	assert.Empty(t, files)
}
