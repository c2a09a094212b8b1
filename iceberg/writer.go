package iceberg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"rowbridge/column"
	"rowbridge/storage"
	"rowbridge/types"
)

// Writer buffers converted rows per table and commits them as Iceberg data
// files through a Storage.
type Writer struct {
	store   storage.Storage
	log     zerolog.Logger
	writers map[string]*tableWriter
	now     func() time.Time
	mu      sync.Mutex
}

type tableWriter struct {
	name     string
	layout   *layout
	rows     []parquet.Row
	counts   columnCounts
	metadata *TableMetadata
	entries  []ManifestEntry
}

func NewWriter(store storage.Storage, log zerolog.Logger) *Writer {
	return &Writer{
		store:   store,
		log:     log.With().Str("component", "iceberg").Logger(),
		writers: make(map[string]*tableWriter),
		now:     time.Now,
	}
}

// Register declares the fields of table. Registering the same fields again is
// a no-op; new fields take effect for rows written after the call and are
// refused while rows under the old fields are uncommitted.
func (w *Writer) Register(table string, fields []types.FieldSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tw, exists := w.writers[table]
	if exists && slices.Equal(tw.layout.fields, fields) {
		return nil
	}
	if exists && len(tw.rows) > 0 {
		return fmt.Errorf("table %s has uncommitted rows under its previous fields", table)
	}

	l, err := newLayout(fields)
	if err != nil {
		return fmt.Errorf("registering %s: %w", table, err)
	}

	if exists {
		tw.layout = l
		tw.counts = newColumnCounts(len(fields))
		w.log.Info().Str("table", table).Int("fields", len(fields)).Msg("table fields changed")
		return nil
	}

	w.writers[table] = &tableWriter{name: table, layout: l, counts: newColumnCounts(len(fields))}
	w.log.Info().Str("table", table).Int("fields", len(fields)).Msg("table registered")
	return nil
}

// Write converts row and buffers it until the next Commit.
func (w *Writer) Write(table string, row *column.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tw, ok := w.writers[table]
	if !ok {
		return fmt.Errorf("table %s is not registered", table)
	}

	rec := tw.layout.newRecord()
	if _, err := tw.layout.converter.ToExternal(row, rec); err != nil {
		return fmt.Errorf("converting row for %s: %w", table, err)
	}
	prow, err := rec.Row()
	if err != nil {
		return fmt.Errorf("encoding row for %s: %w", table, err)
	}

	tw.rows = append(tw.rows, prow)
	tw.counts.observe(rec)
	return nil
}

// Pending returns the number of uncommitted rows of table.
func (w *Writer) Pending(table string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if tw, ok := w.writers[table]; ok {
		return len(tw.rows)
	}
	return 0
}

// Commit writes one data file per table with buffered rows and publishes it
// in a new snapshot.
func (w *Writer) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.writers))
	for name := range w.writers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tw := w.writers[name]
		if len(tw.rows) == 0 {
			continue
		}
		if err := w.commitTable(ctx, tw); err != nil {
			return fmt.Errorf("committing %s: %w", name, err)
		}
	}
	return nil
}

func tableLocation(table string) string {
	return strings.ReplaceAll(table, ".", "/")
}

func metadataPath(table string) string {
	return path.Join(tableLocation(table), "metadata", "metadata.json")
}

func (w *Writer) commitTable(ctx context.Context, tw *tableWriter) error {
	now := w.now()

	if tw.metadata == nil {
		if err := w.loadTable(ctx, tw, now); err != nil {
			return err
		}
	}
	// The table writer keeps its metadata until metadata.json is written, so
	// a failed commit can be retried from the same state.
	md := tw.metadata.clone()
	schema := md.evolve(tw.layout.icebergSchema())

	seq := md.LastSequenceNumber + 1
	snapshotID := seq
	location := tableLocation(tw.name)

	dataPath := path.Join(location, "data", fmt.Sprintf("%05d-%s.parquet", seq, uuid.NewString()))
	size, err := w.writeDataFile(ctx, tw, dataPath)
	if err != nil {
		return err
	}

	entry := ManifestEntry{
		Status:         statusAdded,
		SnapshotID:     snapshotID,
		SequenceNumber: seq,
		DataFile: DataFile{
			FilePath:      dataPath,
			FileFormat:    "PARQUET",
			RecordCount:   int64(len(tw.rows)),
			FileSizeBytes: size,
			Metrics:       tw.counts.metrics(schema),
		},
	}
	entries := append(carryForward(tw.entries), entry)

	manifestPath := path.Join(location, "metadata", fmt.Sprintf("snap-%d-%s.json", snapshotID, uuid.NewString()))
	if err := w.writeJSON(ctx, manifestPath, entries, false); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	var total int64
	for _, e := range entries {
		total += e.DataFile.RecordCount
	}
	snap := Snapshot{
		SnapshotID:       snapshotID,
		ParentSnapshotID: md.CurrentSnapshotID,
		SequenceNumber:   seq,
		TimestampMs:      now.UnixMilli(),
		ManifestList:     manifestPath,
		SchemaID:         md.CurrentSchemaID,
		Summary: map[string]string{
			"operation":        "append",
			"added-data-files": "1",
			"added-records":    strconv.Itoa(len(tw.rows)),
			"total-data-files": strconv.Itoa(len(entries)),
			"total-records":    strconv.FormatInt(total, 10),
		},
	}
	md.Snapshots = append(md.Snapshots, snap)
	md.CurrentSnapshotID = &snap.SnapshotID
	md.LastSequenceNumber = seq
	md.LastUpdatedMs = now.UnixMilli()

	if err := w.writeJSON(ctx, metadataPath(tw.name), md, true); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	w.log.Info().
		Str("table", tw.name).
		Int("rows", len(tw.rows)).
		Int64("bytes", size).
		Int64("snapshot", snapshotID).
		Str("file", dataPath).
		Msg("committed data file")

	tw.metadata = md
	tw.entries = entries
	tw.rows = nil
	tw.counts = newColumnCounts(len(tw.layout.fields))
	return nil
}

// loadTable reads the table's metadata and live manifest entries from
// storage, creating fresh metadata when the table has never been committed.
func (w *Writer) loadTable(ctx context.Context, tw *tableWriter, now time.Time) error {
	var md TableMetadata
	err := w.readJSON(ctx, metadataPath(tw.name), &md)
	if errors.Is(err, storage.ErrNotExist) {
		tw.metadata = newTableMetadata(uuid.NewString(), tableLocation(tw.name), tw.layout.icebergSchema(), now.UnixMilli())
		tw.entries = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}
	tw.metadata = &md

	if snap := md.currentSnapshot(); snap != nil {
		if err := w.readJSON(ctx, snap.ManifestList, &tw.entries); err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}
	}
	return nil
}

func (w *Writer) writeDataFile(ctx context.Context, tw *tableWriter, dataPath string) (int64, error) {
	buf := storage.NewBuffer()
	pw := parquet.NewWriter(buf, tw.layout.schema)
	if _, err := pw.WriteRows(tw.rows); err != nil {
		return 0, fmt.Errorf("writing rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return 0, fmt.Errorf("closing parquet writer: %w", err)
	}

	if err := w.store.Write(ctx, dataPath, buf.Reader()); err != nil {
		return 0, fmt.Errorf("writing data file: %w", err)
	}
	return buf.Size(), nil
}

func (w *Writer) writeJSON(ctx context.Context, filePath string, v any, indent bool) error {
	var data bytes.Buffer
	encoder := json.NewEncoder(&data)
	if indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", filePath, err)
	}
	return w.store.Write(ctx, filePath, &data)
}

func (w *Writer) readJSON(ctx context.Context, filePath string, v any) error {
	rc, err := w.store.Read(ctx, filePath)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
