package iceberg

const (
	statusExisting = 0
	statusAdded    = 1
)

type ManifestEntry struct {
	Status         int32    `json:"status"`
	SnapshotID     int64    `json:"snapshot_id"`
	SequenceNumber int64    `json:"sequence_number"`
	DataFile       DataFile `json:"data_file"`
}

type DataFile struct {
	FilePath      string      `json:"file_path"`
	FileFormat    string      `json:"file_format"`
	RecordCount   int64       `json:"record_count"`
	FileSizeBytes int64       `json:"file_size_bytes"`
	Metrics       FileMetrics `json:"metrics"`
}

// FileMetrics are keyed by Iceberg field ID.
type FileMetrics struct {
	ValueCounts     map[int]int64 `json:"value_counts"`
	NullValueCounts map[int]int64 `json:"null_value_counts"`
}

// columnCounts tallies values and nulls per field position of the rows
// pending for one data file.
type columnCounts struct {
	values []int64
	nulls  []int64
}

func newColumnCounts(n int) columnCounts {
	return columnCounts{values: make([]int64, n), nulls: make([]int64, n)}
}

// observe counts one written record.
func (c columnCounts) observe(rec ParquetRecord) {
	for pos := 0; pos < rec.Len(); pos++ {
		c.values[pos]++
		if rec.IsNullAt(pos) {
			c.nulls[pos]++
		}
	}
}

// metrics keys the counts by the field IDs of schema, which lists the fields
// in position order.
func (c columnCounts) metrics(schema SchemaV2) FileMetrics {
	m := FileMetrics{
		ValueCounts:     make(map[int]int64, len(c.values)),
		NullValueCounts: make(map[int]int64, len(c.nulls)),
	}
	for pos, f := range schema.Fields {
		if pos >= len(c.values) {
			break
		}
		m.ValueCounts[f.ID] = c.values[pos]
		m.NullValueCounts[f.ID] = c.nulls[pos]
	}
	return m
}

// carryForward returns entries as existing entries of a later snapshot.
func carryForward(entries []ManifestEntry) []ManifestEntry {
	out := make([]ManifestEntry, len(entries))
	for i, e := range entries {
		e.Status = statusExisting
		out[i] = e
	}
	return out
}
