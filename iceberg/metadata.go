package iceberg

import (
	"fmt"
	"maps"
	"slices"

	"rowbridge/types"
)

const formatVersion = 2

type PartitionSpec struct {
	SpecID int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

type PartitionField struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

type TableMetadata struct {
	FormatVersion      int               `json:"format-version"`
	TableUUID          string            `json:"table-uuid"`
	Location           string            `json:"location"`
	LastSequenceNumber int64             `json:"last-sequence-number"`
	LastUpdatedMs      int64             `json:"last-updated-ms"`
	LastColumnID       int               `json:"last-column-id"`
	CurrentSchemaID    int               `json:"current-schema-id"`
	Schemas            []SchemaV2        `json:"schemas"`
	PartitionSpecs     []PartitionSpec   `json:"partition-specs"`
	DefaultSpecID      int               `json:"default-spec-id"`
	Properties         map[string]string `json:"properties"`
	CurrentSnapshotID  *int64            `json:"current-snapshot-id,omitempty"`
	Snapshots          []Snapshot        `json:"snapshots"`
}

type SchemaV2 struct {
	Type     string  `json:"type"`
	SchemaID int     `json:"schema-id"`
	Fields   []Field `json:"fields"`
}

type Field struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type Snapshot struct {
	SnapshotID       int64             `json:"snapshot-id"`
	ParentSnapshotID *int64            `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   int64             `json:"sequence-number"`
	TimestampMs      int64             `json:"timestamp-ms"`
	ManifestList     string            `json:"manifest-list"`
	Summary          map[string]string `json:"summary"`
	SchemaID         int               `json:"schema-id"`
}

// IcebergType returns the Iceberg primitive type name of a logical type.
func IcebergType(lt types.LogicalType) string {
	switch lt.Kind {
	case types.Boolean:
		return "boolean"
	case types.TinyInt, types.SmallInt, types.Int:
		return "int"
	case types.BigInt:
		return "long"
	case types.Float:
		return "float"
	case types.Double:
		return "double"
	case types.Decimal:
		return fmt.Sprintf("decimal(%d, %d)", lt.Precision, lt.Scale)
	case types.Date:
		return "date"
	case types.Time:
		return "time"
	case types.Timestamp:
		return "timestamp"
	case types.Binary:
		return "binary"
	default:
		return "string"
	}
}

func newSchema(fields []types.FieldSpec, logical []types.LogicalType) SchemaV2 {
	s := SchemaV2{Type: "struct", Fields: make([]Field, len(fields))}
	for i, f := range fields {
		s.Fields[i] = Field{ID: i + 1, Name: f.Name, Type: IcebergType(logical[i])}
	}
	return s
}

func newTableMetadata(tableUUID, location string, schema SchemaV2, nowMs int64) *TableMetadata {
	return &TableMetadata{
		FormatVersion:   formatVersion,
		TableUUID:       tableUUID,
		Location:        location,
		LastUpdatedMs:   nowMs,
		LastColumnID:    len(schema.Fields),
		CurrentSchemaID: schema.SchemaID,
		Schemas:         []SchemaV2{schema},
		PartitionSpecs:  []PartitionSpec{{SpecID: 0, Fields: []PartitionField{}}},
		Properties:      map[string]string{"write.format.default": "parquet"},
		Snapshots:       []Snapshot{},
	}
}

// currentSchema returns the schema the table currently writes with.
func (m *TableMetadata) currentSchema() (SchemaV2, bool) {
	for _, s := range m.Schemas {
		if s.SchemaID == m.CurrentSchemaID {
			return s, true
		}
	}
	return SchemaV2{}, false
}

// evolve makes schema current and returns it with field IDs assigned. A field
// keeps the ID it had under the same name in any earlier schema; new names
// take IDs after LastColumnID. A new schema version is appended only when the
// fields differ from the current ones.
func (m *TableMetadata) evolve(schema SchemaV2) SchemaV2 {
	ids := make(map[string]int)
	for _, s := range m.Schemas {
		for _, f := range s.Fields {
			ids[f.Name] = f.ID
		}
	}
	schema.Fields = slices.Clone(schema.Fields)
	for i, f := range schema.Fields {
		if id, ok := ids[f.Name]; ok {
			schema.Fields[i].ID = id
			continue
		}
		m.LastColumnID++
		schema.Fields[i].ID = m.LastColumnID
	}

	if cur, ok := m.currentSchema(); ok && slices.Equal(cur.Fields, schema.Fields) {
		return cur
	}
	next := 0
	for _, s := range m.Schemas {
		next = max(next, s.SchemaID+1)
	}
	schema.SchemaID = next
	m.Schemas = append(m.Schemas, schema)
	m.CurrentSchemaID = next
	return schema
}

// clone copies m deeply enough that a commit can change the copy and discard
// it on failure.
func (m *TableMetadata) clone() *TableMetadata {
	c := *m
	c.Schemas = slices.Clone(m.Schemas)
	c.Snapshots = slices.Clone(m.Snapshots)
	c.PartitionSpecs = slices.Clone(m.PartitionSpecs)
	c.Properties = maps.Clone(m.Properties)
	if m.CurrentSnapshotID != nil {
		id := *m.CurrentSnapshotID
		c.CurrentSnapshotID = &id
	}
	return &c
}

func (m *TableMetadata) currentSnapshot() *Snapshot {
	if m.CurrentSnapshotID == nil {
		return nil
	}
	for i := range m.Snapshots {
		if m.Snapshots[i].SnapshotID == *m.CurrentSnapshotID {
			return &m.Snapshots[i]
		}
	}
	return nil
}
