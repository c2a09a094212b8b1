package iceberg

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"rowbridge/converter"
	"rowbridge/types"
)

// layout ties a table's fields to their Parquet leaf columns and to the
// object converter that moves rows in and out of ParquetRecords.
type layout struct {
	fields    []types.FieldSpec
	logical   []types.LogicalType
	schema    *parquet.Schema
	columns   []int // field position -> leaf column index
	converter *converter.ObjectConverter
}

func newLayout(fields []types.FieldSpec) (*layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("table has no fields")
	}
	if types.IsWildcard(fields) {
		return nil, fmt.Errorf("wildcard fields cannot be stored")
	}

	l := &layout{
		fields:  append([]types.FieldSpec(nil), fields...),
		logical: make([]types.LogicalType, len(fields)),
		columns: make([]int, len(fields)),
	}

	root := make(parquet.Group)
	for i, f := range fields {
		if _, dup := root[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		lt, err := types.ResolveString(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		l.logical[i] = lt
		root[f.Name] = parquet.Optional(parquetNode(lt))
	}
	l.schema = parquet.NewSchema("schema", root)

	if err := l.bind(l.schema); err != nil {
		return nil, err
	}

	c, err := converter.NewObjectConverter(fields)
	if err != nil {
		return nil, err
	}
	l.converter = c
	return l, nil
}

// bind resolves the leaf column of every field in schema.
func (l *layout) bind(schema *parquet.Schema) error {
	for i, f := range l.fields {
		leaf, ok := schema.Lookup(f.Name)
		if !ok {
			return fmt.Errorf("column %q not found in parquet schema", f.Name)
		}
		l.columns[i] = leaf.ColumnIndex
	}
	return nil
}

func (l *layout) icebergSchema() SchemaV2 {
	return newSchema(l.fields, l.logical)
}

func parquetNode(lt types.LogicalType) parquet.Node {
	switch lt.Kind {
	case types.Boolean:
		return parquet.Leaf(parquet.BooleanType)
	case types.TinyInt:
		return parquet.Int(8)
	case types.SmallInt:
		return parquet.Int(16)
	case types.Int:
		return parquet.Int(32)
	case types.BigInt:
		return parquet.Int(64)
	case types.Float:
		return parquet.Leaf(parquet.FloatType)
	case types.Double:
		return parquet.Leaf(parquet.DoubleType)
	case types.Date:
		return parquet.Date()
	case types.Time:
		return parquet.Time(parquet.Millisecond)
	case types.Timestamp:
		return parquet.Timestamp(timeUnit(lt.Precision))
	case types.Binary:
		return parquet.Leaf(parquet.ByteArrayType)
	default:
		// Decimals are stored in their fixed-scale text form.
		return parquet.String()
	}
}

// storedPrecision is the fractional digits a timestamp column keeps: 3, 6 or 9.
func storedPrecision(precision int) int {
	switch {
	case precision <= 3:
		return 3
	case precision <= 6:
		return 6
	default:
		return 9
	}
}

func timeUnit(precision int) parquet.TimeUnit {
	switch storedPrecision(precision) {
	case 3:
		return parquet.Millisecond
	case 6:
		return parquet.Microsecond
	default:
		return parquet.Nanosecond
	}
}

// ParquetRecord is one table row in the Go form the object converter reads
// and writes, convertible to and from a Parquet row.
type ParquetRecord struct {
	converter.GenericRecord
	layout *layout
}

var _ converter.Record = ParquetRecord{}

func (l *layout) newRecord() ParquetRecord {
	return ParquetRecord{
		GenericRecord: converter.NewGenericRecord(len(l.fields)),
		layout:        l,
	}
}

// Row encodes the record as a Parquet row in leaf column order.
func (r ParquetRecord) Row() (parquet.Row, error) {
	l := r.layout
	row := make(parquet.Row, len(l.fields))
	for pos, v := range r.GenericRecord {
		col := l.columns[pos]
		if v == nil {
			row[col] = parquet.NullValue().Level(0, 0, col)
			continue
		}
		pv, err := parquetValue(l.logical[pos], v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", l.fields[pos].Name, err)
		}
		row[col] = pv.Level(0, 1, col)
	}
	return row, nil
}

func parquetValue(lt types.LogicalType, v any) (parquet.Value, error) {
	switch v := v.(type) {
	case bool:
		return parquet.BooleanValue(v), nil
	case int8:
		return parquet.Int32Value(int32(v)), nil
	case int16:
		return parquet.Int32Value(int32(v)), nil
	case int32:
		return parquet.Int32Value(v), nil
	case int64:
		return parquet.Int64Value(v), nil
	case float32:
		return parquet.FloatValue(v), nil
	case float64:
		return parquet.DoubleValue(v), nil
	case decimal.Decimal:
		return parquet.ByteArrayValue([]byte(v.StringFixed(int32(lt.Scale)))), nil
	case string:
		return parquet.ByteArrayValue([]byte(v)), nil
	case []byte:
		return parquet.ByteArrayValue(v), nil
	case time.Time:
		switch storedPrecision(lt.Precision) {
		case 3:
			return parquet.Int64Value(v.UnixMilli()), nil
		case 6:
			return parquet.Int64Value(v.UnixMicro()), nil
		default:
			return parquet.Int64Value(v.UnixNano()), nil
		}
	default:
		return parquet.Value{}, fmt.Errorf("cannot store %T", v)
	}
}

// recordFromRow decodes a Parquet row read with the layout's column binding.
func (l *layout) recordFromRow(row parquet.Row) (ParquetRecord, error) {
	rec := l.newRecord()
	byColumn := make(map[int]parquet.Value, len(row))
	for _, v := range row {
		byColumn[v.Column()] = v
	}

	for pos, col := range l.columns {
		v, ok := byColumn[col]
		if !ok || v.IsNull() {
			continue
		}
		gv, err := goValue(l.logical[pos], v)
		if err != nil {
			return ParquetRecord{}, fmt.Errorf("field %q: %w", l.fields[pos].Name, err)
		}
		rec.GenericRecord[pos] = gv
	}
	return rec, nil
}

func goValue(lt types.LogicalType, v parquet.Value) (any, error) {
	switch lt.Kind {
	case types.Boolean:
		return v.Boolean(), nil
	case types.TinyInt:
		return int8(v.Int32()), nil
	case types.SmallInt:
		return int16(v.Int32()), nil
	case types.Int, types.Date, types.Time:
		return v.Int32(), nil
	case types.BigInt:
		return v.Int64(), nil
	case types.Float:
		return v.Float(), nil
	case types.Double:
		return v.Double(), nil
	case types.Decimal:
		return decimal.NewFromString(string(v.ByteArray()))
	case types.Binary:
		return bytes.Clone(v.ByteArray()), nil
	case types.Timestamp:
		n := v.Int64()
		switch storedPrecision(lt.Precision) {
		case 3:
			return time.UnixMilli(n).UTC(), nil
		case 6:
			return time.UnixMicro(n).UTC(), nil
		default:
			return time.Unix(0, n).UTC(), nil
		}
	case types.Null:
		return nil, nil
	default:
		return string(v.ByteArray()), nil
	}
}
