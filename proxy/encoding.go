package proxy

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"

	"rowbridge/column"
	"rowbridge/converter"
	"rowbridge/types"
)

// duckdbAliases maps DuckDB type names the declared-type table does not know
// onto equivalent declared types.
var duckdbAliases = map[string]string{
	"TIMESTAMP":                "TIMESTAMP(6)",
	"TIMESTAMP_S":              "TIMESTAMP(0)",
	"TIMESTAMP_MS":             "TIMESTAMP(3)",
	"TIMESTAMP_NS":             "TIMESTAMP(9)",
	"TIMESTAMPTZ":              "TIMESTAMP(6)",
	"TIMESTAMP WITH TIME ZONE": "TIMESTAMP(6)",
	"UTINYINT":                 "SMALLINT",
	"USMALLINT":                "INTEGER",
	"UINTEGER":                 "BIGINT",
	"UBIGINT":                  "DECIMAL(20,0)",
	"HUGEINT":                  "DECIMAL(38,0)",
	"REAL":                     "FLOAT",
}

// resultColumn is one column of a query result as served over the wire.
type resultColumn struct {
	name    string
	dbType  string
	logical types.LogicalType
	// opaque columns are rendered with fmt and served as text.
	opaque bool
}

func newResultColumn(name, dbType string) resultColumn {
	declared := strings.ToUpper(strings.TrimSpace(dbType))
	if alias, ok := duckdbAliases[declared]; ok {
		declared = alias
	}

	col := resultColumn{name: name, dbType: declared}
	lt, err := types.ResolveString(declared)
	if err != nil || !servable(declared, lt) {
		col.opaque = true
		col.dbType = "VARCHAR"
		col.logical = types.LogicalType{Kind: types.String}
		return col
	}
	col.logical = lt
	return col
}

// servable reports whether the text converter can render a resolved type.
func servable(declared string, lt types.LogicalType) bool {
	if lt.Kind == types.Binary {
		return false
	}
	switch types.Parse(declared).Base {
	case "STRUCT", "BLOB":
		return false
	}
	return true
}

func (c resultColumn) field() types.FieldSpec {
	return types.FieldSpec{Name: c.name, Type: c.dbType}
}

// normalize turns a value scanned from DuckDB into the Go form the object
// converter expects for the column.
func (c resultColumn) normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if c.opaque {
		return opaqueText(v), nil
	}

	switch c.logical.Kind {
	case types.SmallInt:
		if n, ok := v.(uint8); ok {
			return int16(n), nil
		}
	case types.Int:
		if n, ok := v.(uint16); ok {
			return int32(n), nil
		}
	case types.BigInt:
		if n, ok := v.(uint32); ok {
			return int64(n), nil
		}
	case types.Decimal:
		switch d := v.(type) {
		case duckdb.Decimal:
			return decimal.NewFromBigInt(d.Value, -int32(d.Scale)), nil
		case *big.Int:
			return decimal.NewFromBigInt(d, 0), nil
		case uint64:
			return decimal.NewFromBigInt(new(big.Int).SetUint64(d), 0), nil
		case float64:
			return decimal.NewFromFloat(d), nil
		}
	case types.String:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			if types.Parse(c.dbType).Base == "UUID" && len(s) == 16 {
				id, err := uuid.FromBytes(s)
				if err != nil {
					return nil, err
				}
				return id.String(), nil
			}
			return string(s), nil
		default:
			return fmt.Sprint(s), nil
		}
	case types.Date:
		if t, ok := v.(time.Time); ok {
			return column.EpochDays(t), nil
		}
	case types.Time:
		if t, ok := v.(time.Time); ok {
			return column.MillisOfDay(t), nil
		}
	}
	return v, nil
}

func opaqueText(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return fmt.Sprintf("\\x%x", v)
	case time.Time:
		return column.FormatTimestamp(v, 9)
	default:
		return fmt.Sprint(v)
	}
}

// description returns the wire description of the column.
func (c resultColumn) description() pgproto3.FieldDescription {
	oid, size, typmod := wireType(c.logical)
	return pgproto3.FieldDescription{
		Name:         []byte(c.name),
		DataTypeOID:  oid,
		DataTypeSize: size,
		TypeModifier: typmod,
		Format:       0,
	}
}

func wireType(lt types.LogicalType) (oid uint32, size int16, typmod int32) {
	switch lt.Kind {
	case types.Boolean:
		return pgtype.BoolOID, 1, -1
	case types.TinyInt, types.SmallInt:
		return pgtype.Int2OID, 2, -1
	case types.Int:
		return pgtype.Int4OID, 4, -1
	case types.BigInt:
		return pgtype.Int8OID, 8, -1
	case types.Float:
		return pgtype.Float4OID, 4, -1
	case types.Double:
		return pgtype.Float8OID, 8, -1
	case types.Decimal:
		return pgtype.NumericOID, -1, int32(lt.Precision<<16|lt.Scale) + 4
	case types.Date:
		return pgtype.DateOID, 4, -1
	case types.Time:
		return pgtype.TimeOID, 8, -1
	case types.Timestamp:
		return pgtype.TimestampOID, 8, int32(lt.Precision)
	default:
		return pgtype.TextOID, -1, -1
	}
}

// resultEncoder renders scanned DuckDB rows as pgwire DataRows.
type resultEncoder struct {
	columns []resultColumn
	object  *converter.ObjectConverter
	text    *converter.TextConverter
}

func newResultEncoder(names, dbTypes []string) (*resultEncoder, error) {
	if len(names) != len(dbTypes) {
		return nil, fmt.Errorf("%d column names for %d types", len(names), len(dbTypes))
	}

	e := &resultEncoder{columns: make([]resultColumn, len(names))}
	fields := make([]types.FieldSpec, len(names))
	for i := range names {
		e.columns[i] = newResultColumn(names[i], dbTypes[i])
		fields[i] = e.columns[i].field()
	}

	var err error
	if e.object, err = converter.NewObjectConverter(fields); err != nil {
		return nil, err
	}
	if e.text, err = converter.NewTextConverter(fields); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *resultEncoder) rowDescription() *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(e.columns))
	for i, c := range e.columns {
		fields[i] = c.description()
	}
	return &pgproto3.RowDescription{Fields: fields}
}

func (e *resultEncoder) dataRow(values []any) (*pgproto3.DataRow, error) {
	rec := converter.NewGenericRecord(len(values))
	for i, v := range values {
		nv, err := e.columns[i].normalize(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", e.columns[i].name, err)
		}
		rec[i] = nv
	}

	row, err := e.object.ToInternal(rec)
	if err != nil {
		return nil, err
	}
	out, err := e.text.ToExternal(row, converter.NewTextRecord(row.Arity()))
	if err != nil {
		return nil, err
	}
	return &pgproto3.DataRow{Values: out.Bytes()}, nil
}
