package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"rowbridge/types"
)

type Column struct {
	Name    string
	TypeOID uint32
	TypeMod int32
	// Type is the declared type string the converters resolve.
	Type     string
	Nullable bool
	Key      bool
}

type TableSchema struct {
	Schema  string
	Name    string
	Columns []Column
}

func (t *TableSchema) QualifiedName() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

// Fields returns the table's columns as converter field specs.
func (t *TableSchema) Fields() []types.FieldSpec {
	fields := make([]types.FieldSpec, len(t.Columns))
	for i, col := range t.Columns {
		fields[i] = types.FieldSpec{Name: col.Name, Type: col.Type}
	}
	return fields
}

// DeclaredType maps a Postgres type OID and type modifier to a declared type
// string. Types without a faithful logical type travel as strings.
func DeclaredType(oid uint32, typmod int32) string {
	switch oid {
	case pgtype.BoolOID:
		return "BOOLEAN"
	case pgtype.Int2OID:
		return "SMALLINT"
	case pgtype.Int4OID:
		return "INTEGER"
	case pgtype.Int8OID:
		return "BIGINT"
	case pgtype.Float4OID:
		return "FLOAT"
	case pgtype.Float8OID:
		return "DOUBLE"
	case pgtype.NumericOID:
		if typmod < 4 {
			return "DECIMAL"
		}
		precision := ((typmod - 4) >> 16) & 0xffff
		scale := (typmod - 4) & 0xffff
		if precision > types.MaxDecimalPrecision || scale > precision {
			return "STRING"
		}
		return fmt.Sprintf("DECIMAL(%d,%d)", precision, scale)
	case pgtype.TextOID, pgtype.NameOID, pgtype.JSONOID, pgtype.JSONBOID:
		return "STRING"
	case pgtype.VarcharOID, pgtype.BPCharOID:
		return "VARCHAR"
	case pgtype.UUIDOID:
		return "UUID"
	case pgtype.DateOID:
		return "DATE"
	case pgtype.TimeOID:
		return "TIME"
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		if typmod >= 0 && typmod <= types.MaxTimestampPrecision {
			return fmt.Sprintf("TIMESTAMP(%d)", typmod)
		}
		return "TIMESTAMP(6)"
	case pgtype.ByteaOID:
		// Text-format bytea arrives hex encoded.
		return "BLOB"
	default:
		return "STRING"
	}
}

func GetTableSchema(ctx context.Context, conn *pgx.Conn, schemaName, tableName string) (*TableSchema, error) {
	query := `
        SELECT
            a.attname,
            NOT a.attnotnull AS nullable,
            a.atttypid,
            a.atttypmod
        FROM pg_catalog.pg_attribute a
        JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
        JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
        WHERE n.nspname = $1 AND c.relname = $2
          AND a.attnum > 0 AND NOT a.attisdropped
        ORDER BY a.attnum;
    `

	rows, err := conn.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying schema: %w", err)
	}
	defer rows.Close()

	schema := &TableSchema{
		Schema:  schemaName,
		Name:    tableName,
		Columns: make([]Column, 0),
	}

	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Nullable, &col.TypeOID, &col.TypeMod); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		col.Type = DeclaredType(col.TypeOID, col.TypeMod)
		schema.Columns = append(schema.Columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schemaName, tableName)
	}

	return schema, nil
}
