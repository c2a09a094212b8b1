package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"

	"rowbridge/converter"
	"rowbridge/types"
)

// Manager caches table schemas by relation ID together with the text
// converter built for each of them.
type Manager struct {
	conn          *pgx.Conn
	schemas       map[uint32]*TableSchema // Maps relation ID to schema
	schemasByName map[string]*TableSchema // Maps "schema.table" to schema
	converters    map[uint32]*converter.TextConverter
	overrides     map[string][]types.FieldSpec
	mu            sync.RWMutex
}

func NewSchemaManager(conn *pgx.Conn) *Manager {
	return &Manager{
		conn:          conn,
		schemas:       make(map[uint32]*TableSchema),
		schemasByName: make(map[string]*TableSchema),
		converters:    make(map[uint32]*converter.TextConverter),
		overrides:     make(map[string][]types.FieldSpec),
	}
}

// SetColumns overrides the declared types of the named columns of a table.
func (m *Manager) SetColumns(qualifiedName string, columns []types.FieldSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[qualifiedName] = append([]types.FieldSpec(nil), columns...)
}

// GetSchema returns schema by relation ID
func (m *Manager) GetSchema(relationID uint32) (*TableSchema, error) {
	m.mu.RLock()
	schema, exists := m.schemas[relationID]
	m.mu.RUnlock()

	if exists {
		return schema, nil
	}

	return nil, fmt.Errorf("schema not found for relation ID: %d", relationID)
}

func (m *Manager) SchemaByName(qualifiedName string) (*TableSchema, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, ok := m.schemasByName[qualifiedName]
	return schema, ok
}

// Converter returns the text converter registered for a relation.
func (m *Manager) Converter(relationID uint32) (*converter.TextConverter, error) {
	m.mu.RLock()
	c, ok := m.converters[relationID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no converter for relation ID: %d", relationID)
	}
	return c, nil
}

// HandleRelationMessage caches the schema announced by a relation message and
// rebuilds its converter.
func (m *Manager) HandleRelationMessage(msg *pglogrepl.RelationMessageV2) (*TableSchema, error) {
	schema := &TableSchema{
		Schema:  msg.Namespace,
		Name:    msg.RelationName,
		Columns: make([]Column, len(msg.Columns)),
	}

	for i, col := range msg.Columns {
		schema.Columns[i] = Column{
			Name:     col.Name,
			TypeOID:  col.DataType,
			TypeMod:  col.TypeModifier,
			Type:     DeclaredType(col.DataType, col.TypeModifier),
			Nullable: true,
			Key:      col.Flags == 1,
		}
	}

	if err := m.Register(msg.RelationID, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// InitializeSchema loads schema for specified tables
func (m *Manager) InitializeSchema(ctx context.Context, schemaName, tableName string) error {
	schema, err := GetTableSchema(ctx, m.conn, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("getting table schema: %w", err)
	}

	// Get relation ID
	var relationID uint32
	err = m.conn.QueryRow(ctx, `
        SELECT c.oid
        FROM pg_class c
        JOIN pg_namespace n ON n.oid = c.relnamespace
        WHERE n.nspname = $1 AND c.relname = $2
    `, schemaName, tableName).Scan(&relationID)
	if err != nil {
		return fmt.Errorf("getting relation ID: %w", err)
	}

	return m.Register(relationID, schema)
}

// Register applies column overrides to schema, builds its converter and
// caches both. A schema whose types cannot be converted is not cached.
func (m *Manager) Register(relationID uint32, schema *TableSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := applyOverrides(schema, m.overrides[schema.QualifiedName()]); err != nil {
		return err
	}

	c, err := converter.NewTextConverter(schema.Fields())
	if err != nil {
		return fmt.Errorf("building converter for %s: %w", schema.QualifiedName(), err)
	}

	m.schemas[relationID] = schema
	m.schemasByName[schema.QualifiedName()] = schema
	m.converters[relationID] = c
	return nil
}

func applyOverrides(schema *TableSchema, overrides []types.FieldSpec) error {
	for _, o := range overrides {
		found := false
		for i := range schema.Columns {
			if schema.Columns[i].Name == o.Name {
				schema.Columns[i].Type = o.Type
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("table %s has no column %q", schema.QualifiedName(), o.Name)
		}
	}
	return nil
}
