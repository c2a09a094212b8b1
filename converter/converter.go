// Package converter builds per-field codecs between external record shapes
// and internal rows, and assembles them into whole-row converters.
package converter

import (
	"errors"
	"fmt"
	"reflect"

	"rowbridge/column"
	"rowbridge/types"
)

// External is what every external record shape exposes to a RowConverter.
type External interface {
	Len() int
	IsNullAt(pos int) bool
	SetNull(pos int)
}

// Deserializer reads the external slot at pos into a column value.
type Deserializer[E External] func(in E, pos int) (column.Value, error)

// Serializer writes field pos of row into the external slot at pos.
type Serializer[E External] func(row *column.Row, pos int, out E) error

// Pair is the matched codec for one field. Pairs capture only the field's
// resolved type and are safe to share across goroutines.
type Pair[E External] struct {
	Deserialize Deserializer[E]
	Serialize   Serializer[E]
}

// ShapeMismatchError reports an external record whose runtime shape does not
// fit the converter.
type ShapeMismatchError struct {
	Want string
	Got  string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: want %s, got %s", e.Want, e.Got)
}

// ErrLookupUnsupported is returned by ToInternalLookup on converters that
// cannot serve point lookups.
var ErrLookupUnsupported = errors.New("lookup conversion is not supported")

type Mode int

const (
	// Typed converts each field with the codec built from its declared type.
	Typed Mode = iota
	// Wildcard carries every slot as an opaque string.
	Wildcard
)

func (m Mode) String() string {
	if m == Wildcard {
		return "wildcard"
	}
	return "typed"
}

// RowConverter converts whole rows with a fixed table of field codecs. It is
// immutable after construction.
type RowConverter[E External] struct {
	name   string
	mode   Mode
	fields []types.FieldSpec
	pairs  []Pair[E]
	opaque Pair[E]
	lookup bool
}

// variant describes one external representation.
type variant[E External] struct {
	name   string
	pair   func(types.FieldSpec) (Pair[E], types.LogicalType, error)
	opaque Pair[E]
	lookup bool
}

func build[E External](v variant[E], fields []types.FieldSpec) (*RowConverter[E], error) {
	c := &RowConverter[E]{
		name:   v.name,
		fields: append([]types.FieldSpec(nil), fields...),
		lookup: v.lookup,
	}

	if types.IsWildcard(fields) {
		c.mode = Wildcard
		c.opaque = Pair[E]{
			Deserialize: NullableDeserializer(types.String, v.opaque.Deserialize),
			Serialize:   NullableSerializer(v.opaque.Serialize),
		}
		return c, nil
	}

	c.pairs = make([]Pair[E], len(fields))
	for i, f := range fields {
		p, lt, err := v.pair(f)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		c.pairs[i] = Pair[E]{
			Deserialize: NullableDeserializer(lt.Kind, p.Deserialize),
			Serialize:   NullableSerializer(p.Serialize),
		}
	}
	return c, nil
}

func (c *RowConverter[E]) Mode() Mode { return c.mode }

// Fields returns a copy of the field list the converter was built from.
func (c *RowConverter[E]) Fields() []types.FieldSpec {
	return append([]types.FieldSpec(nil), c.fields...)
}

func (c *RowConverter[E]) pairAt(pos int) Pair[E] {
	if c.mode == Wildcard {
		return c.opaque
	}
	return c.pairs[pos]
}

func (c *RowConverter[E]) fieldName(pos int) string {
	if c.mode == Wildcard {
		return fmt.Sprintf("#%d", pos)
	}
	return c.fields[pos].Name
}

func (c *RowConverter[E]) checkArity(n int) error {
	if c.mode == Typed && n != len(c.pairs) {
		return &ShapeMismatchError{
			Want: fmt.Sprintf("%d fields", len(c.pairs)),
			Got:  fmt.Sprintf("%d fields", n),
		}
	}
	return nil
}

// isNil reports a nil interface as well as a nil slice, map or pointer held
// in one.
func isNil(e any) bool {
	if e == nil {
		return true
	}
	switch v := reflect.ValueOf(e); v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// ToInternal decodes one external record into a new row. On error no row is
// returned.
func (c *RowConverter[E]) ToInternal(in E) (*column.Row, error) {
	if isNil(in) {
		return nil, &ShapeMismatchError{Want: c.name + " record", Got: "nil"}
	}
	n := in.Len()
	if err := c.checkArity(n); err != nil {
		return nil, err
	}

	row := column.NewRow(n)
	for pos := 0; pos < n; pos++ {
		v, err := c.pairAt(pos).Deserialize(in, pos)
		if err != nil {
			return nil, fmt.Errorf("decoding field %s: %w", c.fieldName(pos), err)
		}
		row.SetField(pos, v)
	}
	return row, nil
}

// ToExternal encodes row into the caller's buffer and returns it. A nil row
// writes NULL into every slot. On error out may be partially written.
func (c *RowConverter[E]) ToExternal(row *column.Row, out E) (E, error) {
	if isNil(out) {
		return out, &ShapeMismatchError{Want: c.name + " record", Got: "nil"}
	}
	n := out.Len()
	if err := c.checkArity(n); err != nil {
		return out, err
	}
	if row != nil && row.Arity() != n {
		return out, &ShapeMismatchError{
			Want: fmt.Sprintf("row of %d fields", n),
			Got:  fmt.Sprintf("row of %d fields", row.Arity()),
		}
	}

	for pos := 0; pos < n; pos++ {
		if err := c.pairAt(pos).Serialize(row, pos, out); err != nil {
			return out, fmt.Errorf("encoding field %s: %w", c.fieldName(pos), err)
		}
	}
	return out, nil
}

// ToInternalLookup decodes a record fetched by a point lookup.
func (c *RowConverter[E]) ToInternalLookup(in E) (*column.Row, error) {
	if !c.lookup {
		return nil, fmt.Errorf("%s converter: %w", c.name, ErrLookupUnsupported)
	}
	return c.ToInternal(in)
}
