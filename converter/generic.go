package converter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GenericRecord is a Record over plain Go values; a nil slot is NULL. Getters
// return the stored value unchanged and never coerce between Go types.
type GenericRecord []any

func NewGenericRecord(n int) GenericRecord { return make(GenericRecord, n) }

func (r GenericRecord) Len() int { return len(r) }

func (r GenericRecord) IsNullAt(pos int) bool { return r[pos] == nil }

func (r GenericRecord) SetNull(pos int) { r[pos] = nil }

func (r GenericRecord) Get(pos int) any { return r[pos] }

func (r GenericRecord) Set(pos int, v any) error {
	r[pos] = v
	return nil
}

func (r GenericRecord) Bool(pos int) (bool, error) { return slot[bool](r, pos) }

func (r GenericRecord) Int8(pos int) (int8, error) { return slot[int8](r, pos) }

func (r GenericRecord) Int16(pos int) (int16, error) { return slot[int16](r, pos) }

func (r GenericRecord) Int32(pos int) (int32, error) { return slot[int32](r, pos) }

func (r GenericRecord) Int64(pos int) (int64, error) { return slot[int64](r, pos) }

func (r GenericRecord) Float32(pos int) (float32, error) { return slot[float32](r, pos) }

func (r GenericRecord) Float64(pos int) (float64, error) { return slot[float64](r, pos) }

func (r GenericRecord) Decimal(pos, _, _ int) (decimal.Decimal, error) {
	return slot[decimal.Decimal](r, pos)
}

func (r GenericRecord) String(pos int) (string, error) { return slot[string](r, pos) }

func (r GenericRecord) Bytes(pos int) ([]byte, error) { return slot[[]byte](r, pos) }

func (r GenericRecord) Timestamp(pos, _ int) (time.Time, error) { return slot[time.Time](r, pos) }

func slot[T any](r GenericRecord, pos int) (T, error) {
	v, ok := r[pos].(T)
	if !ok {
		var zero T
		return zero, &ShapeMismatchError{
			Want: fmt.Sprintf("%T at %d", zero, pos),
			Got:  fmt.Sprintf("%T", r[pos]),
		}
	}
	return v, nil
}
