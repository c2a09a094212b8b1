package column

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rowbridge/types"
)

// Value is one nullable, typed field of an internal row. The zero Value is a
// NULL of kind types.Null.
type Value struct {
	kind  types.Kind
	valid bool

	b   bool
	i   int64
	f   float64
	dec decimal.Decimal
	// numeric kinds decoded from text keep the exact decimal form in dec
	exact bool
	s     string
	raw   []byte
	t     time.Time

	precision int
	scale     int
}

// CastError reports that a value cannot be read in the requested form.
type CastError struct {
	From types.Kind
	To   string
	Err  error
}

func (e *CastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot read %s value as %s: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("cannot read %s value as %s", e.From, e.To)
}

func (e *CastError) Unwrap() error { return e.Err }

func NullOf(kind types.Kind) Value { return Value{kind: kind} }

func Bool(v bool) Value { return Value{kind: types.Boolean, valid: true, b: v} }

func TinyInt(v int8) Value { return Value{kind: types.TinyInt, valid: true, i: int64(v)} }

func SmallInt(v int16) Value { return Value{kind: types.SmallInt, valid: true, i: int64(v)} }

func Int(v int32) Value { return Value{kind: types.Int, valid: true, i: int64(v)} }

func BigInt(v int64) Value { return Value{kind: types.BigInt, valid: true, i: v} }

func Float(v float32) Value { return Value{kind: types.Float, valid: true, f: float64(v)} }

func Double(v float64) Value { return Value{kind: types.Double, valid: true, f: v} }

func Decimal(v decimal.Decimal, precision, scale int) Value {
	return Value{kind: types.Decimal, valid: true, dec: v, exact: true, precision: precision, scale: scale}
}

// Numeric returns a value of the given numeric kind that keeps v exactly, so
// text sources never lose digits before the sink decides how to render them.
func Numeric(kind types.Kind, v decimal.Decimal) Value {
	return Value{kind: kind, valid: true, dec: v, exact: true}
}

func String(v string) Value { return Value{kind: types.String, valid: true, s: v} }

func Bytes(v []byte) Value { return Value{kind: types.Binary, valid: true, raw: v} }

// Date keeps only the calendar day of v, in UTC.
func Date(v time.Time) Value {
	y, m, d := v.Date()
	return Value{kind: types.Date, valid: true, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Time keeps only the time of day of v, anchored at the epoch day.
func Time(v time.Time) Value {
	return Value{kind: types.Time, valid: true,
		t: time.Date(1970, 1, 1, v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), time.UTC)}
}

func Timestamp(v time.Time, precision int) Value {
	return Value{kind: types.Timestamp, valid: true, t: v.UTC(), precision: precision}
}

func (v Value) Kind() types.Kind { return v.kind }

func (v Value) IsNull() bool { return !v.valid }

// Precision is the fractional-second precision of a timestamp or the
// precision of a decimal.
func (v Value) Precision() int { return v.precision }

func (v Value) Scale() int { return v.scale }

func (v Value) castErr(to string, err error) error {
	from := v.kind
	if !v.valid {
		return &CastError{From: types.Null, To: to, Err: err}
	}
	return &CastError{From: from, To: to, Err: err}
}

func (v Value) isInteger() bool {
	switch v.kind {
	case types.TinyInt, types.SmallInt, types.Int, types.BigInt:
		return true
	}
	return false
}

func (v Value) AsBool() (bool, error) {
	if !v.valid {
		return false, v.castErr("BOOLEAN", nil)
	}
	switch {
	case v.kind == types.Boolean:
		return v.b, nil
	case v.exact:
		return !v.dec.IsZero(), nil
	case v.isInteger():
		return v.i != 0, nil
	case v.kind == types.Float || v.kind == types.Double:
		return v.f != 0, nil
	case v.kind == types.String:
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		if err != nil {
			return false, v.castErr("BOOLEAN", err)
		}
		return b, nil
	}
	return false, v.castErr("BOOLEAN", nil)
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// AsInt64 truncates fractional numbers toward zero and fails on overflow.
// Temporal values are read as epoch milliseconds.
func (v Value) AsInt64() (int64, error) {
	if !v.valid {
		return 0, v.castErr("BIGINT", nil)
	}
	switch {
	case v.exact:
		return decimalToInt64(v.dec, v.castErr)
	case v.isInteger():
		return v.i, nil
	case v.kind == types.Boolean:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case v.kind == types.Float || v.kind == types.Double:
		if math.IsNaN(v.f) || v.f >= math.MaxInt64 || v.f < math.MinInt64 {
			return 0, v.castErr("BIGINT", fmt.Errorf("%v out of range", v.f))
		}
		return int64(v.f), nil
	case v.kind == types.String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.s))
		if err != nil {
			return 0, v.castErr("BIGINT", err)
		}
		return decimalToInt64(d, v.castErr)
	case v.kind == types.Timestamp || v.kind == types.Date || v.kind == types.Time:
		return v.t.UnixMilli(), nil
	}
	return 0, v.castErr("BIGINT", nil)
}

func decimalToInt64(d decimal.Decimal, fail func(string, error) error) (int64, error) {
	d = d.Truncate(0)
	if d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, fail("BIGINT", fmt.Errorf("%s out of range", d))
	}
	return d.IntPart(), nil
}

func (v Value) asBoundedInt(to string, lo, hi int64) (int64, error) {
	n, err := v.AsInt64()
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, v.castErr(to, fmt.Errorf("%d out of range", n))
	}
	return n, nil
}

func (v Value) AsInt8() (int8, error) {
	n, err := v.asBoundedInt("TINYINT", math.MinInt8, math.MaxInt8)
	return int8(n), err
}

func (v Value) AsInt16() (int16, error) {
	n, err := v.asBoundedInt("SMALLINT", math.MinInt16, math.MaxInt16)
	return int16(n), err
}

func (v Value) AsInt32() (int32, error) {
	n, err := v.asBoundedInt("INT", math.MinInt32, math.MaxInt32)
	return int32(n), err
}

func (v Value) AsFloat64() (float64, error) {
	if !v.valid {
		return 0, v.castErr("DOUBLE", nil)
	}
	switch {
	case v.exact:
		return v.dec.InexactFloat64(), nil
	case v.isInteger():
		return float64(v.i), nil
	case v.kind == types.Float || v.kind == types.Double:
		return v.f, nil
	case v.kind == types.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, v.castErr("DOUBLE", err)
		}
		return f, nil
	}
	return 0, v.castErr("DOUBLE", nil)
}

func (v Value) AsFloat32() (float32, error) {
	f, err := v.AsFloat64()
	if err != nil {
		return 0, err
	}
	if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, v.castErr("FLOAT", fmt.Errorf("%v out of range", f))
	}
	return float32(f), nil
}

func (v Value) AsDecimal() (decimal.Decimal, error) {
	if !v.valid {
		return decimal.Zero, v.castErr("DECIMAL", nil)
	}
	switch {
	case v.exact:
		return v.dec, nil
	case v.isInteger():
		return decimal.NewFromInt(v.i), nil
	case v.kind == types.Float:
		return decimal.NewFromFloat32(float32(v.f)), nil
	case v.kind == types.Double:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return decimal.Zero, v.castErr("DECIMAL", fmt.Errorf("%v", v.f))
		}
		return decimal.NewFromFloat(v.f), nil
	case v.kind == types.String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.s))
		if err != nil {
			return decimal.Zero, v.castErr("DECIMAL", err)
		}
		return d, nil
	}
	return decimal.Zero, v.castErr("DECIMAL", nil)
}

// AsString renders the value in its canonical text form.
func (v Value) AsString() (string, error) {
	if !v.valid {
		return "", v.castErr("STRING", nil)
	}
	switch {
	case v.exact:
		return v.dec.String(), nil
	case v.isInteger():
		return strconv.FormatInt(v.i, 10), nil
	}
	switch v.kind {
	case types.Boolean:
		return strconv.FormatBool(v.b), nil
	case types.Float:
		return strconv.FormatFloat(v.f, 'f', -1, 32), nil
	case types.Double:
		return strconv.FormatFloat(v.f, 'f', -1, 64), nil
	case types.String:
		return v.s, nil
	case types.Binary:
		return string(v.raw), nil
	case types.Date:
		return v.t.Format(DateLayout), nil
	case types.Time:
		return FormatTime(v.t), nil
	case types.Timestamp:
		return FormatTimestamp(v.t, v.precision), nil
	}
	return "", v.castErr("STRING", nil)
}

func (v Value) AsBytes() ([]byte, error) {
	if !v.valid {
		return nil, v.castErr("BYTES", nil)
	}
	switch v.kind {
	case types.Binary:
		return v.raw, nil
	case types.String:
		return []byte(v.s), nil
	}
	return nil, v.castErr("BYTES", nil)
}

// AsTime returns the instant of a temporal value. Integers are read as epoch
// milliseconds and strings through ParseTimestamp.
func (v Value) AsTime() (time.Time, error) {
	if !v.valid {
		return time.Time{}, v.castErr("TIMESTAMP", nil)
	}
	switch v.kind {
	case types.Timestamp, types.Date, types.Time:
		return v.t, nil
	case types.String:
		t, _, ok := ParseTimestamp(v.s)
		if !ok {
			return time.Time{}, v.castErr("TIMESTAMP", fmt.Errorf("unparseable %q", v.s))
		}
		return t, nil
	}
	if v.isInteger() {
		ms, err := v.AsInt64()
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, v.castErr("TIMESTAMP", nil)
}

// AsTimestampString renders a timestamp with its own precision; other
// temporal values render with whole seconds.
func (v Value) AsTimestampString() (string, error) {
	if v.valid && v.kind == types.Timestamp {
		return FormatTimestamp(v.t, v.precision), nil
	}
	t, err := v.AsTime()
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t, 0), nil
}

func (v Value) String() string {
	if !v.valid {
		return "NULL"
	}
	s, err := v.AsString()
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return fmt.Sprintf("%s(%s)", v.kind, s)
}
