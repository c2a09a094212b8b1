package types

import (
	"fmt"
	"strconv"
)

// alias is one row of the declared-name table. Only names with args set
// honor the parenthesized precision/scale arguments.
type alias struct {
	kind Kind
	args bool
}

var aliases = map[string]alias{
	"BOOLEAN": {kind: Boolean},

	"TINYINT": {kind: TinyInt},
	"INT8":    {kind: TinyInt},
	"UINT8":   {kind: TinyInt},

	"SMALLINT": {kind: SmallInt},
	"UINT16":   {kind: SmallInt},
	"INT16":    {kind: SmallInt},

	"INTEGER":         {kind: Int},
	"INT":             {kind: Int},
	"INT32":           {kind: Int},
	"INTERVALYEAR":    {kind: Int},
	"INTERVALQUARTER": {kind: Int},
	"INTERVALMONTH":   {kind: Int},
	"INTERVALWEEK":    {kind: Int},
	"INTERVALDAY":     {kind: Int},
	"INTERVALHOUR":    {kind: Int},
	"INTERVALMINUTE":  {kind: Int},
	"INTERVALSECOND":  {kind: Int},

	"BIGINT": {kind: BigInt},
	"INT64":  {kind: BigInt},
	"UINT32": {kind: BigInt},
	"UINT64": {kind: BigInt},

	"FLOAT":   {kind: Float},
	"FLOAT32": {kind: Float},
	"DOUBLE":  {kind: Double},
	"FLOAT64": {kind: Double},

	"DECIMAL":    {kind: Decimal, args: true},
	"DECIMAL32":  {kind: Decimal, args: true},
	"DECIMAL64":  {kind: Decimal, args: true},
	"DECIMAL128": {kind: Decimal, args: true},
	"DEC":        {kind: Decimal, args: true},

	"UUID":        {kind: String},
	"COLLECTION":  {kind: String},
	"BLOB":        {kind: String},
	"LONGTEXT":    {kind: String},
	"TINYTEXT":    {kind: String},
	"TEXT":        {kind: String},
	"CHAR":        {kind: String},
	"MEDIUMTEXT":  {kind: String},
	"TINYBLOB":    {kind: String},
	"MEDIUMBLOB":  {kind: String},
	"LONGBLOB":    {kind: String},
	"STRUCT":      {kind: String},
	"VARCHAR":     {kind: String},
	"STRING":      {kind: String},
	"ENUM8":       {kind: String},
	"ENUM16":      {kind: String},
	"FIXEDSTRING": {kind: String},
	"NESTED":      {kind: String},

	"DATE":      {kind: Date},
	"TIME":      {kind: Time},
	"TIMESTAMP": {kind: Timestamp, args: true},
	"DATETIME":  {kind: Timestamp},

	"BYTES":  {kind: Binary},
	"BINARY": {kind: Binary},

	"NOTHING":  {kind: Null},
	"NULLABLE": {kind: Null},
	"NULL":     {kind: Null},
}

// Resolve maps a parsed declared type to its LogicalType.
func Resolve(d Descriptor) (LogicalType, error) {
	a, ok := aliases[d.Base]
	if !ok {
		return LogicalType{}, &UnsupportedTypeError{Type: d.Raw}
	}

	switch a.kind {
	case Decimal:
		t := DecimalType(DefaultDecimalPrecision, DefaultDecimalScale)
		if a.args {
			if n, ok := intArgs(d.Args, 2); ok {
				t = DecimalType(n[0], n[1])
			}
		}
		if t.Precision < 1 || t.Precision > MaxDecimalPrecision || t.Scale < 0 || t.Scale > t.Precision {
			return LogicalType{}, &UnsupportedTypeError{
				Type:   d.Raw,
				Reason: fmt.Sprintf("decimal precision %d scale %d out of range", t.Precision, t.Scale),
			}
		}
		return t, nil
	case Timestamp:
		t := TimestampType(DefaultTimestampPrecision)
		if a.args {
			if n, ok := intArgs(d.Args, 1); ok {
				t = TimestampType(n[0])
			}
		}
		if t.Precision < 0 || t.Precision > MaxTimestampPrecision {
			return LogicalType{}, &UnsupportedTypeError{
				Type:   d.Raw,
				Reason: fmt.Sprintf("timestamp precision %d out of range", t.Precision),
			}
		}
		return t, nil
	default:
		return LogicalType{Kind: a.kind}, nil
	}
}

// ResolveString parses and resolves a declared type string.
func ResolveString(raw string) (LogicalType, error) {
	return Resolve(Parse(raw))
}

// intArgs returns the arguments as integers when there are exactly n of them
// and all parse.
func intArgs(args []string, n int) ([]int, bool) {
	if len(args) != n {
		return nil, false
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
