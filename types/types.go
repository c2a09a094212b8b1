package types

import "fmt"

// Kind is the closed set of logical types every declared type resolves to.
type Kind int

const (
	Null Kind = iota
	Boolean
	TinyInt
	SmallInt
	Int
	BigInt
	Float
	Double
	Decimal
	String
	Date
	Time
	Timestamp
	Binary
)

var kindNames = [...]string{
	Null:      "NULL",
	Boolean:   "BOOLEAN",
	TinyInt:   "TINYINT",
	SmallInt:  "SMALLINT",
	Int:       "INT",
	BigInt:    "BIGINT",
	Float:     "FLOAT",
	Double:    "DOUBLE",
	Decimal:   "DECIMAL",
	String:    "STRING",
	Date:      "DATE",
	Time:      "TIME",
	Timestamp: "TIMESTAMP",
	Binary:    "BYTES",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsNumeric reports whether values of the kind are numbers.
func (k Kind) IsNumeric() bool {
	switch k {
	case TinyInt, SmallInt, Int, BigInt, Float, Double, Decimal:
		return true
	}
	return false
}

const (
	DefaultDecimalPrecision   = 38
	DefaultDecimalScale       = 18
	DefaultTimestampPrecision = 3
	MaxDecimalPrecision       = 38
	MaxTimestampPrecision     = 9
)

// LogicalType is a resolved column type. Precision and Scale are only
// meaningful for Decimal; Precision alone for Timestamp.
type LogicalType struct {
	Kind      Kind
	Precision int
	Scale     int
}

func (t LogicalType) String() string {
	switch t.Kind {
	case Decimal:
		return fmt.Sprintf("DECIMAL(%d, %d)", t.Precision, t.Scale)
	case Timestamp:
		return fmt.Sprintf("TIMESTAMP(%d)", t.Precision)
	default:
		return t.Kind.String()
	}
}

func DecimalType(precision, scale int) LogicalType {
	return LogicalType{Kind: Decimal, Precision: precision, Scale: scale}
}

func TimestampType(precision int) LogicalType {
	return LogicalType{Kind: Timestamp, Precision: precision}
}

// Wildcard is the field name that selects every column as text.
const Wildcard = "*"

// FieldSpec is one configured column: a name and its declared type string.
type FieldSpec struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// IsWildcard reports whether fields is the single "*" entry.
func IsWildcard(fields []FieldSpec) bool {
	return len(fields) == 1 && fields[0].Name == Wildcard
}

// UnsupportedTypeError is returned for declared types that cannot be resolved.
type UnsupportedTypeError struct {
	Type   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported type: %s (%s)", e.Type, e.Reason)
	}
	return fmt.Sprintf("unsupported type: %s", e.Type)
}
