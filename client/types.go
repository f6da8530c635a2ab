package client

import (
	"fmt"
	"time"
)

// Timestamp is a point in time with microsecond precision, the resolution
// the server's history operations work in. The zero value means "no
// timestamp" and is rejected by operations that require one.
type Timestamp struct {
	micros int64
}

// FromMicros builds a Timestamp from microseconds since the Unix epoch.
func FromMicros(micros int64) Timestamp {
	return Timestamp{micros: micros}
}

// FromTime converts a time.Time to a Timestamp, truncating to microseconds.
func FromTime(t time.Time) Timestamp {
	return Timestamp{micros: t.UnixMicro()}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// Micros returns microseconds since the Unix epoch.
func (t Timestamp) Micros() int64 {
	return t.micros
}

// Time converts the Timestamp back to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(t.micros)
}

// IsZero reports whether the Timestamp is the zero value.
func (t Timestamp) IsZero() bool {
	return t.micros == 0
}

// String implements fmt.Stringer.
func (t Timestamp) String() string {
	return t.Time().UTC().Format(time.RFC3339Nano)
}

// Operator is a comparison operator for Find queries. The numeric values
// match the server's wire enum, which starts at 1.
type Operator int

// Comparison operators understood by Find.
const (
	Equals Operator = iota + 1
	NotEquals
	GreaterThan
	GreaterThanOrEquals
	LessThan
	LessThanOrEquals
	Between
	Regex
	NotRegex
)

// operatorSymbols maps operators to the symbolic form newer server lines
// accept on the wire.
var operatorSymbols = map[Operator]string{
	Equals:              "=",
	NotEquals:           "!=",
	GreaterThan:         ">",
	GreaterThanOrEquals: ">=",
	LessThan:            "<",
	LessThanOrEquals:    "<=",
	Between:             "><",
	Regex:               "regex",
	NotRegex:            "nregex",
}

// IsValid reports whether o is a recognized operator.
func (o Operator) IsValid() bool {
	_, ok := operatorSymbols[o]
	return ok
}

// Ordinal returns the wire enum value.
func (o Operator) Ordinal() int {
	return int(o)
}

// Symbol returns the symbolic wire form (e.g. ">=").
func (o Operator) Symbol() string {
	return operatorSymbols[o]
}

// OperandCount returns how many operand values the operator consumes in a
// Find query.
func (o Operator) OperandCount() int {
	if o == Between {
		return 2
	}
	return 1
}

// String implements fmt.Stringer.
func (o Operator) String() string {
	if s, ok := operatorSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Link is a value that points at another record, as stored by the Link
// capability.
type Link int64

// AuditEntry is one change in a record's audit log.
type AuditEntry struct {
	Timestamp Timestamp
	Change    string
}
