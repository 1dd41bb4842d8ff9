// Package resp implements the RESP wire protocol: a small set of framed
// values (simple strings, errors, integers, bulk strings, arrays, and null)
// read and written over a buffered byte stream, plus a cursor for consuming
// an Array frame as a typed argument list.
package resp

import "fmt"

// Type identifies which RESP variant a Frame holds.
type Type int

const (
	// Simple is a short, CRLF-terminated text line with no embedded CR/LF.
	Simple Type = iota
	// Error is like Simple but represents a command-level error.
	Error
	// Integer is a signed 64-bit decimal value.
	Integer
	// Bulk is a length-prefixed byte blob, possibly empty.
	Bulk
	// Null represents either a null bulk string ($-1) or a null array (*-1).
	Null
	// Array is an ordered sequence of child Frames.
	Array
)

func (t Type) String() string {
	switch t {
	case Simple:
		return "Simple"
	case Error:
		return "Error"
	case Integer:
		return "Integer"
	case Bulk:
		return "Bulk"
	case Null:
		return "Null"
	case Array:
		return "Array"
	default:
		return "Unknown"
	}
}

// Frame is the protocol's sum type. Which fields are meaningful depends on
// Type:
//   - Simple/Error: Str
//   - Integer: Int
//   - Bulk: Bulk (nil only for Null, an empty non-nil slice is a valid
//     zero-length bulk)
//   - Array: Elems
//   - Null: no other field is meaningful
type Frame struct {
	Type  Type
	Str   string
	Int   int64
	Bulk  []byte
	Elems []Frame
}

// NewSimple returns a Simple frame.
func NewSimple(s string) Frame { return Frame{Type: Simple, Str: s} }

// NewError returns an Error frame.
func NewError(s string) Frame { return Frame{Type: Error, Str: s} }

// NewInteger returns an Integer frame.
func NewInteger(i int64) Frame { return Frame{Type: Integer, Int: i} }

// NewBulk returns a Bulk frame wrapping b. A nil b still produces a
// zero-length (not Null) bulk; use NewNull for an explicit null.
func NewBulk(b []byte) Frame {
	if b == nil {
		b = []byte{}
	}
	return Frame{Type: Bulk, Bulk: b}
}

// NewBulkString is shorthand for NewBulk([]byte(s)).
func NewBulkString(s string) Frame { return NewBulk([]byte(s)) }

// NewNull returns a Null frame.
func NewNull() Frame { return Frame{Type: Null} }

// NewArray returns an Array frame wrapping elems.
func NewArray(elems ...Frame) Frame { return Frame{Type: Array, Elems: elems} }

// Errorf is shorthand for NewError(fmt.Sprintf(format, args...)).
func Errorf(format string, args ...interface{}) Frame {
	return NewError(fmt.Sprintf(format, args...))
}
