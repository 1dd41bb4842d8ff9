package resp

import (
	"errors"
	"strconv"
)

// ErrEndOfStream is returned by Cursor's Next* methods once every element
// of the underlying Array has been consumed.
var ErrEndOfStream = errors.New("resp: end of stream")

// Cursor wraps an Array Frame as an ordered, typed consumer of its elements,
// the shape every incoming command request takes on the wire.
type Cursor struct {
	elems []Frame
	pos   int
}

// NewCursor returns a Cursor over f's elements. It returns an error if f is
// not an Array frame.
func NewCursor(f Frame) (*Cursor, error) {
	if f.Type != Array {
		return nil, parseErrorf("expected array frame, got %v", f.Type)
	}
	return &Cursor{elems: f.Elems}, nil
}

// Next returns the next Frame, or ErrEndOfStream if the Cursor is exhausted.
func (c *Cursor) Next() (Frame, error) {
	if c.pos >= len(c.elems) {
		return Frame{}, ErrEndOfStream
	}
	f := c.elems[c.pos]
	c.pos++
	return f, nil
}

// NextString returns the next element decoded as a UTF-8 string. Only Simple
// and Bulk frames may be decoded this way.
func (c *Cursor) NextString() (string, error) {
	f, err := c.Next()
	if err != nil {
		return "", err
	}
	return frameToString(f)
}

func frameToString(f Frame) (string, error) {
	switch f.Type {
	case Simple:
		return f.Str, nil
	case Bulk:
		return string(f.Bulk), nil
	default:
		return "", parseErrorf("expected simple or bulk frame, got %v", f.Type)
	}
}

// NextBytes returns the next element's raw bytes. Only Simple and Bulk
// frames may be decoded this way.
func (c *Cursor) NextBytes() ([]byte, error) {
	f, err := c.Next()
	if err != nil {
		return nil, err
	}
	switch f.Type {
	case Simple:
		return []byte(f.Str), nil
	case Bulk:
		return f.Bulk, nil
	default:
		return nil, parseErrorf("expected simple or bulk frame, got %v", f.Type)
	}
}

// NextInt returns the next element decoded as a signed decimal integer.
// Integer frames are taken directly; Simple/Bulk frames are parsed as
// decimal ASCII.
func (c *Cursor) NextInt() (int64, error) {
	f, err := c.Next()
	if err != nil {
		return 0, err
	}
	if f.Type == Integer {
		return f.Int, nil
	}
	s, err := frameToString(f)
	if err != nil {
		return 0, err
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, parseErrorf("expected integer, got %q", s)
	}
	return i, nil
}

// Finish returns an error if the Cursor has unconsumed elements remaining.
func (c *Cursor) Finish() error {
	if c.pos < len(c.elems) {
		return parseErrorf("trailing arguments")
	}
	return nil
}

// Remaining reports how many elements have not yet been consumed.
func (c *Cursor) Remaining() int {
	return len(c.elems) - c.pos
}
