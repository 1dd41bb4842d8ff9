package resp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(f))

	r := NewReader(&buf)
	got, err := r.ReadFrame()
	require.NoError(t, err)
	return got
}

func TestRoundTripSimple(t *testing.T) {
	assert.Equal(t, NewSimple("OK"), roundTrip(t, NewSimple("OK")))
}

func TestRoundTripError(t *testing.T) {
	assert.Equal(t, NewError("ERR boom"), roundTrip(t, NewError("ERR boom")))
}

func TestRoundTripInteger(t *testing.T) {
	assert.Equal(t, NewInteger(-42), roundTrip(t, NewInteger(-42)))
}

func TestRoundTripBulk(t *testing.T) {
	assert.Equal(t, NewBulk([]byte("hello")), roundTrip(t, NewBulk([]byte("hello"))))
}

func TestRoundTripEmptyBulk(t *testing.T) {
	assert.Equal(t, NewBulk([]byte{}), roundTrip(t, NewBulk([]byte{})))
}

func TestRoundTripNull(t *testing.T) {
	assert.Equal(t, NewNull(), roundTrip(t, NewNull()))
}

func TestRoundTripArray(t *testing.T) {
	f := NewArray(
		NewBulkString("SET"),
		NewBulkString("key"),
		NewBulkString("value"),
	)
	assert.Equal(t, f, roundTrip(t, f))
}

func TestRoundTripNestedArray(t *testing.T) {
	f := NewArray(NewArray(NewInteger(1), NewInteger(2)), NewBulkString("x"))
	assert.Equal(t, f, roundTrip(t, f))
}

// slowReader trickles bytes one at a time, to exercise ReadFrame against a
// reader that never hands back a full line or bulk payload in one call.
type slowReader struct {
	r io.Reader
}

func (s *slowReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return s.r.Read(p)
}

func TestReadFrameOverSlowReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(NewArray(NewBulkString("PING"))))

	r := NewReader(bufio.NewReader(&slowReader{r: &buf}))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, NewArray(NewBulkString("PING")), f)
}

func TestReadFrameCleanEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameUnexpectedEOFMidBulk(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("$5\r\nhel")))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadFrameUnknownTag(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("?garbage\r\n")))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadFrameBadInteger(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte(":notanumber\r\n")))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadFrameBulkTooLarge(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("$999999999999\r\n")))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadFrameMissingBulkCRLF(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("$3\r\nabcXX")))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadFrameNullBulk(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("$-1\r\n")))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, NewNull(), f)
}

func TestReadFrameNullArray(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("*-1\r\n")))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, NewNull(), f)
}

func TestReadFrameArrayElementErrorPropagates(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("*2\r\n$3\r\nfoo\r\n$bad\r\n")))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrParse)
}

func TestWriteFrameUnknownType(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteFrame(Frame{Type: Type(99)})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrParse))
}
