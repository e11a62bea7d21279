// Package codec serializes journal records into the flat byte payloads stored
// inside encrypted containers. All integers are big-endian; strings carry a
// u32 byte length with 0xFFFFFFFF marking a null string.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

const nullLength = 0xFFFFFFFF

var (
	// ErrTruncated is returned when a payload ends inside a field.
	ErrTruncated = errors.New("payload truncated")
	// ErrTrailingBytes is returned when bytes remain after the last field.
	ErrTrailingBytes = errors.New("unexpected trailing bytes")
	// ErrInvalidField is returned when a field decodes to an impossible value.
	ErrInvalidField = errors.New("invalid field")
)

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) i64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *writer) f64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) nullableStr(s string) {
	if s == "" {
		w.u32(nullLength)
		return
	}
	w.str(s)
}

// reader decodes fields in order. The first failure sticks; later reads
// return zero values and err reports it.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data)-r.off {
		r.fail(ErrTruncated)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *reader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// str reads a string; a null string reads as "".
func (r *reader) str() string {
	n := r.u32()
	if r.err != nil || n == nullLength {
		return ""
	}
	if uint64(n) > uint64(len(r.data)-r.off) {
		r.fail(ErrTruncated)
		return ""
	}
	b := r.take(int(n))
	if !utf8.Valid(b) {
		r.fail(fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidField))
		return ""
	}
	return string(b)
}

// count reads a list length and checks it against the bytes left, given the
// minimum encoded size of one element.
func (r *reader) count(minElem int) int {
	n := r.u32()
	if r.err != nil {
		return 0
	}
	if uint64(n)*uint64(minElem) > uint64(len(r.data)-r.off) {
		r.fail(ErrTruncated)
		return 0
	}
	return int(n)
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

// finish reports the sticky error, or ErrTrailingBytes if input is left over.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, r.remaining())
	}
	return nil
}
