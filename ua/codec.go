// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
	"time"
)

// DecodeLimits bounds what a Decoder will accept, : strings,
// arrays and byte strings longer than the configured maximum fail with
// BadEncodingLimitsExceeded, and recursion deeper than MaxDepth fails with
// BadDecodingError.
type DecodeLimits struct {
	MaxStringLength     int
	MaxByteStringLength int
	MaxArrayLength      int
	MaxDepth            int
}

// DefaultDecodeLimits mirrors the conservative defaults most OPC UA stacks
// ship with.
var DefaultDecodeLimits = DecodeLimits{
	MaxStringLength:     1 << 20,
	MaxByteStringLength: 1 << 20,
	MaxArrayLength:       1 << 16,
	MaxDepth:            32,
}

// Marshaler is implemented by built-in types (NodeID, Variant, ...) whose
// wire layout is not a plain concatenation of its Go fields.
type Marshaler interface {
	MarshalOPCUA(e *Encoder) error
}

// Unmarshaler is the decode counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalOPCUA(d *Decoder) error
}

// Encoder writes the OPC UA binary encoding: little-endian
// integers and floats, i32-length-prefixed strings/byte strings/arrays.
type Encoder struct {
	buf bytes.Buffer
	err error
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded output so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Err returns the first error encountered during encoding, if any.
func (e *Encoder) Err() error { return e.err }

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *Encoder) WriteByte(b byte) {
	if e.err != nil {
		return
	}
	e.buf.WriteByte(b)
}

func (e *Encoder) WriteBytes(b []byte) {
	if e.err != nil {
		return
	}
	e.buf.Write(b)
}

func (e *Encoder) WriteUint16(v uint16) {
	if e.err != nil {
		return
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteUint32(v uint32) {
	if e.err != nil {
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteUint64(v uint64) {
	if e.err != nil {
		return
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }
func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

func (e *Encoder) WriteFloat32(v float32) {
	e.WriteUint32(math.Float32bits(v))
}

func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

// WriteString writes an i32-length-prefixed UTF-8 string; the empty string
// is written as the null string (length -1).
func (e *Encoder) WriteString(s string) {
	if e.err != nil {
		return
	}
	if s == "" {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(s)))
	e.buf.WriteString(s)
}

// WriteByteString writes a length-prefixed byte string; nil encodes as -1.
func (e *Encoder) WriteByteString(b []byte) {
	if e.err != nil {
		return
	}
	if b == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(b)))
	e.buf.Write(b)
}

// WriteTime writes an OPC UA DateTime: 100ns ticks since 1601-01-01 UTC.
func (e *Encoder) WriteTime(t time.Time) {
	e.WriteInt64(TimeToFileTime(t))
}

// Encode appends v using reflection: struct fields are encoded in
// declaration order; types implementing Marshaler are delegated to.
// This is the generic counterpart to the per-field layouts 
// mandates bit-for-bit for generated structures.
func (e *Encoder) Encode(v interface{}) {
	if e.err != nil {
		return
	}
	if v == nil {
		return
	}
	if m, ok := v.(Marshaler); ok {
		if err := m.MarshalOPCUA(e); err != nil {
			e.fail(err)
		}
		return
	}
	e.encodeValue(reflect.ValueOf(v))
}

func (e *Encoder) encodeValue(rv reflect.Value) {
	if e.err != nil {
		return
	}
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return
		}
		e.encodeValue(rv.Elem())
	case reflect.Struct:
		if m, ok := rv.Addr().Interface().(Marshaler); ok {
			if err := m.MarshalOPCUA(e); err != nil {
				e.fail(err)
			}
			return
		}
		if t, ok := rv.Interface().(time.Time); ok {
			e.WriteTime(t)
			return
		}
		for i := 0; i < rv.NumField(); i++ {
			ft := rv.Type().Field(i)
			if ft.PkgPath != "" { // unexported
				continue
			}
			e.encodeValue(rv.Field(i))
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			e.WriteByteString(rv.Bytes())
			return
		}
		if rv.IsNil() {
			e.WriteInt32(-1)
			return
		}
		e.WriteInt32(int32(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			e.encodeValue(rv.Index(i))
		}
	case reflect.String:
		e.WriteString(rv.String())
	case reflect.Bool:
		if rv.Bool() {
			e.WriteByte(1)
		} else {
			e.WriteByte(0)
		}
	case reflect.Uint8:
		e.WriteByte(byte(rv.Uint()))
	case reflect.Uint16:
		e.WriteUint16(uint16(rv.Uint()))
	case reflect.Uint32:
		e.WriteUint32(uint32(rv.Uint()))
	case reflect.Uint64:
		e.WriteUint64(rv.Uint())
	case reflect.Int16:
		e.WriteUint16(uint16(rv.Int()))
	case reflect.Int32:
		e.WriteInt32(int32(rv.Int()))
	case reflect.Int64:
		e.WriteInt64(rv.Int())
	case reflect.Float32:
		e.WriteFloat32(float32(rv.Float()))
	case reflect.Float64:
		e.WriteFloat64(rv.Float())
	case reflect.Interface:
		if rv.IsNil() {
			return
		}
		e.Encode(rv.Interface())
	default:
		e.fail(fmt.Errorf("ua: cannot encode kind %s", rv.Kind()))
	}
}

// Decoder reads the OPC UA binary encoding, enforcing DecodeLimits.
type Decoder struct {
	r      *bytes.Reader
	limits DecodeLimits
	depth  int
	err    error
}

// NewDecoder wraps b for decoding with the given limits.
func NewDecoder(b []byte, limits DecodeLimits) *Decoder {
	return &Decoder{r: bytes.NewReader(b), limits: limits}
}

func (d *Decoder) Err() error { return d.err }

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Len returns the number of unread bytes.
func (d *Decoder) Len() int { return d.r.Len() }

func (d *Decoder) read(n int) []byte {
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.fail(fmt.Errorf("%w: %v", StatusBadDecodingError, err))
		return nil
	}
	return b
}

func (d *Decoder) ReadByte() byte {
	b := d.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) ReadUint16() uint16 {
	b := d.read(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *Decoder) ReadUint32() uint32 {
	b := d.read(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) ReadUint64() uint64 {
	b := d.read(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *Decoder) ReadInt32() int32 { return int32(d.ReadUint32()) }
func (d *Decoder) ReadInt64() int64 { return int64(d.ReadUint64()) }

func (d *Decoder) ReadFloat32() float32 { return math.Float32frombits(d.ReadUint32()) }
func (d *Decoder) ReadFloat64() float64 { return math.Float64frombits(d.ReadUint64()) }

// ReadString reads an i32-length-prefixed UTF-8 string; length -1 yields "".
func (d *Decoder) ReadString() string {
	n := d.ReadInt32()
	if d.err != nil || n <= 0 {
		return ""
	}
	if int(n) > d.limits.MaxStringLength {
		d.fail(fmt.Errorf("%w: string length %d exceeds limit %d", StatusBadEncodingLimitsExceeded, n, d.limits.MaxStringLength))
		return ""
	}
	b := d.read(int(n))
	return string(b)
}

// ReadByteString reads a length-prefixed byte string; length -1 yields nil.
func (d *Decoder) ReadByteString() []byte {
	n := d.ReadInt32()
	if d.err != nil || n < 0 {
		return nil
	}
	if int(n) > d.limits.MaxByteStringLength {
		d.fail(fmt.Errorf("%w: byte string length %d exceeds limit %d", StatusBadEncodingLimitsExceeded, n, d.limits.MaxByteStringLength))
		return nil
	}
	return d.read(int(n))
}

// ReadTime reads an OPC UA DateTime.
func (d *Decoder) ReadTime() time.Time {
	return FileTimeToTime(d.ReadInt64())
}

// ArrayLen reads and validates an array length prefix, or returns -1 for a
// null array.
func (d *Decoder) ArrayLen() int {
	n := d.ReadInt32()
	if d.err != nil {
		return -1
	}
	if n < 0 {
		return -1
	}
	if int(n) > d.limits.MaxArrayLength {
		d.fail(fmt.Errorf("%w: array length %d exceeds limit %d", StatusBadEncodingLimitsExceeded, n, d.limits.MaxArrayLength))
		return -1
	}
	return int(n)
}

// Decode fills v (a pointer) using reflection, mirroring Encoder.Encode.
func (d *Decoder) Decode(v interface{}) {
	if d.err != nil {
		return
	}
	if d.depth++; d.depth > d.limits.MaxDepth {
		d.fail(fmt.Errorf("%w: recursion depth exceeded", StatusBadDecodingError))
		return
	}
	defer func() { d.depth-- }()

	if u, ok := v.(Unmarshaler); ok {
		if err := u.UnmarshalOPCUA(d); err != nil {
			d.fail(err)
		}
		return
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		d.fail(fmt.Errorf("ua: Decode requires a non-nil pointer, got %T", v))
		return
	}
	d.decodeValue(rv.Elem())
}

func (d *Decoder) decodeValue(rv reflect.Value) {
	if d.err != nil {
		return
	}
	if rv.CanAddr() {
		if u, ok := rv.Addr().Interface().(Unmarshaler); ok {
			if err := u.UnmarshalOPCUA(d); err != nil {
				d.fail(err)
			}
			return
		}
	}
	switch rv.Kind() {
	case reflect.Ptr:
		if d.depth++; d.depth > d.limits.MaxDepth {
			d.depth--
			d.fail(fmt.Errorf("%w: recursion depth exceeded", StatusBadDecodingError))
			return
		}
		defer func() { d.depth-- }()
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		d.decodeValue(rv.Elem())
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			rv.Set(reflect.ValueOf(d.ReadTime()))
			return
		}
		for i := 0; i < rv.NumField(); i++ {
			ft := rv.Type().Field(i)
			if ft.PkgPath != "" {
				continue
			}
			d.decodeValue(rv.Field(i))
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			rv.SetBytes(d.ReadByteString())
			return
		}
		n := d.ArrayLen()
		if d.err != nil || n < 0 {
			rv.Set(reflect.Zero(rv.Type()))
			return
		}
		s := reflect.MakeSlice(rv.Type(), n, n)
		for i := 0; i < n; i++ {
			d.decodeValue(s.Index(i))
		}
		rv.Set(s)
	case reflect.String:
		rv.SetString(d.ReadString())
	case reflect.Bool:
		rv.SetBool(d.ReadByte() != 0)
	case reflect.Uint8:
		rv.SetUint(uint64(d.ReadByte()))
	case reflect.Uint16:
		rv.SetUint(uint64(d.ReadUint16()))
	case reflect.Uint32:
		rv.SetUint(uint64(d.ReadUint32()))
	case reflect.Uint64:
		rv.SetUint(d.ReadUint64())
	case reflect.Int16:
		rv.SetInt(int64(int16(d.ReadUint16())))
	case reflect.Int32:
		rv.SetInt(int64(d.ReadInt32()))
	case reflect.Int64:
		rv.SetInt(d.ReadInt64())
	case reflect.Float32:
		rv.SetFloat(float64(d.ReadFloat32()))
	case reflect.Float64:
		rv.SetFloat(d.ReadFloat64())
	default:
		d.fail(fmt.Errorf("ua: cannot decode kind %s", rv.Kind()))
	}
}

// Encode is a package-level convenience that encodes v to bytes.
func Encode(v interface{}) ([]byte, error) {
	e := NewEncoder()
	e.Encode(v)
	return e.Bytes(), e.Err()
}

// Decode is a package-level convenience that decodes b into v using the
// default decode limits.
func Decode(b []byte, v interface{}) error {
	d := NewDecoder(b, DefaultDecodeLimits)
	d.Decode(v)
	return d.Err()
}
