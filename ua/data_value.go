// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// DataValue mask bits select which optional component follows.
const (
	dataValueValue              = 0x01
	dataValueStatusCode         = 0x02
	dataValueSourceTimestamp    = 0x04
	dataValueServerTimestamp    = 0x08
	dataValueSourcePicoseconds  = 0x10
	dataValueServerPicoseconds  = 0x20
)

// DataValue is (value, status, source_timestamp, source_picoseconds,
// server_timestamp, server_picoseconds) with each field independently
// optional.
type DataValue struct {
	Value             *Variant
	Status            StatusCode
	SourceTimestamp   time.Time
	SourcePicoseconds uint16
	ServerTimestamp   time.Time
	ServerPicoseconds uint16

	HasValue             bool
	HasStatus            bool
	HasSourceTimestamp   bool
	HasSourcePicoseconds bool
	HasServerTimestamp   bool
	HasServerPicoseconds bool
}

func (v *DataValue) mask() byte {
	var m byte
	if v.HasValue {
		m |= dataValueValue
	}
	if v.HasStatus {
		m |= dataValueStatusCode
	}
	if v.HasSourceTimestamp {
		m |= dataValueSourceTimestamp
	}
	if v.HasServerTimestamp {
		m |= dataValueServerTimestamp
	}
	if v.HasSourcePicoseconds {
		m |= dataValueSourcePicoseconds
	}
	if v.HasServerPicoseconds {
		m |= dataValueServerPicoseconds
	}
	return m
}

func (v *DataValue) MarshalOPCUA(e *Encoder) error {
	m := v.mask()
	e.WriteByte(m)
	if m&dataValueValue != 0 {
		e.Encode(v.Value)
	}
	if m&dataValueStatusCode != 0 {
		e.WriteUint32(uint32(v.Status))
	}
	if m&dataValueSourceTimestamp != 0 {
		e.WriteTime(v.SourceTimestamp)
	}
	if m&dataValueSourcePicoseconds != 0 {
		e.WriteUint16(v.SourcePicoseconds)
	}
	if m&dataValueServerTimestamp != 0 {
		e.WriteTime(v.ServerTimestamp)
	}
	if m&dataValueServerPicoseconds != 0 {
		e.WriteUint16(v.ServerPicoseconds)
	}
	return e.Err()
}

func (v *DataValue) UnmarshalOPCUA(d *Decoder) error {
	m := d.ReadByte()
	v.HasValue = m&dataValueValue != 0
	v.HasStatus = m&dataValueStatusCode != 0
	v.HasSourceTimestamp = m&dataValueSourceTimestamp != 0
	v.HasSourcePicoseconds = m&dataValueSourcePicoseconds != 0
	v.HasServerTimestamp = m&dataValueServerTimestamp != 0
	v.HasServerPicoseconds = m&dataValueServerPicoseconds != 0
	if v.HasValue {
		v.Value = &Variant{}
		d.Decode(v.Value)
	}
	if v.HasStatus {
		v.Status = StatusCode(d.ReadUint32())
	}
	if v.HasSourceTimestamp {
		v.SourceTimestamp = d.ReadTime()
	}
	if v.HasSourcePicoseconds {
		v.SourcePicoseconds = d.ReadUint16()
	}
	if v.HasServerTimestamp {
		v.ServerTimestamp = d.ReadTime()
	}
	if v.HasServerPicoseconds {
		v.ServerPicoseconds = d.ReadUint16()
	}
	return d.Err()
}

// NewDataValue builds a fully-populated DataValue for value v with the given
// status and both timestamps set to ts, the common case for a monitored
// item sample.
func NewDataValue(v interface{}, status StatusCode, ts time.Time) (*DataValue, error) {
	variant, err := NewVariant(v)
	if err != nil {
		return nil, err
	}
	return &DataValue{
		Value: variant, HasValue: true,
		Status: status, HasStatus: true,
		SourceTimestamp: ts, HasSourceTimestamp: true,
		ServerTimestamp: ts, HasServerTimestamp: true,
	}, nil
}
