// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/google/uuid"

// GUID is a NodeId Guid variant value. It wraps
// github.com/google/uuid.UUID but encodes on the wire using the mixed
// little/big-endian layout Microsoft GUIDs (and therefore OPC UA) use:
// Data1 (u32 LE), Data2 (u16 LE), Data3 (u16 LE), Data4 (8 bytes, as-is).
type GUID uuid.UUID

// NewGUID generates a random GUID.
func NewGUID() GUID {
	return GUID(uuid.New())
}

// ParseGUID parses a canonical "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx" string.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, err
	}
	return GUID(u), nil
}

func (g GUID) String() string { return uuid.UUID(g).String() }

func (g GUID) MarshalOPCUA(e *Encoder) error {
	b := [16]byte(g)
	e.WriteUint32(uint32(b[0])<<0 | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	e.WriteUint16(uint16(b[4]) | uint16(b[5])<<8)
	e.WriteUint16(uint16(b[6]) | uint16(b[7])<<8)
	e.WriteBytes(b[8:16])
	return e.Err()
}

func (g *GUID) UnmarshalOPCUA(d *Decoder) error {
	var b [16]byte
	d1 := d.ReadUint32()
	b[0], b[1], b[2], b[3] = byte(d1), byte(d1>>8), byte(d1>>16), byte(d1>>24)
	d2 := d.ReadUint16()
	b[4], b[5] = byte(d2), byte(d2>>8)
	d3 := d.ReadUint16()
	b[6], b[7] = byte(d3), byte(d3>>8)
	copy(b[8:16], d.read(8))
	*g = GUID(b)
	return d.Err()
}
