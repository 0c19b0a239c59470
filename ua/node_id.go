// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "fmt"

// NodeIDType selects which of the four identifier kinds a NodeID carries.
type NodeIDType uint8

const (
	NodeIDTypeNumeric NodeIDType = iota
	NodeIDTypeString
	NodeIDTypeGUID
	NodeIDTypeByteString
)

// Compact wire forms; the first byte of an encoded NodeID selects one of
// these. Decoders accept any form producing the same logical
// id, so TwoByte/FourByte/Numeric all decode into the same NodeIDTypeNumeric
// representation.
const (
	nodeIDEncodingTwoByte   = 0x00
	nodeIDEncodingFourByte  = 0x01
	nodeIDEncodingNumeric   = 0x02
	nodeIDEncodingString    = 0x03
	nodeIDEncodingGUID      = 0x04
	nodeIDEncodingByteString = 0x05

	nodeIDFlagNamespaceURI = 0x80
	nodeIDFlagServerIndex  = 0x40
	nodeIDEncodingMask     = 0x3F
)

// NodeID is the polymorphic node identifier used throughout the address
// space. Equality and hashing are structural: two NodeIDs are equal iff
// their namespace index and identifier kind/value match, regardless of
// which compact wire form produced them.
type NodeID struct {
	ns   uint16
	typ  NodeIDType
	num  uint32
	str  string
	guid GUID
	byts []byte
}

// NewNumericNodeID builds a NodeId.Numeric(ns, id).
func NewNumericNodeID(ns uint16, id uint32) *NodeID {
	return &NodeID{ns: ns, typ: NodeIDTypeNumeric, num: id}
}

// NewStringNodeID builds a NodeId.String(ns, s).
func NewStringNodeID(ns uint16, s string) *NodeID {
	return &NodeID{ns: ns, typ: NodeIDTypeString, str: s}
}

// NewGUIDNodeID builds a NodeId.Guid(ns, g).
func NewGUIDNodeID(ns uint16, g GUID) *NodeID {
	return &NodeID{ns: ns, typ: NodeIDTypeGUID, guid: g}
}

// NewByteStringNodeID builds a NodeId.ByteString(ns, b).
func NewByteStringNodeID(ns uint16, b []byte) *NodeID {
	return &NodeID{ns: ns, typ: NodeIDTypeByteString, byts: b}
}

func (n *NodeID) Namespace() uint16  { return n.ns }
func (n *NodeID) Type() NodeIDType   { return n.typ }
func (n *NodeID) IntID() uint32      { return n.num }
func (n *NodeID) StringID() string   { return n.str }
func (n *NodeID) GUIDID() GUID       { return n.guid }
func (n *NodeID) ByteStringID() []byte { return n.byts }

// Equal reports structural equality, .
func (n *NodeID) Equal(o *NodeID) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.ns != o.ns || n.typ != o.typ {
		return false
	}
	switch n.typ {
	case NodeIDTypeNumeric:
		return n.num == o.num
	case NodeIDTypeString:
		return n.str == o.str
	case NodeIDTypeGUID:
		return n.guid == o.guid
	case NodeIDTypeByteString:
		return string(n.byts) == string(o.byts)
	}
	return false
}

// Key returns a value suitable as a map key for NodeID, satisfying the
// "equality/hashing is structural" invariant without requiring a content
// hash: map[NodeIDKey]... keyed on this struct behaves identically to
// keying on the logical (namespace, kind, value) triple.
type NodeIDKey struct {
	NS   uint16
	Typ  NodeIDType
	Num  uint32
	Str  string
	GUID GUID
	Byts string
}

func (n *NodeID) Key() NodeIDKey {
	return NodeIDKey{NS: n.ns, Typ: n.typ, Num: n.num, Str: n.str, GUID: n.guid, Byts: string(n.byts)}
}

func (n *NodeID) String() string {
	switch n.typ {
	case NodeIDTypeNumeric:
		return fmt.Sprintf("ns=%d;i=%d", n.ns, n.num)
	case NodeIDTypeString:
		return fmt.Sprintf("ns=%d;s=%s", n.ns, n.str)
	case NodeIDTypeGUID:
		return fmt.Sprintf("ns=%d;g=%s", n.ns, n.guid)
	case NodeIDTypeByteString:
		return fmt.Sprintf("ns=%d;b=%x", n.ns, n.byts)
	}
	return "invalid-node-id"
}

func (n *NodeID) MarshalOPCUA(e *Encoder) error {
	switch {
	case n.typ == NodeIDTypeNumeric && n.ns == 0 && n.num < 256:
		e.WriteByte(nodeIDEncodingTwoByte)
		e.WriteByte(byte(n.num))
	case n.typ == NodeIDTypeNumeric && n.ns < 256 && n.num < 65536:
		e.WriteByte(nodeIDEncodingFourByte)
		e.WriteByte(byte(n.ns))
		e.WriteUint16(uint16(n.num))
	case n.typ == NodeIDTypeNumeric:
		e.WriteByte(nodeIDEncodingNumeric)
		e.WriteUint16(n.ns)
		e.WriteUint32(n.num)
	case n.typ == NodeIDTypeString:
		e.WriteByte(nodeIDEncodingString)
		e.WriteUint16(n.ns)
		e.WriteString(n.str)
	case n.typ == NodeIDTypeGUID:
		e.WriteByte(nodeIDEncodingGUID)
		e.WriteUint16(n.ns)
		e.Encode(n.guid)
	case n.typ == NodeIDTypeByteString:
		e.WriteByte(nodeIDEncodingByteString)
		e.WriteUint16(n.ns)
		e.WriteByteString(n.byts)
	default:
		return fmt.Errorf("ua: invalid NodeID type %d", n.typ)
	}
	return e.Err()
}

func (n *NodeID) UnmarshalOPCUA(d *Decoder) error {
	b := d.ReadByte() & nodeIDEncodingMask
	switch b {
	case nodeIDEncodingTwoByte:
		n.typ, n.ns, n.num = NodeIDTypeNumeric, 0, uint32(d.ReadByte())
	case nodeIDEncodingFourByte:
		n.typ = NodeIDTypeNumeric
		n.ns = uint16(d.ReadByte())
		n.num = uint32(d.ReadUint16())
	case nodeIDEncodingNumeric:
		n.typ = NodeIDTypeNumeric
		n.ns = d.ReadUint16()
		n.num = d.ReadUint32()
	case nodeIDEncodingString:
		n.typ = NodeIDTypeString
		n.ns = d.ReadUint16()
		n.str = d.ReadString()
	case nodeIDEncodingGUID:
		n.typ = NodeIDTypeGUID
		n.ns = d.ReadUint16()
		d.Decode(&n.guid)
	case nodeIDEncodingByteString:
		n.typ = NodeIDTypeByteString
		n.ns = d.ReadUint16()
		n.byts = d.ReadByteString()
	default:
		return fmt.Errorf("%w: unknown NodeId encoding byte 0x%02x", StatusBadDecodingError, b)
	}
	return d.Err()
}
