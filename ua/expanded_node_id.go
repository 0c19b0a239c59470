// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// ExpandedNodeID is a NodeID plus an optional namespace URI and server
// index. It resolves to a plain NodeID when its URI matches
// an entry in the local namespace table.
type ExpandedNodeID struct {
	NodeID        *NodeID
	NamespaceURI  string
	ServerIndex   uint32
}

// NewFourByteExpandedNodeID builds an ExpandedNodeID around a numeric,
// same-server NodeID -- the common case used for type ids on ExtensionObjects.
func NewFourByteExpandedNodeID(ns uint16, id uint32) *ExpandedNodeID {
	return &ExpandedNodeID{NodeID: NewNumericNodeID(ns, id)}
}

// Resolve returns the local NodeID, rewriting the namespace index if
// NamespaceURI names an entry in nsTable.
func (e *ExpandedNodeID) Resolve(nsTable []string) *NodeID {
	if e.NamespaceURI == "" {
		return e.NodeID
	}
	for i, uri := range nsTable {
		if uri == e.NamespaceURI {
			n := *e.NodeID
			n.ns = uint16(i)
			return &n
		}
	}
	return e.NodeID
}

func (e *ExpandedNodeID) MarshalOPCUA(enc *Encoder) error {
	sub := NewEncoder()
	if err := e.NodeID.MarshalOPCUA(sub); err != nil {
		return err
	}
	body := sub.Bytes()
	flags := byte(0)
	if e.NamespaceURI != "" {
		flags |= nodeIDFlagNamespaceURI
	}
	if e.ServerIndex != 0 {
		flags |= nodeIDFlagServerIndex
	}
	enc.WriteByte(body[0] | flags)
	enc.WriteBytes(body[1:])
	if e.NamespaceURI != "" {
		enc.WriteString(e.NamespaceURI)
	}
	if e.ServerIndex != 0 {
		enc.WriteUint32(e.ServerIndex)
	}
	return enc.Err()
}

func (e *ExpandedNodeID) UnmarshalOPCUA(d *Decoder) error {
	first := d.ReadByte()
	flags := first & (nodeIDFlagNamespaceURI | nodeIDFlagServerIndex)
	n := &NodeID{}
	// re-decode the id portion using a Decoder primed with the masked
	// first byte followed by the remaining id bytes already on the wire.
	idDec := &Decoder{r: d.r, limits: d.limits}
	if err := (&nodeIDTail{first: first &^ flags}).unmarshal(n, idDec); err != nil {
		return err
	}
	d.err = idDec.err
	e.NodeID = n
	if flags&nodeIDFlagNamespaceURI != 0 {
		e.NamespaceURI = d.ReadString()
	}
	if flags&nodeIDFlagServerIndex != 0 {
		e.ServerIndex = d.ReadUint32()
	}
	return d.Err()
}

// nodeIDTail decodes a NodeID whose leading encoding byte has already been
// consumed from the stream (used by ExpandedNodeID, whose encoding byte is
// shared with the namespace-uri/server-index presence flags).
type nodeIDTail struct {
	first byte
}

func (t *nodeIDTail) unmarshal(n *NodeID, d *Decoder) error {
	switch t.first & nodeIDEncodingMask {
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
		return StatusBadDecodingError
	}
	return d.Err()
}
