// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "fmt"

// ExtensionObjectEncoding selects the body representation of an
// ExtensionObject.
type ExtensionObjectEncoding byte

const (
	ExtensionObjectNone   ExtensionObjectEncoding = 0
	ExtensionObjectBinary ExtensionObjectEncoding = 1
	ExtensionObjectXML    ExtensionObjectEncoding = 2
)

// ExtensionObjectLoader decodes the binary body of an ExtensionObject whose
// TypeID is known. Populated loaders let Browse and similar services
// round-trip structures they don't otherwise understand, and let ones they
// do understand (e.g. identity tokens) come back as typed Go values.
type ExtensionObjectLoader func() interface{}

var extensionObjectRegistry = map[NodeIDKey]ExtensionObjectLoader{}

// RegisterExtensionObjectType registers a loader for typeID's binary
// encoding id. Call during init() of the package defining the type.
func RegisterExtensionObjectType(ns uint16, id uint32, loader ExtensionObjectLoader) {
	extensionObjectRegistry[NewNumericNodeID(ns, id).Key()] = loader
}

// ExtensionObject is (type_id, body): body is either an opaque byte string,
// an XmlElement, or -- if TypeID is registered -- a decoded typed
// structure.
type ExtensionObject struct {
	TypeID       *ExpandedNodeID
	EncodingMask ExtensionObjectEncoding
	Value        interface{} // []byte (binary, unregistered), string (xml), or a registered struct pointer
}

// NewExtensionObject wraps v for binary encoding. v's DefaultBinary type id
// must be registered via RegisterExtensionObjectType for the receiver to be
// able to decode it back into a typed value; unregistered types still
// round-trip as opaque bytes if the caller supplies TypeID explicitly.
func NewExtensionObject(v interface{}) *ExtensionObject {
	if v == nil {
		return &ExtensionObject{EncodingMask: ExtensionObjectNone}
	}
	return &ExtensionObject{EncodingMask: ExtensionObjectBinary, Value: v}
}

func (o *ExtensionObject) MarshalOPCUA(e *Encoder) error {
	typeID := o.TypeID
	if typeID == nil {
		typeID = &ExpandedNodeID{NodeID: NewNumericNodeID(0, 0)}
	}
	e.Encode(typeID)
	switch v := o.Value.(type) {
	case nil:
		e.WriteByte(byte(ExtensionObjectNone))
	case []byte:
		e.WriteByte(byte(ExtensionObjectBinary))
		e.WriteByteString(v)
	case string:
		e.WriteByte(byte(ExtensionObjectXML))
		e.WriteString(v)
	default:
		e.WriteByte(byte(ExtensionObjectBinary))
		body, err := Encode(v)
		if err != nil {
			return err
		}
		e.WriteByteString(body)
	}
	return e.Err()
}

func (o *ExtensionObject) UnmarshalOPCUA(d *Decoder) error {
	o.TypeID = &ExpandedNodeID{}
	d.Decode(o.TypeID)
	o.EncodingMask = ExtensionObjectEncoding(d.ReadByte())
	switch o.EncodingMask {
	case ExtensionObjectNone:
		o.Value = nil
	case ExtensionObjectXML:
		o.Value = d.ReadString()
	case ExtensionObjectBinary:
		body := d.ReadByteString()
		if d.Err() != nil {
			return d.Err()
		}
		if loader, ok := extensionObjectRegistry[o.TypeID.NodeID.Key()]; ok {
			v := loader()
			if err := Decode(body, v); err != nil {
				return fmt.Errorf("ua: decoding ExtensionObject body for %s: %w", o.TypeID.NodeID, err)
			}
			o.Value = v
		} else {
			o.Value = body
		}
	default:
		return fmt.Errorf("%w: unknown ExtensionObject encoding byte %d", StatusBadDecodingError, o.EncodingMask)
	}
	return d.Err()
}
