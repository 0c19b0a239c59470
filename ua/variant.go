// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"fmt"
	"time"
)

// VariantTypeID is the low-6-bit scalar type selector of a Variant's mask
// byte.
type VariantTypeID byte

const (
	VariantTypeNull VariantTypeID = iota
	VariantTypeBoolean
	VariantTypeSByte
	VariantTypeByte
	VariantTypeInt16
	VariantTypeUint16
	VariantTypeInt32
	VariantTypeUint32
	VariantTypeInt64
	VariantTypeUint64
	VariantTypeFloat
	VariantTypeDouble
	VariantTypeString
	VariantTypeDateTime
	VariantTypeGUID
	VariantTypeByteString
	VariantTypeXmlElement
	VariantTypeNodeID
	VariantTypeExpandedNodeID
	VariantTypeStatusCode
	VariantTypeQualifiedName
	VariantTypeLocalizedText
	VariantTypeExtensionObject
	VariantTypeDataValue
	VariantTypeVariant
	VariantTypeDiagnosticInfo
)

const (
	variantArrayBit         = 0x80
	variantArrayDimsBit     = 0x40
	variantTypeMask         = 0x3F
)

// Variant is the tagged union over OPC UA's built-in scalar types plus an
// Array variant. Exactly one of the Value/Array fields is
// meaningful, selected by IsArray.
type Variant struct {
	Type VariantTypeID

	// Value holds the scalar value when !IsArray.
	Value interface{}

	// Array holds the flattened element sequence when IsArray.
	Array     []interface{}
	Dimensions []int32

	IsArray bool
}

// NewVariant wraps a Go value in a Variant, inferring its VariantTypeID.
// Only scalar values are accepted: a []byte becomes a ByteString scalar and
// any other slice is rejected with an error.
func NewVariant(v interface{}) (*Variant, error) {
	switch val := v.(type) {
	case bool:
		return &Variant{Type: VariantTypeBoolean, Value: val}, nil
	case int8:
		return &Variant{Type: VariantTypeSByte, Value: val}, nil
	case byte:
		return &Variant{Type: VariantTypeByte, Value: val}, nil
	case int16:
		return &Variant{Type: VariantTypeInt16, Value: val}, nil
	case uint16:
		return &Variant{Type: VariantTypeUint16, Value: val}, nil
	case int32:
		return &Variant{Type: VariantTypeInt32, Value: val}, nil
	case uint32:
		return &Variant{Type: VariantTypeUint32, Value: val}, nil
	case int64:
		return &Variant{Type: VariantTypeInt64, Value: val}, nil
	case uint64:
		return &Variant{Type: VariantTypeUint64, Value: val}, nil
	case float32:
		return &Variant{Type: VariantTypeFloat, Value: val}, nil
	case float64:
		return &Variant{Type: VariantTypeDouble, Value: val}, nil
	case string:
		return &Variant{Type: VariantTypeString, Value: val}, nil
	case time.Time:
		return &Variant{Type: VariantTypeDateTime, Value: val}, nil
	case GUID:
		return &Variant{Type: VariantTypeGUID, Value: val}, nil
	case []byte:
		return &Variant{Type: VariantTypeByteString, Value: val}, nil
	case *NodeID:
		return &Variant{Type: VariantTypeNodeID, Value: val}, nil
	case StatusCode:
		return &Variant{Type: VariantTypeStatusCode, Value: val}, nil
	case *LocalizedText:
		return &Variant{Type: VariantTypeLocalizedText, Value: val}, nil
	default:
		return nil, fmt.Errorf("ua: cannot build Variant from %T", v)
	}
}

func (v *Variant) scalarEncode(e *Encoder, val interface{}) {
	switch t := val.(type) {
	case bool:
		if t {
			e.WriteByte(1)
		} else {
			e.WriteByte(0)
		}
	case int8:
		e.WriteByte(byte(t))
	case byte:
		e.WriteByte(t)
	case int16:
		e.WriteUint16(uint16(t))
	case uint16:
		e.WriteUint16(t)
	case int32:
		e.WriteInt32(t)
	case uint32:
		e.WriteUint32(t)
	case int64:
		e.WriteInt64(t)
	case uint64:
		e.WriteUint64(t)
	case float32:
		e.WriteFloat32(t)
	case float64:
		e.WriteFloat64(t)
	case string:
		e.WriteString(t)
	case time.Time:
		e.WriteTime(t)
	case GUID:
		e.Encode(t)
	case []byte:
		e.WriteByteString(t)
	case *NodeID:
		e.Encode(t)
	case *ExpandedNodeID:
		e.Encode(t)
	case StatusCode:
		e.WriteUint32(uint32(t))
	case *QualifiedName:
		e.Encode(t)
	case *LocalizedText:
		e.Encode(t)
	case *ExtensionObject:
		e.Encode(t)
	case *DataValue:
		e.Encode(t)
	default:
		e.fail(fmt.Errorf("ua: cannot encode Variant scalar of type %T", val))
	}
}

func (v *Variant) scalarDecode(d *Decoder, typ VariantTypeID) interface{} {
	switch typ {
	case VariantTypeBoolean:
		return d.ReadByte() != 0
	case VariantTypeSByte:
		return int8(d.ReadByte())
	case VariantTypeByte:
		return d.ReadByte()
	case VariantTypeInt16:
		return int16(d.ReadUint16())
	case VariantTypeUint16:
		return d.ReadUint16()
	case VariantTypeInt32:
		return d.ReadInt32()
	case VariantTypeUint32:
		return d.ReadUint32()
	case VariantTypeInt64:
		return d.ReadInt64()
	case VariantTypeUint64:
		return d.ReadUint64()
	case VariantTypeFloat:
		return d.ReadFloat32()
	case VariantTypeDouble:
		return d.ReadFloat64()
	case VariantTypeString:
		return d.ReadString()
	case VariantTypeDateTime:
		return d.ReadTime()
	case VariantTypeGUID:
		var g GUID
		d.Decode(&g)
		return g
	case VariantTypeByteString:
		return d.ReadByteString()
	case VariantTypeNodeID:
		n := &NodeID{}
		d.Decode(n)
		return n
	case VariantTypeExpandedNodeID:
		n := &ExpandedNodeID{}
		d.Decode(n)
		return n
	case VariantTypeStatusCode:
		return StatusCode(d.ReadUint32())
	case VariantTypeQualifiedName:
		q := &QualifiedName{}
		d.Decode(q)
		return q
	case VariantTypeLocalizedText:
		l := &LocalizedText{}
		d.Decode(l)
		return l
	case VariantTypeExtensionObject:
		o := &ExtensionObject{}
		d.Decode(o)
		return o
	case VariantTypeDataValue:
		dv := &DataValue{}
		d.Decode(dv)
		return dv
	default:
		d.fail(fmt.Errorf("%w: unsupported Variant scalar type %d", StatusBadDecodingError, typ))
		return nil
	}
}

func (v *Variant) MarshalOPCUA(e *Encoder) error {
	mask := byte(v.Type) & variantTypeMask
	if v.IsArray {
		mask |= variantArrayBit
		if len(v.Dimensions) > 0 {
			mask |= variantArrayDimsBit
		}
	}
	e.WriteByte(mask)
	if !v.IsArray {
		if v.Type != VariantTypeNull {
			v.scalarEncode(e, v.Value)
		}
		return e.Err()
	}
	e.WriteInt32(int32(len(v.Array)))
	for _, el := range v.Array {
		v.scalarEncode(e, el)
	}
	if len(v.Dimensions) > 0 {
		e.WriteInt32(int32(len(v.Dimensions)))
		for _, dim := range v.Dimensions {
			e.WriteInt32(dim)
		}
	}
	return e.Err()
}

func (v *Variant) UnmarshalOPCUA(d *Decoder) error {
	mask := d.ReadByte()
	v.Type = VariantTypeID(mask & variantTypeMask)
	v.IsArray = mask&variantArrayBit != 0
	hasDims := mask&variantArrayDimsBit != 0
	if !v.IsArray {
		if v.Type != VariantTypeNull {
			v.Value = v.scalarDecode(d, v.Type)
		}
		return d.Err()
	}
	n := d.ArrayLen()
	if d.Err() != nil {
		return d.Err()
	}
	v.Array = make([]interface{}, n)
	for i := range v.Array {
		v.Array[i] = v.scalarDecode(d, v.Type)
	}
	if hasDims {
		dn := d.ArrayLen()
		if d.Err() != nil {
			return d.Err()
		}
		v.Dimensions = make([]int32, dn)
		for i := range v.Dimensions {
			v.Dimensions[i] = d.ReadInt32()
		}
		product := int32(1)
		for _, dim := range v.Dimensions {
			product *= dim
		}
		if int(product) != len(v.Array) {
			return fmt.Errorf("%w: array dimensions product %d does not match value count %d", StatusBadDecodingError, product, len(v.Array))
		}
	}
	return d.Err()
}
