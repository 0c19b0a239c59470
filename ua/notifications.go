// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/gopcua/opcua/id"

// MonitoredItemNotification is one changed value reported by a
// DataChangeNotification.
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        *DataValue
}

// DataChangeNotification is the NotificationData payload a Subscription
// sends for MonitoredItems watching an attribute value.
type DataChangeNotification struct {
	MonitoredItems  []*MonitoredItemNotification
	DiagnosticInfos []*DiagnosticInfo
}

// EventFieldList carries one event occurrence's selected field values.
type EventFieldList struct {
	ClientHandle uint32
	EventFields  []*Variant
}

// EventNotificationList is the NotificationData payload for event-monitored
// items.
type EventNotificationList struct {
	Events []*EventFieldList
}

// StatusChangeNotification reports a Subscription-wide status change, e.g.
// StatusBadTimeout when the lifetime counter expires.
type StatusChangeNotification struct {
	Status         StatusCode
	DiagnosticInfo *DiagnosticInfo
}

// DataChangeFilter is the MonitoringParameters.Filter body for data-change
// MonitoredItems: a deadband.
type DataChangeFilter struct {
	Trigger       uint32
	DeadbandType  uint32
	DeadbandValue float64
}

// EventFilter selects which event fields to report (SelectClauses) and
// which raised events qualify at all (WhereClause).
type EventFilter struct {
	SelectClauses []*SimpleAttributeOperand
	WhereClause   *ContentFilter
}

// FilterOperator is a ContentFilterElement's operator.
type FilterOperator uint32

const (
	FilterOpEquals FilterOperator = iota
	FilterOpIsNull
	FilterOpGreaterThan
	FilterOpLessThan
	FilterOpGreaterThanOrEqual
	FilterOpLessThanOrEqual
	FilterOpLike
	FilterOpNot
	FilterOpBetween
	FilterOpInList
	FilterOpAnd
	FilterOpOr
	FilterOpCast
	FilterOpInView
	FilterOpOfType
)

// SimpleAttributeOperand names one attribute of one event-type field by its
// browse path from the event's declared type.
type SimpleAttributeOperand struct {
	TypeDefinitionID *NodeID
	BrowsePath       []*QualifiedName
	AttributeID      AttributeID
	IndexRange       string
}

// LiteralOperand is a constant value operand.
type LiteralOperand struct {
	Value *Variant
}

// ElementOperand references another ContentFilterElement by its index in
// the same ContentFilter, letting logical operators compose.
type ElementOperand struct {
	Index uint32
}

// ContentFilterElement is one node of a where-clause: an operator plus the
// operands it takes, each either a SimpleAttributeOperand, a
// LiteralOperand, or an ElementOperand pointing at a sibling element.
type ContentFilterElement struct {
	Operator       FilterOperator
	FilterOperands []interface{}
}

// ContentFilter is the where_clause tree; Elements[0] is the root the
// filter evaluates to.
type ContentFilter struct {
	Elements []*ContentFilterElement
}

func init() {
	RegisterExtensionObjectType(0, id.DataChangeNotification_Encoding_DefaultBinary, func() interface{} { return &DataChangeNotification{} })
	RegisterExtensionObjectType(0, id.MonitoredItemNotification_Encoding_DefaultBinary, func() interface{} { return &MonitoredItemNotification{} })
	RegisterExtensionObjectType(0, id.EventNotificationList_Encoding_DefaultBinary, func() interface{} { return &EventNotificationList{} })
	RegisterExtensionObjectType(0, id.EventFieldList_Encoding_DefaultBinary, func() interface{} { return &EventFieldList{} })
	RegisterExtensionObjectType(0, id.StatusChangeNotification_Encoding_DefaultBinary, func() interface{} { return &StatusChangeNotification{} })
	RegisterExtensionObjectType(0, id.DataChangeFilter_Encoding_DefaultBinary, func() interface{} { return &DataChangeFilter{} })
	RegisterExtensionObjectType(0, id.EventFilter_Encoding_DefaultBinary, func() interface{} { return &EventFilter{} })
}
