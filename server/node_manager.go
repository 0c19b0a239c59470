// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"context"

	"github.com/gopcua/opcua/ua"
)

// RequestContext is passed to every NodeManager call. It carries the
// caller's session id, user token, and handles to the shared type tree and
// subscription cache a node manager may need to answer Browse type-filter
// or monitored-item creation requests.
type RequestContext struct {
	Context context.Context

	SessionID     *ua.NodeID
	UserIdentity  interface{}
	TypeTree      *TypeTree
	Subscriptions *SubscriptionManager
}

// ReadItem is one element of a Read request as seen by a NodeManager: the
// attribute to read plus a result slot the manager fills in.
type ReadItem struct {
	Node   *ua.ReadValueID
	MaxAge float64
	TSR    ua.TimestampsToReturn

	Result  *ua.DataValue
	Handled bool
}

// WriteItem is one element of a Write request.
type WriteItem struct {
	Node *ua.WriteValue

	Result  ua.StatusCode
	Handled bool
}

// BrowseItem is one element of a Browse request.
type BrowseItem struct {
	Node *ua.BrowseDescription
	Max  uint32

	Result  *ua.BrowseResult
	Handled bool
}

// CallItem is one element of a Call request.
type CallItem struct {
	Node *ua.CallMethodRequest

	Result  *ua.CallMethodResult
	Handled bool
}

// ExternalRef asks the owning manager of Target to fill in the browse
// metadata (BrowseName, DisplayName, NodeClass, TypeDefinition) needed to
// build a ReferenceDescription whose source lives in a different manager.
type ExternalRef struct {
	Target *ua.ExpandedNodeID

	BrowseName     *ua.QualifiedName
	DisplayName    *ua.LocalizedText
	NodeClass      ua.NodeClass
	TypeDefinition *ua.ExpandedNodeID
	Handled        bool
}

// NodeManager owns a subset of the address space, declared by Owns. The
// Dispatcher hands it only the items from a batch it owns and that are
// still unhandled by an earlier manager in the list.
type NodeManager interface {
	Owns(id *ua.NodeID) bool

	Read(ctx *RequestContext, items []*ReadItem)
	Write(ctx *RequestContext, items []*WriteItem)
	Browse(ctx *RequestContext, items []*BrowseItem)
	Call(ctx *RequestContext, items []*CallItem)
	ResolveExternalReferences(ctx *RequestContext, refs []*ExternalRef)
}

// HistoryNodeManager is an optional capability a NodeManager may also
// implement to serve HistoryRead.
type HistoryNodeManager interface {
	HistoryRead(ctx *RequestContext, details *ua.ReadRawModifiedDetails, items []*ua.HistoryReadValueID) []*ua.HistoryReadResult
}

// MonitoredItemNodeManager is the optional capability backing
// CreateMonitoredItems/DeleteMonitoredItems for managers whose nodes
// support being sampled. A manager that doesn't implement this can still
// be Read/Written but never monitored.
type MonitoredItemNodeManager interface {
	// SampleValue is called by the monitored-item sampler on each tick.
	SampleValue(ctx *RequestContext, node *ua.ReadValueID) (*ua.DataValue, error)
}

// EURangeNodeManager is the optional capability backing percent-deadband
// filtering: a manager whose analog nodes carry an EURange property
// implements this so CreateMonitoredItems can read it once instead of on
// every sample.
type EURangeNodeManager interface {
	EURange(ctx *RequestContext, node *ua.NodeID) (low, high float64, ok bool)
}
