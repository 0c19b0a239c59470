// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

func newTestContext() *RequestContext {
	return &RequestContext{Context: context.Background()}
}

// simpleManager is a minimal NodeManager used across dispatch tests: it
// claims every id in ns and reports a fixed status for Read/Write/Call,
// and a fixed set of references for Browse.
type simpleManager struct {
	ns    uint16
	refs  []*ua.ReferenceDescription
	calls int
}

func (m *simpleManager) Owns(id *ua.NodeID) bool { return id != nil && id.Namespace() == m.ns }

func (m *simpleManager) Read(ctx *RequestContext, items []*ReadItem) {
	for _, it := range items {
		it.Result = &ua.DataValue{Status: ua.StatusOK, HasStatus: true}
		it.Handled = true
	}
}

func (m *simpleManager) Write(ctx *RequestContext, items []*WriteItem) {
	for _, it := range items {
		it.Result = ua.StatusOK
		it.Handled = true
	}
}

func (m *simpleManager) Browse(ctx *RequestContext, items []*BrowseItem) {
	for _, it := range items {
		it.Result = &ua.BrowseResult{StatusCode: ua.StatusOK, References: m.refs}
		it.Handled = true
	}
}

func (m *simpleManager) Call(ctx *RequestContext, items []*CallItem) {
	m.calls++
	for _, it := range items {
		it.Result = &ua.CallMethodResult{StatusCode: ua.StatusOK}
		it.Handled = true
	}
}

func (m *simpleManager) ResolveExternalReferences(ctx *RequestContext, refs []*ExternalRef) {
	for _, r := range refs {
		if !m.Owns(r.Target.NodeID) {
			continue
		}
		r.BrowseName = &ua.QualifiedName{Name: "resolved"}
		r.DisplayName = &ua.LocalizedText{}
		r.NodeClass = ua.NodeClassVariable
		r.Handled = true
	}
}

func TestDispatcherReadUnclaimedDefaultsToBadNodeIDUnknown(t *testing.T) {
	d := NewDispatcher()
	d.Register(&simpleManager{ns: 1})

	nodes := []*ua.ReadValueID{
		{NodeID: ua.NewNumericNodeID(1, 1)},
		{NodeID: ua.NewNumericNodeID(2, 1)},
	}
	out := d.Read(newTestContext(), nodes, 0, ua.TimestampsToReturnBoth)
	require.Len(t, out, 2)
	assert.Equal(t, ua.StatusOK, out[0].Status)
	assert.Equal(t, ua.StatusBadNodeIDUnknown, out[1].Status)
}

func TestDispatcherPreservesRequestOrder(t *testing.T) {
	d := NewDispatcher()
	d.Register(&simpleManager{ns: 1})
	d.Register(&simpleManager{ns: 2})

	nodes := []*ua.ReadValueID{
		{NodeID: ua.NewNumericNodeID(2, 1)},
		{NodeID: ua.NewNumericNodeID(1, 1)},
		{NodeID: ua.NewNumericNodeID(9, 1)},
	}
	out := d.Read(newTestContext(), nodes, 0, ua.TimestampsToReturnBoth)
	require.Len(t, out, 3)
	assert.Equal(t, ua.StatusOK, out[0].Status)
	assert.Equal(t, ua.StatusOK, out[1].Status)
	assert.Equal(t, ua.StatusBadNodeIDUnknown, out[2].Status)
}

func TestDispatcherFirstRegisteredManagerWins(t *testing.T) {
	d := NewDispatcher()
	first := &simpleManager{ns: 1}
	second := &simpleManager{ns: 1}
	d.Register(first)
	d.Register(second)

	calls := []*ua.CallMethodRequest{{ObjectID: ua.NewNumericNodeID(1, 1), MethodID: ua.NewNumericNodeID(1, 2)}}
	d.Call(newTestContext(), calls)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestDispatcherWrite(t *testing.T) {
	d := NewDispatcher()
	d.Register(&simpleManager{ns: 1})
	values := []*ua.WriteValue{{NodeID: ua.NewNumericNodeID(1, 1)}, {NodeID: ua.NewNumericNodeID(5, 1)}}
	out := d.Write(newTestContext(), values)
	require.Len(t, out, 2)
	assert.Equal(t, ua.StatusOK, out[0])
	assert.Equal(t, ua.StatusBadNodeIDUnknown, out[1])
}

func TestDispatcherCall(t *testing.T) {
	d := NewDispatcher()
	m := &simpleManager{ns: 1}
	d.Register(m)
	calls := []*ua.CallMethodRequest{{ObjectID: ua.NewNumericNodeID(1, 1), MethodID: ua.NewNumericNodeID(1, 2)}}
	out := d.Call(newTestContext(), calls)
	require.Len(t, out, 1)
	assert.Equal(t, ua.StatusOK, out[0].StatusCode)
	assert.Equal(t, 1, m.calls)
}

func TestDispatcherBrowseResolvesExternalReferences(t *testing.T) {
	d := NewDispatcher()
	target := ua.NewNumericNodeID(2, 1)
	d.Register(&simpleManager{ns: 1, refs: []*ua.ReferenceDescription{
		{NodeID: &ua.ExpandedNodeID{NodeID: target}},
	}})
	d.Register(&simpleManager{ns: 2})

	descs := []*ua.BrowseDescription{{NodeID: ua.NewNumericNodeID(1, 1)}}
	out := d.Browse(newTestContext(), descs, 0)
	require.Len(t, out, 1)
	require.Len(t, out[0].References, 1)
	assert.Equal(t, "resolved", out[0].References[0].BrowseName.Name)
}

func TestDispatcherManagerFor(t *testing.T) {
	d := NewDispatcher()
	m1 := &simpleManager{ns: 1}
	d.Register(m1)

	got, ok := d.ManagerFor(ua.NewNumericNodeID(1, 5))
	require.True(t, ok)
	assert.Same(t, m1, got)

	_, ok = d.ManagerFor(ua.NewNumericNodeID(9, 5))
	assert.False(t, ok)
}

func TestDispatcherReadConcurrent(t *testing.T) {
	d := NewDispatcher()
	d.Register(&simpleManager{ns: 1})

	batches := [][]*ua.ReadValueID{
		{{NodeID: ua.NewNumericNodeID(1, 1)}},
		{{NodeID: ua.NewNumericNodeID(1, 2)}},
	}
	out := d.ReadConcurrent(newTestContext(), batches, 0, ua.TimestampsToReturnBoth)
	require.Len(t, out, 2)
	assert.Equal(t, ua.StatusOK, out[0][0].Status)
	assert.Equal(t, ua.StatusOK, out[1][0].Status)
}
