// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gopcua/opcua/ua"
)

// Dispatcher routes service operations to the ordered list of NodeManagers
// that own them. Managers are tried in registration order; a manager only
// sees items it owns that are still unhandled by an earlier manager.
//
// The dispatcher itself invokes managers sequentially within one request
// (order matters for which manager "wins" a node id), but Read/Write/
// Browse/Call for *different* requests run concurrently: the server's MSG
// loop spawns one goroutine per request (uasc.ServerChannel.Serve already
// does this), and nothing here serializes across them beyond each
// manager's own internal locking.
type Dispatcher struct {
	mu       sync.RWMutex
	managers []NodeManager
}

// NewDispatcher returns an empty dispatcher; managers are added with
// Register in the order they should be tried.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register appends m to the end of the ordered manager list.
func (d *Dispatcher) Register(m NodeManager) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.managers = append(d.managers, m)
}

func (d *Dispatcher) snapshot() []NodeManager {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]NodeManager, len(d.managers))
	copy(out, d.managers)
	return out
}

// Read executes a Read request across all registered managers, returning
// results in request order. Items no manager claims end BadNodeIDUnknown.
func (d *Dispatcher) Read(ctx *RequestContext, nodes []*ua.ReadValueID, maxAge float64, tsr ua.TimestampsToReturn) []*ua.DataValue {
	items := make([]*ReadItem, len(nodes))
	for i, n := range nodes {
		items[i] = &ReadItem{Node: n, MaxAge: maxAge, TSR: tsr}
	}
	for _, m := range d.snapshot() {
		pending := unhandledReads(items, m)
		if len(pending) == 0 {
			continue
		}
		m.Read(ctx, pending)
	}
	out := make([]*ua.DataValue, len(items))
	for i, it := range items {
		if !it.Handled || it.Result == nil {
			out[i] = &ua.DataValue{Status: ua.StatusBadNodeIDUnknown, HasStatus: true}
			continue
		}
		out[i] = it.Result
	}
	return out
}

func unhandledReads(items []*ReadItem, m NodeManager) []*ReadItem {
	var pending []*ReadItem
	for _, it := range items {
		if !it.Handled && m.Owns(it.Node.NodeID) {
			pending = append(pending, it)
		}
	}
	return pending
}

// Write executes a Write request the same way Read does.
func (d *Dispatcher) Write(ctx *RequestContext, values []*ua.WriteValue) []ua.StatusCode {
	items := make([]*WriteItem, len(values))
	for i, v := range values {
		items[i] = &WriteItem{Node: v}
	}
	for _, m := range d.snapshot() {
		var pending []*WriteItem
		for _, it := range items {
			if !it.Handled && m.Owns(it.Node.NodeID) {
				pending = append(pending, it)
			}
		}
		if len(pending) == 0 {
			continue
		}
		m.Write(ctx, pending)
	}
	out := make([]ua.StatusCode, len(items))
	for i, it := range items {
		if !it.Handled {
			out[i] = ua.StatusBadNodeIDUnknown
			continue
		}
		out[i] = it.Result
	}
	return out
}

// Browse executes a Browse request, then runs the external-reference
// resolution pass: any ReferenceDescription still lacking its BrowseName or
// DisplayName gets its display metadata filled in by
// resolveExternalReferences.
func (d *Dispatcher) Browse(ctx *RequestContext, descs []*ua.BrowseDescription, maxRefs uint32) []*ua.BrowseResult {
	items := make([]*BrowseItem, len(descs))
	for i, n := range descs {
		items[i] = &BrowseItem{Node: n, Max: maxRefs}
	}
	managers := d.snapshot()
	for _, m := range managers {
		var pending []*BrowseItem
		for _, it := range items {
			if !it.Handled && m.Owns(it.Node.NodeID) {
				pending = append(pending, it)
			}
		}
		if len(pending) == 0 {
			continue
		}
		m.Browse(ctx, pending)
	}

	out := make([]*ua.BrowseResult, len(items))
	for i, it := range items {
		if !it.Handled || it.Result == nil {
			out[i] = &ua.BrowseResult{StatusCode: ua.StatusBadNodeIDUnknown}
			continue
		}
		out[i] = it.Result
	}

	d.resolveExternalReferences(ctx, managers, out)
	return out
}

// resolveExternalReferences collects every reference missing a BrowseName
// or DisplayName and asks the managers, in order, to fill in BrowseName/
// DisplayName/NodeClass/TypeDefinition for the targets they own; the first
// owning manager handles each one, whichever manager produced it.
func (d *Dispatcher) resolveExternalReferences(ctx *RequestContext, managers []NodeManager, results []*ua.BrowseResult) {
	var refs []*ExternalRef
	var descs []*ua.ReferenceDescription
	for _, r := range results {
		for _, ref := range r.References {
			if ref.DisplayName != nil && ref.BrowseName != nil {
				continue
			}
			refs = append(refs, &ExternalRef{Target: ref.NodeID})
			descs = append(descs, ref)
		}
	}
	if len(refs) == 0 {
		return
	}
	for _, m := range managers {
		var pending []*ExternalRef
		var pendingDescs []*ua.ReferenceDescription
		for i, rf := range refs {
			if !rf.Handled && rf.Target.NodeID != nil && m.Owns(rf.Target.NodeID) {
				pending = append(pending, rf)
				pendingDescs = append(pendingDescs, descs[i])
			}
		}
		if len(pending) == 0 {
			continue
		}
		m.ResolveExternalReferences(ctx, pending)
		for i, rf := range pending {
			if !rf.Handled {
				continue
			}
			pendingDescs[i].BrowseName = rf.BrowseName
			pendingDescs[i].DisplayName = rf.DisplayName
			pendingDescs[i].NodeClass = rf.NodeClass
			pendingDescs[i].TypeDefinition = rf.TypeDefinition
		}
	}
}

// Call executes a Call request across managers.
func (d *Dispatcher) Call(ctx *RequestContext, calls []*ua.CallMethodRequest) []*ua.CallMethodResult {
	items := make([]*CallItem, len(calls))
	for i, c := range calls {
		items[i] = &CallItem{Node: c}
	}
	for _, m := range d.snapshot() {
		var pending []*CallItem
		for _, it := range items {
			if !it.Handled && m.Owns(it.Node.ObjectID) {
				pending = append(pending, it)
			}
		}
		if len(pending) == 0 {
			continue
		}
		m.Call(ctx, pending)
	}
	out := make([]*ua.CallMethodResult, len(items))
	for i, it := range items {
		if !it.Handled || it.Result == nil {
			out[i] = &ua.CallMethodResult{StatusCode: ua.StatusBadNodeIDUnknown}
			continue
		}
		out[i] = it.Result
	}
	return out
}

// ReadConcurrent runs several independent Read requests (e.g. one per
// inbound connection's batch) in parallel using errgroup. The dispatcher
// serializes managers within one request, but different requests run
// concurrently with each other.
func (d *Dispatcher) ReadConcurrent(ctx *RequestContext, batches [][]*ua.ReadValueID, maxAge float64, tsr ua.TimestampsToReturn) [][]*ua.DataValue {
	out := make([][]*ua.DataValue, len(batches))
	var g errgroup.Group
	for i, b := range batches {
		i, b := i, b
		g.Go(func() error {
			out[i] = d.Read(ctx, b, maxAge, tsr)
			return nil
		})
	}
	g.Wait()
	return out
}

// ManagerFor returns the first registered manager owning id, if any. Used
// by the monitored-item sampler to find which manager to ask for a value.
func (d *Dispatcher) ManagerFor(id *ua.NodeID) (NodeManager, bool) {
	for _, m := range d.snapshot() {
		if m.Owns(id) {
			return m, true
		}
	}
	return nil, false
}
