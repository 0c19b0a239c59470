// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gopcua/opcua/ua"
)

// TypeTree is a cached view of the HasSubtype hierarchy, letting services
// and filters answer "is type A a subtype of type B?" in O(depth) by
// walking its child -> parent map, without browsing references. Results
// are not cached; each call walks the parent chain again. Writes
// only happen on schema load/refresh; reads are far more frequent, so the
// hot path is a plain RWMutex read.
type TypeTree struct {
	mu       sync.RWMutex
	subtypeOf map[ua.NodeIDKey]*ua.NodeID // child -> direct parent

	group singleflight.Group
}

// NewTypeTree returns an empty tree; AddSubtype populates it as node
// managers register their ObjectType/VariableType/ReferenceType nodes.
func NewTypeTree() *TypeTree {
	return &TypeTree{subtypeOf: make(map[ua.NodeIDKey]*ua.NodeID)}
}

// AddSubtype records that child has a direct HasSubtype reference to
// parent. Called during node-manager setup, never concurrently with
// IsSubtypeOf in practice, but guarded anyway since servers may load
// namespaces lazily from a background goroutine.
func (t *TypeTree) AddSubtype(child, parent *ua.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subtypeOf[child.Key()] = parent
}

// IsSubtypeOf reports whether child is type itself or a (possibly
// indirect) subtype of typ, walking the direct-parent chain. Concurrent
// lookups of the same (child, typ) pair are collapsed by singleflight so a
// burst of Browse/Event-filter calls doesn't walk the same chain
// redundantly.
func (t *TypeTree) IsSubtypeOf(child, typ *ua.NodeID) bool {
	if child.Equal(typ) {
		return true
	}
	key := child.Key()
	v, _, _ := t.group.Do(child.String()+"->"+typ.String(), func() (interface{}, error) {
		return t.walk(key, typ), nil
	})
	return v.(bool)
}

func (t *TypeTree) walk(start ua.NodeIDKey, typ *ua.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur := start
	for i := 0; i < 64; i++ { // bounded: the hierarchy is a DAG in practice, never this deep
		parent, ok := t.subtypeOf[cur]
		if !ok {
			return false
		}
		if parent.Equal(typ) {
			return true
		}
		cur = parent.Key()
	}
	return false
}
