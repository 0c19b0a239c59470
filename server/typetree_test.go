// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopcua/opcua/ua"
)

func TestTypeTreeIsSubtypeOfDirect(t *testing.T) {
	tt := NewTypeTree()
	child := ua.NewNumericNodeID(0, 100)
	parent := ua.NewNumericNodeID(0, 58)
	tt.AddSubtype(child, parent)

	assert.True(t, tt.IsSubtypeOf(child, parent))
	assert.True(t, tt.IsSubtypeOf(child, child))
	assert.False(t, tt.IsSubtypeOf(parent, child))
}

func TestTypeTreeIsSubtypeOfTransitive(t *testing.T) {
	tt := NewTypeTree()
	grandchild := ua.NewNumericNodeID(0, 300)
	child := ua.NewNumericNodeID(0, 200)
	root := ua.NewNumericNodeID(0, 58)
	tt.AddSubtype(grandchild, child)
	tt.AddSubtype(child, root)

	assert.True(t, tt.IsSubtypeOf(grandchild, root))
	assert.True(t, tt.IsSubtypeOf(grandchild, child))
	assert.False(t, tt.IsSubtypeOf(root, grandchild))
}

func TestTypeTreeIsSubtypeOfUnrelated(t *testing.T) {
	tt := NewTypeTree()
	a := ua.NewNumericNodeID(0, 11)
	b := ua.NewNumericNodeID(0, 22)
	assert.False(t, tt.IsSubtypeOf(a, b))
}

func TestTypeTreeConcurrentLookupsCollapse(t *testing.T) {
	tt := NewTypeTree()
	child := ua.NewNumericNodeID(0, 100)
	parent := ua.NewNumericNodeID(0, 58)
	tt.AddSubtype(child, parent)

	var wg sync.WaitGroup
	results := make([]bool, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tt.IsSubtypeOf(child, parent)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.True(t, r)
	}
}
